package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/govcensus/ledger/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden at release time via -ldflags "-X main.version=...".
var version = "dev"

var (
	ledgerURL string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "censusctl",
	Short: "Census ledger CLI",
	Long: `censusctl is the command-line interface for the census ledger.

It anchors census records, submits review decisions, verifies record
integrity against the ledger, and inspects audit trails.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.censusctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if ledgerURL == "" {
			ledgerURL = viper.GetString("ledger_url")
		}
		if ledgerURL == "" {
			ledgerURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.censusctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&ledgerURL, "ledger", "", "census ledger URL (default http://localhost:8080)")

	rootCmd.AddCommand(anchorCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(accessCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() *client.Client {
	return client.New(ledgerURL)
}

func ctx() context.Context {
	return context.Background()
}

// loadRecord reads a census record from a JSON file.
func loadRecord(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read record file: %w", err)
	}
	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("parse record file: %w", err)
	}
	return record, nil
}

// ── anchor ───────────────────────────────────────────────────────────────────

var anchorActor string

var anchorCmd = &cobra.Command{
	Use:   "anchor <record.json>",
	Short: "Anchor a census record on the ledger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		record, err := loadRecord(args[0])
		if err != nil {
			return err
		}
		res, err := newClient().Anchor(ctx(), record, anchorActor)
		if err != nil {
			return err
		}
		fmt.Printf("anchored %s\n  tx:     %s\n  hash:   %s\n  status: %s\n",
			res.RecordID, res.TxID, res.DataHash, res.Status)
		return nil
	},
}

// ── review ───────────────────────────────────────────────────────────────────

var (
	reviewReviewer   string
	reviewDecision   string
	reviewRecordFile string
)

var reviewCmd = &cobra.Command{
	Use:   "review <record-id>",
	Short: "Submit a review decision for a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var corrected map[string]any
		if reviewRecordFile != "" {
			var err error
			if corrected, err = loadRecord(reviewRecordFile); err != nil {
				return err
			}
		}
		res, err := newClient().Review(ctx(), args[0], reviewReviewer, reviewDecision, corrected)
		if err != nil {
			return err
		}
		fmt.Printf("reviewed %s\n  tx:     %s\n  status: %s\n", res.RecordID, res.TxID, res.NewStatus)
		if res.NewHash != "" {
			fmt.Printf("  hash:   %s (corrected data chained)\n", res.NewHash)
		}
		return nil
	},
}

// ── verify ───────────────────────────────────────────────────────────────────

var verifyAccessor string

var verifyCmd = &cobra.Command{
	Use:   "verify <record-id> <record.json>",
	Short: "Verify a record snapshot against the ledger hash",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		record, err := loadRecord(args[1])
		if err != nil {
			return err
		}
		res, err := newClient().Verify(ctx(), args[0], record, verifyAccessor)
		if err != nil {
			return err
		}
		if res.Verified {
			fmt.Printf("VERIFIED %s\n  on-chain hash: %s\n", res.RecordID, res.OnChainHash)
			return nil
		}
		fmt.Printf("NOT VERIFIED %s\n", res.RecordID)
		if res.Error != "" {
			fmt.Printf("  error:    %s\n", res.Error)
		} else {
			fmt.Printf("  on-chain: %s\n  provided: %s\n", res.OnChainHash, res.ProvidedHash)
		}
		return nil
	},
}

// ── access ───────────────────────────────────────────────────────────────────

var (
	accessAccessor string
	accessReason   string
)

var accessCmd = &cobra.Command{
	Use:   "access <record-id>",
	Short: "Log an access against a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newClient().LogAccess(ctx(), args[0], accessAccessor, accessReason)
		if err != nil {
			return err
		}
		fmt.Printf("access logged for %s (tx %s)\n", res.RecordID, res.TxID)
		return nil
	},
}

// ── record ───────────────────────────────────────────────────────────────────

var recordCmd = &cobra.Command{
	Use:   "record <record-id>",
	Short: "Show a ledger record snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := newClient().GetRecord(ctx(), args[0])
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

// ── audit ────────────────────────────────────────────────────────────────────

var auditCmd = &cobra.Command{
	Use:   "audit <record-id>",
	Short: "Show the audit trail for a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := newClient().AuditTrail(ctx(), args[0])
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("no audit entries")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tACTION\tACCESSOR\tTX\tDETAILS")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.Timestamp.Format(time.RFC3339), e.ActionType, e.AccessorID, e.TxID, e.Details)
		}
		return w.Flush()
	},
}

// ── status ───────────────────────────────────────────────────────────────────

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newClient().Status(ctx())
		if err != nil {
			return err
		}
		fmt.Printf("mode:    %s\nrecords: %d\nlogs:    %d\n", st.Mode, st.Records, st.Logs)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the censusctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("censusctl", version)
	},
}

func init() {
	anchorCmd.Flags().StringVar(&anchorActor, "actor", "", "ID of the user anchoring the record")
	_ = anchorCmd.MarkFlagRequired("actor")

	reviewCmd.Flags().StringVar(&reviewReviewer, "reviewer", "", "ID of the reviewer")
	reviewCmd.Flags().StringVar(&reviewDecision, "decision", "", "review decision (APPROVED, REJECTED, NEEDS_VERIFICATION, PRIORITY)")
	reviewCmd.Flags().StringVar(&reviewRecordFile, "record", "", "corrected record JSON file (optional)")
	_ = reviewCmd.MarkFlagRequired("reviewer")
	_ = reviewCmd.MarkFlagRequired("decision")

	verifyCmd.Flags().StringVar(&verifyAccessor, "accessor", "", "ID of the user performing verification")
	_ = verifyCmd.MarkFlagRequired("accessor")

	accessCmd.Flags().StringVar(&accessAccessor, "accessor", "", "ID of the accessing user")
	accessCmd.Flags().StringVar(&accessReason, "reason", "", "justification for the access")
	_ = accessCmd.MarkFlagRequired("accessor")
	_ = accessCmd.MarkFlagRequired("reason")
}
