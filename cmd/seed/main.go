// cmd/seed — anchors a batch of census records from a JSON file against a
// running ledger, for development and demos.
//
// The input is a JSON array of census records (the output format of the
// upstream CSV conversion utility). Records whose IDs are already
// anchored are reported and skipped.
//
// Usage:
//
//	go run ./cmd/seed testdata/census_records.json
//	LEDGER_URL=http://localhost:8080 go run ./cmd/seed records.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/govcensus/ledger/pkg/client"
)

const defaultLedger = "http://localhost:8080"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) != 2 {
		return fmt.Errorf("usage: seed <records.json>")
	}

	ledgerURL := os.Getenv("LEDGER_URL")
	if ledgerURL == "" {
		ledgerURL = defaultLedger
	}
	actor := os.Getenv("SEED_ACTOR")
	if actor == "" {
		actor = "seed-tool"
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}

	ctx := context.Background()
	c := client.New(ledgerURL)

	if _, err := c.Status(ctx); err != nil {
		return fmt.Errorf("ledger unreachable at %s: %w", ledgerURL, err)
	}

	var anchored, skipped int
	for _, rec := range records {
		res, err := c.Anchor(ctx, rec, actor)
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict {
				skipped++
				continue
			}
			return fmt.Errorf("anchor %v: %w", rec["record_id"], err)
		}
		anchored++
		fmt.Printf("anchored %s (tx %s)\n", res.RecordID, res.TxID)
	}

	fmt.Printf("\nseed complete: %d anchored, %d already present\n", anchored, skipped)
	return nil
}
