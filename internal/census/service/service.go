// Package service implements the census ledger facade: the single entry
// point collaborators use. It normalizes caller input, derives content
// hashes, and composes the canonical hasher with a ledger backend.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/govcensus/ledger/internal/ledger"
	"github.com/govcensus/ledger/pkg/canonhash"
	"go.uber.org/zap"
)

// Service is the census ledger facade. It is constructed once by the
// hosting process and shared by reference; it holds no state of its own
// beyond the injected backend.
type Service struct {
	backend ledger.Backend
	logger  *zap.Logger
}

// New creates a Service on the given backend.
func New(backend ledger.Backend, logger *zap.Logger) *Service {
	return &Service{backend: backend, logger: logger}
}

// AnchorResult is returned by Anchor.
type AnchorResult struct {
	TxID     string        `json:"tx_id"`
	RecordID string        `json:"record_id"`
	DataHash string        `json:"data_hash"`
	Status   ledger.Status `json:"status"`
}

// ReviewResult is returned by Review. NewHash is empty when the review
// carried no corrected record.
type ReviewResult struct {
	TxID      string        `json:"tx_id"`
	RecordID  string        `json:"record_id"`
	NewStatus ledger.Status `json:"new_status"`
	NewHash   string        `json:"new_hash,omitempty"`
}

// AccessResult is returned by LogAccess.
type AccessResult struct {
	TxID     string `json:"tx_id"`
	RecordID string `json:"record_id"`
	Logged   bool   `json:"logged"`
}

// StatusInfo is the operational metadata returned by Status.
type StatusInfo struct {
	Mode    string `json:"mode"`
	Records int    `json:"records_count"`
	Logs    int    `json:"logs_count"`
}

// Anchor computes the content hash of a raw census record and creates it
// on the ledger with the fixed initial status. The record must carry a
// record_id; an invalid flag_status falls back to NORMAL rather than
// being rejected.
func (s *Service) Anchor(ctx context.Context, record map[string]any, actorID string) (*AnchorResult, error) {
	recordID := stringField(record, "record_id")
	if recordID == "" {
		return nil, fmt.Errorf("%w: record_id is required", ledger.ErrInvalidArgument)
	}
	householdID := stringField(record, "household_id")

	flag := ledger.FlagStatus(strings.ToUpper(stringField(record, "flag_status")))
	if !flag.Valid() {
		flag = ledger.FlagNormal
	}

	dataHash := canonhash.Compute(record)

	txID, err := s.backend.Create(ctx, recordID, dataHash, householdID, flag, actorID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("record anchored",
		zap.String("record_id", recordID),
		zap.String("actor", actorID),
		zap.String("tx_id", txID),
	)
	return &AnchorResult{
		TxID:     txID,
		RecordID: recordID,
		DataHash: dataHash,
		Status:   ledger.StatusPendingReview,
	}, nil
}

// Review applies a review decision to a record. The decision is
// upper-cased and must be a non-initial status. When updatedRecord is
// supplied its hash is recomputed and chained onto the ledger.
func (s *Service) Review(ctx context.Context, recordID, reviewerID, decision string, updatedRecord map[string]any) (*ReviewResult, error) {
	status := ledger.Status(strings.ToUpper(strings.TrimSpace(decision)))
	if !status.ReviewDecision() {
		return nil, fmt.Errorf("%w: invalid decision %q", ledger.ErrInvalidArgument, decision)
	}

	var newHash string
	if updatedRecord != nil {
		newHash = canonhash.Compute(updatedRecord)
	}

	txID, err := s.backend.Transition(ctx, recordID, reviewerID, status, newHash)
	if err != nil {
		return nil, err
	}

	s.logger.Info("record reviewed",
		zap.String("record_id", recordID),
		zap.String("reviewer", reviewerID),
		zap.String("decision", string(status)),
		zap.String("tx_id", txID),
	)
	return &ReviewResult{
		TxID:      txID,
		RecordID:  recordID,
		NewStatus: status,
		NewHash:   newHash,
	}, nil
}

// Verify checks a record's current content against the hash committed to
// the ledger. The hash is always re-derived here; a caller-fabricated
// hash string can never produce a spoofed match.
func (s *Service) Verify(ctx context.Context, recordID string, currentRecord map[string]any, accessorID string) (*ledger.IntegrityResult, error) {
	currentHash := canonhash.Compute(currentRecord)
	return s.backend.CheckIntegrity(ctx, recordID, currentHash, accessorID)
}

// LogAccess records an access attempt for audit purposes. It succeeds
// even when the record does not exist.
func (s *Service) LogAccess(ctx context.Context, recordID, accessorID, reason string) (*AccessResult, error) {
	txID, err := s.backend.LogAccess(ctx, recordID, accessorID, reason)
	if err != nil {
		return nil, err
	}
	return &AccessResult{TxID: txID, RecordID: recordID, Logged: true}, nil
}

// GetRecord returns a snapshot of the ledger record.
func (s *Service) GetRecord(ctx context.Context, recordID string) (*ledger.Record, error) {
	return s.backend.Get(ctx, recordID)
}

// AuditTrail returns all audit entries for the record in insertion order.
func (s *Service) AuditTrail(ctx context.Context, recordID string) ([]ledger.AuditEntry, error) {
	return s.backend.AuditTrail(ctx, recordID)
}

// QueryByStatus returns snapshots of all records with the given status.
func (s *Service) QueryByStatus(ctx context.Context, status ledger.Status) ([]ledger.Record, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ledger.ErrInvalidArgument, status)
	}
	return s.backend.QueryByStatus(ctx, status)
}

// QueryByFlag returns snapshots of all records with the given flag status.
func (s *Service) QueryByFlag(ctx context.Context, flag ledger.FlagStatus) ([]ledger.Record, error) {
	if !flag.Valid() {
		return nil, fmt.Errorf("%w: unknown flag status %q", ledger.ErrInvalidArgument, flag)
	}
	return s.backend.QueryByFlag(ctx, flag)
}

// Status reports backend mode and collection sizes for observability.
func (s *Service) Status(ctx context.Context) (*StatusInfo, error) {
	records, logs, err := s.backend.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger counts: %w", err)
	}
	return &StatusInfo{Mode: s.backend.Mode(), Records: records, Logs: logs}, nil
}

// stringField extracts a string-valued field from a raw record, tolerating
// absent or non-string values.
func stringField(record map[string]any, key string) string {
	v, ok := record[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprintf("%v", v)
}
