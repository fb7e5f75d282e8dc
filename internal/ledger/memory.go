package ledger

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// lockStripes is the size of the sharded lock table. Mutations on the
// same record ID always hit the same stripe, so per-record
// read-modify-write cycles are serialized without a ledger-wide lock.
const lockStripes = 64

// MemoryBackend is an in-memory, thread-safe Backend implementation.
// State does not survive a process restart; it emulates the contract a
// consensus-backed ledger would honour, for development and single-node
// deployments.
type MemoryBackend struct {
	orgMSP string
	logger *zap.Logger
	txids  txIDGenerator

	// mu guards the records map and the audit slice. It is held only
	// for the in-memory reads and writes themselves; the stripe lock
	// for a record ID is what serializes its read-modify-write cycle.
	mu      sync.RWMutex
	records map[string]*Record
	audit   []AuditEntry

	stripes [lockStripes]sync.Mutex
}

// NewMemoryBackend creates an empty MemoryBackend. orgMSP is the
// organizational provenance tag stamped on every audit entry.
func NewMemoryBackend(orgMSP string, logger *zap.Logger) *MemoryBackend {
	return &MemoryBackend{
		orgMSP:  orgMSP,
		logger:  logger,
		records: make(map[string]*Record),
	}
}

func (b *MemoryBackend) stripe(recordID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(recordID)) //nolint:errcheck
	return &b.stripes[h.Sum32()%lockStripes]
}

// appendAudit appends one audit entry. Callers must hold b.mu.
func (b *MemoryBackend) appendAudit(recordID, accessor string, action ActionType, details, txID string, now time.Time) {
	b.audit = append(b.audit, AuditEntry{
		LogID:       fmt.Sprintf("LOG_%s_%d", recordID, len(b.audit)),
		RecordID:    recordID,
		AccessorID:  accessor,
		AccessorMSP: b.orgMSP,
		ActionType:  action,
		Details:     details,
		Timestamp:   now,
		TxID:        txID,
	})
}

// Create implements Backend.
func (b *MemoryBackend) Create(_ context.Context, recordID, dataHash, householdID string, flag FlagStatus, actor string) (string, error) {
	s := b.stripe(recordID)
	s.Lock()
	defer s.Unlock()

	now := time.Now().UTC()

	b.mu.RLock()
	_, exists := b.records[recordID]
	b.mu.RUnlock()
	if exists {
		return "", fmt.Errorf("record %s: %w", recordID, ErrAlreadyExists)
	}

	rec := &Record{
		RecordID:         recordID,
		DataHash:         dataHash,
		OwnerHouseholdID: householdID,
		CurrentStatus:    StatusPendingReview,
		FlagStatus:       flag,
		CreatedBy:        actor,
		CreatedAt:        now,
		LastUpdatedBy:    actor,
		LastUpdatedAt:    now,
		Version:          1,
	}

	txID := b.txids.next(now)

	// Record insert and audit append are published together so readers
	// never observe one without the other.
	b.mu.Lock()
	b.records[recordID] = rec
	b.appendAudit(recordID, actor, ActionInitialize, "Record initialized on ledger", txID, now)
	b.mu.Unlock()

	b.logger.Debug("record anchored",
		zap.String("record_id", recordID),
		zap.String("tx_id", txID),
	)
	return txID, nil
}

// Transition implements Backend.
func (b *MemoryBackend) Transition(_ context.Context, recordID, actor string, newStatus Status, newHash string) (string, error) {
	if !newStatus.ReviewDecision() {
		return "", fmt.Errorf("%w: status %q is not a valid review decision", ErrInvalidArgument, newStatus)
	}

	s := b.stripe(recordID)
	s.Lock()
	defer s.Unlock()

	now := time.Now().UTC()

	// The stripe lock serializes this read-modify-write against other
	// mutations of the same record; b.mu is held only for the reads and
	// writes themselves.
	b.mu.RLock()
	rec, ok := b.records[recordID]
	var updated Record
	if ok {
		updated = *rec
	}
	b.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("record %s: %w", recordID, ErrNotFound)
	}

	updated.CurrentStatus = newStatus
	updated.LastUpdatedBy = actor
	updated.LastUpdatedAt = now
	updated.Version++
	if newHash != "" {
		updated.PreviousHash = updated.DataHash
		updated.DataHash = newHash
	}

	txID := b.txids.next(now)

	b.mu.Lock()
	b.records[recordID] = &updated
	b.appendAudit(recordID, actor, ActionReview, fmt.Sprintf("Decision: %s", newStatus), txID, now)
	b.mu.Unlock()

	b.logger.Debug("record reviewed",
		zap.String("record_id", recordID),
		zap.String("decision", string(newStatus)),
		zap.Int("version", updated.Version),
		zap.String("tx_id", txID),
	)
	return txID, nil
}

// CheckIntegrity implements Backend. Every check, including one against
// a missing record, leaves a VERIFY entry in the audit trail.
func (b *MemoryBackend) CheckIntegrity(_ context.Context, recordID, providedHash, accessor string) (*IntegrityResult, error) {
	s := b.stripe(recordID)
	s.Lock()
	defer s.Unlock()

	now := time.Now().UTC()

	b.mu.RLock()
	rec, ok := b.records[recordID]
	var snapshot Record
	if ok {
		snapshot = *rec
	}
	b.mu.RUnlock()

	if !ok {
		b.mu.Lock()
		b.appendAudit(recordID, accessor, ActionVerify, "Integrity check: FAILED (record not found)", b.txids.next(now), now)
		b.mu.Unlock()
		return &IntegrityResult{
			RecordID:     recordID,
			Verified:     false,
			ProvidedHash: providedHash,
			Error:        "record not found on ledger",
			Timestamp:    now,
		}, nil
	}

	verified := snapshot.DataHash == providedHash
	outcome := "FAILED"
	if verified {
		outcome = "PASSED"
	}

	b.mu.Lock()
	b.appendAudit(recordID, accessor, ActionVerify, fmt.Sprintf("Integrity check: %s", outcome), b.txids.next(now), now)
	b.mu.Unlock()

	last := snapshot.LastUpdatedAt
	return &IntegrityResult{
		RecordID:      recordID,
		Verified:      verified,
		OnChainHash:   snapshot.DataHash,
		ProvidedHash:  providedHash,
		CurrentStatus: snapshot.CurrentStatus,
		LastUpdatedAt: &last,
		Timestamp:     now,
	}, nil
}

// LogAccess implements Backend. It never fails on a missing record:
// access attempts on invalid IDs are themselves security-relevant.
func (b *MemoryBackend) LogAccess(_ context.Context, recordID, accessor, reason string) (string, error) {
	now := time.Now().UTC()

	b.mu.Lock()
	defer b.mu.Unlock()

	txID := b.txids.next(now)
	b.appendAudit(recordID, accessor, ActionAccess, reason, txID, now)
	return txID, nil
}

// Get implements Backend.
func (b *MemoryBackend) Get(_ context.Context, recordID string) (*Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rec, ok := b.records[recordID]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", recordID, ErrNotFound)
	}
	snapshot := *rec
	return &snapshot, nil
}

// AuditTrail implements Backend.
func (b *MemoryBackend) AuditTrail(_ context.Context, recordID string) ([]AuditEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var entries []AuditEntry
	for _, e := range b.audit {
		if e.RecordID == recordID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// QueryByStatus implements Backend.
func (b *MemoryBackend) QueryByStatus(_ context.Context, status Status) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Record
	for _, rec := range b.records {
		if rec.CurrentStatus == status {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// QueryByFlag implements Backend.
func (b *MemoryBackend) QueryByFlag(_ context.Context, flag FlagStatus) ([]Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Record
	for _, rec := range b.records {
		if rec.FlagStatus == flag {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// Counts implements Backend.
func (b *MemoryBackend) Counts(_ context.Context) (int, int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records), len(b.audit), nil
}

// Mode implements Backend.
func (b *MemoryBackend) Mode() string { return "memory" }
