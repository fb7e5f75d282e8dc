// Package ledger implements the tamper-evident census record ledger.
//
// Each record carries a canonical content hash; every accepted mutation
// shifts the prior hash into PreviousHash, chaining content revisions so
// rewritten history is detectable. Every mutating or verifying operation
// appends exactly one entry to an append-only audit trail before its
// result is returned to the caller.
//
// Two implementations of the Backend interface are provided:
//   - MemoryBackend: in-process, for development and single-node use.
//   - PostgresBackend: durable, for deployments that outlive the process.
//
// A consensus-backed implementation can be substituted without changing
// callers; the contract was written to be backend-agnostic.
package ledger

import "context"

// Backend is the authoritative store of ledger records and their audit
// trail. All mutations on a given record ID are linearizable: two
// concurrent transitions never both observe the same version. Reads
// return snapshots, never live references.
type Backend interface {
	// Create anchors a new record with version 1 and status
	// PENDING_REVIEW, appends an INITIALIZE audit entry, and returns
	// the transaction ID. Fails with ErrAlreadyExists on duplicate IDs.
	Create(ctx context.Context, recordID, dataHash, householdID string, flag FlagStatus, actor string) (string, error)

	// Transition applies a review decision. newStatus must be a valid
	// non-initial status. If newHash is non-empty the current hash is
	// chained into PreviousHash before being replaced. Version always
	// increments by exactly one. Appends a REVIEW audit entry.
	Transition(ctx context.Context, recordID, actor string, newStatus Status, newHash string) (string, error)

	// CheckIntegrity compares providedHash with the stored hash and
	// appends a VERIFY audit entry whether or not the record exists or
	// the check passes. The record itself is never mutated.
	CheckIntegrity(ctx context.Context, recordID, providedHash, accessor string) (*IntegrityResult, error)

	// LogAccess unconditionally appends an ACCESS audit entry, even for
	// record IDs that do not exist; the attempt itself is the event.
	LogAccess(ctx context.Context, recordID, accessor, reason string) (string, error)

	// Get returns a snapshot of the record, or ErrNotFound.
	Get(ctx context.Context, recordID string) (*Record, error)

	// AuditTrail returns all audit entries for the record in insertion
	// order. An unknown record ID yields an empty trail, not an error.
	AuditTrail(ctx context.Context, recordID string) ([]AuditEntry, error)

	// QueryByStatus returns snapshots of all records with the status.
	QueryByStatus(ctx context.Context, status Status) ([]Record, error)

	// QueryByFlag returns snapshots of all records with the flag status.
	QueryByFlag(ctx context.Context, flag FlagStatus) ([]Record, error)

	// Counts returns the total number of records and audit entries.
	Counts(ctx context.Context) (records, logs int, err error)

	// Mode identifies the backend kind ("memory" or "postgres").
	Mode() string
}
