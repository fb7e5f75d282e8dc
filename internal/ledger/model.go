package ledger

import "time"

// Status is the review state of a census record on the ledger.
type Status string

const (
	// StatusPendingReview is the initial status. It is entered only at
	// creation time and is never a valid review decision.
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusApproved      Status = "APPROVED"
	StatusRejected      Status = "REJECTED"
	StatusNeedsVerify   Status = "NEEDS_VERIFICATION"
	StatusPriority      Status = "PRIORITY"
)

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingReview, StatusApproved, StatusRejected, StatusNeedsVerify, StatusPriority:
		return true
	}
	return false
}

// ReviewDecision reports whether s may be the outcome of a review.
// PENDING_REVIEW is reachable only through record creation.
func (s Status) ReviewDecision() bool {
	return s.Valid() && s != StatusPendingReview
}

// FlagStatus is the triage priority tag on a record, distinct from the
// review status.
type FlagStatus string

const (
	FlagNormal   FlagStatus = "NORMAL"
	FlagReview   FlagStatus = "REVIEW"
	FlagPriority FlagStatus = "PRIORITY"
)

// Valid reports whether f is one of the defined flag statuses.
func (f FlagStatus) Valid() bool {
	switch f {
	case FlagNormal, FlagReview, FlagPriority:
		return true
	}
	return false
}

// ActionType classifies an audit trail entry.
type ActionType string

const (
	ActionInitialize ActionType = "INITIALIZE"
	ActionReview     ActionType = "REVIEW"
	ActionVerify     ActionType = "VERIFY"
	ActionAccess     ActionType = "ACCESS"
)

// Record is the ledger's view of one census record.
type Record struct {
	RecordID         string     `json:"record_id"`
	DataHash         string     `json:"data_hash"`
	PreviousHash     string     `json:"previous_hash,omitempty"` // empty until the first hash-changing mutation
	OwnerHouseholdID string     `json:"owner_household_id"`
	CurrentStatus    Status     `json:"current_status"`
	FlagStatus       FlagStatus `json:"flag_status"`
	CreatedBy        string     `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
	LastUpdatedBy    string     `json:"last_updated_by"`
	LastUpdatedAt    time.Time  `json:"last_updated_at"`
	Version          int        `json:"version"`
}

// AuditEntry is one immutable fact about an action taken on a record.
// Entries are never mutated or deleted after creation.
type AuditEntry struct {
	LogID       string     `json:"log_id"`
	RecordID    string     `json:"record_id"`
	AccessorID  string     `json:"accessor_id"`
	AccessorMSP string     `json:"accessor_msp"`
	ActionType  ActionType `json:"action_type"`
	Details     string     `json:"details"`
	Timestamp   time.Time  `json:"timestamp"`
	TxID        string     `json:"tx_id"`
}

// IntegrityResult is the transient outcome of an integrity check.
// It is returned to callers and never stored.
type IntegrityResult struct {
	RecordID      string     `json:"record_id"`
	Verified      bool       `json:"verified"`
	OnChainHash   string     `json:"on_chain_hash,omitempty"`
	ProvidedHash  string     `json:"provided_hash,omitempty"`
	CurrentStatus Status     `json:"current_status,omitempty"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty"`
	Error         string     `json:"error,omitempty"`
	Timestamp     time.Time  `json:"timestamp"` // stamped at construction
}
