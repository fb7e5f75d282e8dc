// Package client provides a Go SDK for the census ledger HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// APIError is returned when the ledger responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger API error (%d): %s", e.StatusCode, e.Message)
}

// Record mirrors the ledger record snapshot returned by the API.
type Record struct {
	RecordID         string    `json:"record_id"`
	DataHash         string    `json:"data_hash"`
	PreviousHash     string    `json:"previous_hash,omitempty"`
	OwnerHouseholdID string    `json:"owner_household_id"`
	CurrentStatus    string    `json:"current_status"`
	FlagStatus       string    `json:"flag_status"`
	CreatedBy        string    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
	LastUpdatedBy    string    `json:"last_updated_by"`
	LastUpdatedAt    time.Time `json:"last_updated_at"`
	Version          int       `json:"version"`
}

// AuditEntry mirrors one audit trail entry.
type AuditEntry struct {
	LogID       string    `json:"log_id"`
	RecordID    string    `json:"record_id"`
	AccessorID  string    `json:"accessor_id"`
	AccessorMSP string    `json:"accessor_msp"`
	ActionType  string    `json:"action_type"`
	Details     string    `json:"details"`
	Timestamp   time.Time `json:"timestamp"`
	TxID        string    `json:"tx_id"`
}

// AnchorResult is returned by Anchor.
type AnchorResult struct {
	TxID     string `json:"tx_id"`
	RecordID string `json:"record_id"`
	DataHash string `json:"data_hash"`
	Status   string `json:"status"`
}

// ReviewResult is returned by Review.
type ReviewResult struct {
	TxID      string `json:"tx_id"`
	RecordID  string `json:"record_id"`
	NewStatus string `json:"new_status"`
	NewHash   string `json:"new_hash,omitempty"`
}

// VerifyResult is returned by Verify.
type VerifyResult struct {
	RecordID      string     `json:"record_id"`
	Verified      bool       `json:"verified"`
	OnChainHash   string     `json:"on_chain_hash,omitempty"`
	ProvidedHash  string     `json:"provided_hash,omitempty"`
	CurrentStatus string     `json:"current_status,omitempty"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty"`
	Error         string     `json:"error,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

// AccessResult is returned by LogAccess.
type AccessResult struct {
	TxID     string `json:"tx_id"`
	RecordID string `json:"record_id"`
	Logged   bool   `json:"logged"`
}

// LedgerStatus is returned by Status.
type LedgerStatus struct {
	Mode    string `json:"mode"`
	Records int    `json:"records_count"`
	Logs    int    `json:"logs_count"`
}

// Client is the census ledger SDK entry point.
type Client struct {
	base       string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client for the ledger at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:       strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Anchor computes-and-anchors a census record on the ledger.
func (c *Client) Anchor(ctx context.Context, record map[string]any, actorID string) (*AnchorResult, error) {
	var out AnchorResult
	err := c.do(ctx, http.MethodPost, "/api/v1/records", map[string]any{
		"record":   record,
		"actor_id": actorID,
	}, &out)
	return &out, err
}

// Review submits a review decision, optionally with a corrected record.
func (c *Client) Review(ctx context.Context, recordID, reviewerID, decision string, updatedRecord map[string]any) (*ReviewResult, error) {
	body := map[string]any{
		"reviewer_id": reviewerID,
		"decision":    decision,
	}
	if updatedRecord != nil {
		body["updated_record"] = updatedRecord
	}
	var out ReviewResult
	err := c.do(ctx, http.MethodPost, "/api/v1/records/"+url.PathEscape(recordID)+"/review", body, &out)
	return &out, err
}

// Verify checks the supplied record snapshot against the on-chain hash.
func (c *Client) Verify(ctx context.Context, recordID string, record map[string]any, accessorID string) (*VerifyResult, error) {
	var out VerifyResult
	err := c.do(ctx, http.MethodPost, "/api/v1/records/"+url.PathEscape(recordID)+"/verify", map[string]any{
		"accessor_id": accessorID,
		"record":      record,
	}, &out)
	return &out, err
}

// LogAccess records an access attempt against a record.
func (c *Client) LogAccess(ctx context.Context, recordID, accessorID, reason string) (*AccessResult, error) {
	var out AccessResult
	err := c.do(ctx, http.MethodPost, "/api/v1/records/"+url.PathEscape(recordID)+"/access", map[string]any{
		"accessor_id": accessorID,
		"reason":      reason,
	}, &out)
	return &out, err
}

// GetRecord fetches a ledger record snapshot.
func (c *Client) GetRecord(ctx context.Context, recordID string) (*Record, error) {
	var out Record
	err := c.do(ctx, http.MethodGet, "/api/v1/records/"+url.PathEscape(recordID), nil, &out)
	return &out, err
}

// AuditTrail fetches all audit entries for a record in insertion order.
func (c *Client) AuditTrail(ctx context.Context, recordID string) ([]AuditEntry, error) {
	var out struct {
		Entries []AuditEntry `json:"entries"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/records/"+url.PathEscape(recordID)+"/audit", nil, &out)
	return out.Entries, err
}

// QueryByStatus lists records with the given review status.
func (c *Client) QueryByStatus(ctx context.Context, status string) ([]Record, error) {
	var out struct {
		Records []Record `json:"records"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/records?status="+url.QueryEscape(status), nil, &out)
	return out.Records, err
}

// QueryByFlag lists records with the given flag status.
func (c *Client) QueryByFlag(ctx context.Context, flag string) ([]Record, error) {
	var out struct {
		Records []Record `json:"records"`
	}
	err := c.do(ctx, http.MethodGet, "/api/v1/records?flag="+url.QueryEscape(flag), nil, &out)
	return out.Records, err
}

// Status fetches operational metadata from the ledger.
func (c *Client) Status(ctx context.Context) (*LedgerStatus, error) {
	var out LedgerStatus
	err := c.do(ctx, http.MethodGet, "/api/v1/ledger/status", nil, &out)
	return &out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := resp.Status
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
