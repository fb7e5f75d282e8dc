package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PostgresBackend persists ledger records and the audit trail to
// PostgreSQL. It honours the same per-record linearizability contract as
// MemoryBackend: mutations of a record run inside a transaction holding
// a per-record advisory lock, and the audit insert commits atomically
// with the record write.
type PostgresBackend struct {
	pool   *pgxpool.Pool
	orgMSP string
	logger *zap.Logger
	txids  txIDGenerator
}

// NewPostgresBackend creates a PostgresBackend on the given pool.
func NewPostgresBackend(pool *pgxpool.Pool, orgMSP string, logger *zap.Logger) *PostgresBackend {
	return &PostgresBackend{pool: pool, orgMSP: orgMSP, logger: logger}
}

// lockRecord takes a transaction-scoped advisory lock derived from the
// record ID. Distinct record IDs hash to distinct keys (modulo 64-bit
// collisions), so they do not contend.
func lockRecord(ctx context.Context, tx pgx.Tx, recordID string) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", recordID); err != nil {
		return fmt.Errorf("acquire record lock: %w", err)
	}
	return nil
}

func (b *PostgresBackend) insertAudit(ctx context.Context, tx pgx.Tx, recordID, accessor string, action ActionType, details, txID string, now time.Time) error {
	if _, err := tx.Exec(ctx,
		`INSERT INTO census_audit_log (record_id, accessor_id, accessor_msp, action_type, details, ts, tx_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		recordID, accessor, b.orgMSP, string(action), details, now, txID,
	); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Create implements Backend.
func (b *PostgresBackend) Create(ctx context.Context, recordID, dataHash, householdID string, flag FlagStatus, actor string) (string, error) {
	now := time.Now().UTC()
	txID := b.txids.next(now)

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`INSERT INTO census_records
		   (record_id, data_hash, owner_household_id, current_status, flag_status,
		    created_by, created_at, last_updated_by, last_updated_at, version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $6, $7, 1)`,
		recordID, dataHash, householdID, string(StatusPendingReview), string(flag), actor, now,
	); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return "", fmt.Errorf("record %s: %w", recordID, ErrAlreadyExists)
		}
		return "", fmt.Errorf("insert record: %w", err)
	}

	if err := b.insertAudit(ctx, tx, recordID, actor, ActionInitialize, "Record initialized on ledger", txID, now); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit create: %w", err)
	}

	b.logger.Debug("record anchored",
		zap.String("record_id", recordID),
		zap.String("tx_id", txID),
	)
	return txID, nil
}

// Transition implements Backend.
func (b *PostgresBackend) Transition(ctx context.Context, recordID, actor string, newStatus Status, newHash string) (string, error) {
	if !newStatus.ReviewDecision() {
		return "", fmt.Errorf("%w: status %q is not a valid review decision", ErrInvalidArgument, newStatus)
	}

	now := time.Now().UTC()
	txID := b.txids.next(now)

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lockRecord(ctx, tx, recordID); err != nil {
		return "", err
	}

	var tag pgconn.CommandTag
	if newHash != "" {
		tag, err = tx.Exec(ctx,
			`UPDATE census_records
			 SET previous_hash = data_hash, data_hash = $2, current_status = $3,
			     last_updated_by = $4, last_updated_at = $5, version = version + 1
			 WHERE record_id = $1`,
			recordID, newHash, string(newStatus), actor, now,
		)
	} else {
		tag, err = tx.Exec(ctx,
			`UPDATE census_records
			 SET current_status = $2, last_updated_by = $3, last_updated_at = $4,
			     version = version + 1
			 WHERE record_id = $1`,
			recordID, string(newStatus), actor, now,
		)
	}
	if err != nil {
		return "", fmt.Errorf("update record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", fmt.Errorf("record %s: %w", recordID, ErrNotFound)
	}

	if err := b.insertAudit(ctx, tx, recordID, actor, ActionReview, fmt.Sprintf("Decision: %s", newStatus), txID, now); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit transition: %w", err)
	}

	b.logger.Debug("record reviewed",
		zap.String("record_id", recordID),
		zap.String("decision", string(newStatus)),
		zap.String("tx_id", txID),
	)
	return txID, nil
}

// CheckIntegrity implements Backend.
func (b *PostgresBackend) CheckIntegrity(ctx context.Context, recordID, providedHash, accessor string) (*IntegrityResult, error) {
	now := time.Now().UTC()
	txID := b.txids.next(now)

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := lockRecord(ctx, tx, recordID); err != nil {
		return nil, err
	}

	var (
		dataHash      string
		currentStatus string
		lastUpdatedAt time.Time
	)
	err = tx.QueryRow(ctx,
		"SELECT data_hash, current_status, last_updated_at FROM census_records WHERE record_id = $1",
		recordID,
	).Scan(&dataHash, &currentStatus, &lastUpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		if err := b.insertAudit(ctx, tx, recordID, accessor, ActionVerify, "Integrity check: FAILED (record not found)", txID, now); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("commit verify: %w", err)
		}
		return &IntegrityResult{
			RecordID:     recordID,
			Verified:     false,
			ProvidedHash: providedHash,
			Error:        "record not found on ledger",
			Timestamp:    now,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}

	verified := dataHash == providedHash
	outcome := "FAILED"
	if verified {
		outcome = "PASSED"
	}
	if err := b.insertAudit(ctx, tx, recordID, accessor, ActionVerify, fmt.Sprintf("Integrity check: %s", outcome), txID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit verify: %w", err)
	}

	return &IntegrityResult{
		RecordID:      recordID,
		Verified:      verified,
		OnChainHash:   dataHash,
		ProvidedHash:  providedHash,
		CurrentStatus: Status(currentStatus),
		LastUpdatedAt: &lastUpdatedAt,
		Timestamp:     now,
	}, nil
}

// LogAccess implements Backend.
func (b *PostgresBackend) LogAccess(ctx context.Context, recordID, accessor, reason string) (string, error) {
	now := time.Now().UTC()
	txID := b.txids.next(now)

	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := b.insertAudit(ctx, tx, recordID, accessor, ActionAccess, reason, txID, now); err != nil {
		return "", err
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit access log: %w", err)
	}
	return txID, nil
}

const recordColumns = `record_id, data_hash, COALESCE(previous_hash, ''), owner_household_id,
	current_status, flag_status, created_by, created_at, last_updated_by, last_updated_at, version`

func scanRecord(row pgx.Row) (*Record, error) {
	rec := &Record{}
	var status, flag string
	if err := row.Scan(
		&rec.RecordID, &rec.DataHash, &rec.PreviousHash, &rec.OwnerHouseholdID,
		&status, &flag, &rec.CreatedBy, &rec.CreatedAt,
		&rec.LastUpdatedBy, &rec.LastUpdatedAt, &rec.Version,
	); err != nil {
		return nil, err
	}
	rec.CurrentStatus = Status(status)
	rec.FlagStatus = FlagStatus(flag)
	return rec, nil
}

// Get implements Backend.
func (b *PostgresBackend) Get(ctx context.Context, recordID string) (*Record, error) {
	rec, err := scanRecord(b.pool.QueryRow(ctx,
		"SELECT "+recordColumns+" FROM census_records WHERE record_id = $1", recordID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", recordID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// AuditTrail implements Backend.
func (b *PostgresBackend) AuditTrail(ctx context.Context, recordID string) ([]AuditEntry, error) {
	rows, err := b.pool.Query(ctx,
		`SELECT 'LOG_' || record_id || '_' || seq::text, record_id, accessor_id, accessor_msp,
		        action_type, details, ts, tx_id
		 FROM census_audit_log WHERE record_id = $1 ORDER BY seq ASC`, recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var action string
		if err := rows.Scan(&e.LogID, &e.RecordID, &e.AccessorID, &e.AccessorMSP, &action, &e.Details, &e.Timestamp, &e.TxID); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ActionType = ActionType(action)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (b *PostgresBackend) queryRecords(ctx context.Context, where string, arg any) ([]Record, error) {
	rows, err := b.pool.Query(ctx,
		"SELECT "+recordColumns+" FROM census_records WHERE "+where+" ORDER BY created_at ASC", arg,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// QueryByStatus implements Backend.
func (b *PostgresBackend) QueryByStatus(ctx context.Context, status Status) ([]Record, error) {
	return b.queryRecords(ctx, "current_status = $1", string(status))
}

// QueryByFlag implements Backend.
func (b *PostgresBackend) QueryByFlag(ctx context.Context, flag FlagStatus) ([]Record, error) {
	return b.queryRecords(ctx, "flag_status = $1", string(flag))
}

// Counts implements Backend.
func (b *PostgresBackend) Counts(ctx context.Context) (int, int, error) {
	var records, logs int
	if err := b.pool.QueryRow(ctx, "SELECT COUNT(*) FROM census_records").Scan(&records); err != nil {
		return 0, 0, fmt.Errorf("count records: %w", err)
	}
	if err := b.pool.QueryRow(ctx, "SELECT COUNT(*) FROM census_audit_log").Scan(&logs); err != nil {
		return 0, 0, fmt.Errorf("count audit entries: %w", err)
	}
	return records, logs, nil
}

// Mode implements Backend.
func (b *PostgresBackend) Mode() string { return "postgres" }
