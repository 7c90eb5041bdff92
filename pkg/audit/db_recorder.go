package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// DBRecorder writes the audit trail to PostgreSQL
type DBRecorder struct {
	db *sql.DB
}

// NewDBRecorder creates a database-backed recorder and ensures the
// audit table exists
func NewDBRecorder(db *sql.DB) (*DBRecorder, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	r := &DBRecorder{db: db}
	if err := r.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure auth_audit_log table: %w", err)
	}
	return r, nil
}

func (r *DBRecorder) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS auth_audit_log (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(50) NOT NULL,
		status VARCHAR(20) NOT NULL,
		account_id BIGINT,
		username VARCHAR(255),
		source VARCHAR(30),
		outcome VARCHAR(30),
		ip_address VARCHAR(45),
		request_id VARCHAR(100),
		message TEXT,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_auth_audit_timestamp ON auth_audit_log(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_auth_audit_event_type ON auth_audit_log(event_type);
	CREATE INDEX IF NOT EXISTS idx_auth_audit_username ON auth_audit_log(username);
	`

	_, err := r.db.Exec(query)
	return err
}

// Record inserts one event
func (r *DBRecorder) Record(ctx context.Context, event *Event) error {
	stamp(event)

	query := `
		INSERT INTO auth_audit_log (
			timestamp, event_type, status, account_id, username,
			source, outcome, ip_address, request_id, message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		event.Timestamp,
		string(event.Type),
		string(event.Status),
		event.AccountID,
		event.Username,
		event.Source,
		event.Outcome,
		event.IPAddress,
		event.RequestID,
		event.Message,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// Close is a no-op; the database handle is owned by the caller
func (r *DBRecorder) Close() error {
	return nil
}
