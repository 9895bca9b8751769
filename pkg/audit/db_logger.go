package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cityatlas/cityatlas/pkg/observability"
)

// DBLogger implements audit logging to PostgreSQL
type DBLogger struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewDBLogger creates a new database-backed audit logger
func NewDBLogger(db *sql.DB, logger *observability.Logger) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	l := &DBLogger{db: db, logger: logger}
	if err := l.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure audit_events table: %w", err)
	}

	return l, nil
}

// ensureTable creates the audit_events table if it doesn't exist
func (l *DBLogger) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS audit_events (
		id BIGSERIAL PRIMARY KEY,
		timestamp TIMESTAMP WITH TIME ZONE NOT NULL,
		event_type VARCHAR(100) NOT NULL,
		principal_id BIGINT,
		target_id BIGINT,
		tenant_id VARCHAR(64),
		action VARCHAR(64),
		detail TEXT,
		request_id VARCHAR(100),
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_events_event_type ON audit_events(event_type);
	CREATE INDEX IF NOT EXISTS idx_audit_events_tenant_id ON audit_events(tenant_id);
	CREATE INDEX IF NOT EXISTS idx_audit_events_principal_id ON audit_events(principal_id);
	`

	_, err := l.db.Exec(query)
	return err
}

// Log records an audit event. Failures are logged and swallowed so a broken
// audit trail never blocks the underlying operation.
func (l *DBLogger) Log(ctx context.Context, event *Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = observability.GetRequestID(ctx)
	}

	query := `
		INSERT INTO audit_events (timestamp, event_type, principal_id, target_id, tenant_id, action, detail, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := l.db.ExecContext(ctx, query,
		event.Timestamp, event.Type, event.PrincipalID, event.TargetID,
		nullString(event.TenantID), nullString(event.Action), nullString(event.Detail),
		nullString(event.RequestID),
	)
	if err != nil && l.logger != nil {
		l.logger.WithError(err).WithField("event_type", string(event.Type)).Error("failed to write audit event")
	}
}

// RecentByTenant returns the most recent events for a tenant
func (l *DBLogger) RecentByTenant(ctx context.Context, tenantID string, limit int) ([]*Event, error) {
	query := `
		SELECT id, timestamp, event_type, principal_id, target_id, tenant_id, action, detail, request_id
		FROM audit_events
		WHERE tenant_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`
	rows, err := l.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var tenant, action, detail, requestID sql.NullString
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Type, &e.PrincipalID, &e.TargetID,
			&tenant, &action, &detail, &requestID); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		e.TenantID = tenant.String
		e.Action = action.String
		e.Detail = detail.String
		e.RequestID = requestID.String
		events = append(events, e)
	}

	return events, rows.Err()
}

// Cleanup removes events older than the retention window.
// Returns the number of rows removed for job logging.
func (l *DBLogger) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	query := `DELETE FROM audit_events WHERE timestamp < $1`
	result, err := l.db.ExecContext(ctx, query, time.Now().Add(-retention))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit events: %w", err)
	}
	return result.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
