// Package audit provides a database-backed security audit trail for
// authorization and grant mutations. Privilege escalation attempts are
// recorded with their own event type so they can be monitored separately
// from ordinary denials.
package audit

import (
	"context"
	"time"
)

// EventType classifies an audit event
type EventType string

const (
	EventGrantCreated       EventType = "grant.created"
	EventGrantUpdated       EventType = "grant.updated"
	EventGrantRevoked       EventType = "grant.revoked"
	EventRoleChanged        EventType = "principal.role_changed"
	EventAccessDenied       EventType = "access.denied"
	EventEscalationAttempt  EventType = "access.escalation_attempt"
	EventInvariantViolation EventType = "invariant.violation"
)

// Event represents a single audit trail entry
type Event struct {
	ID          int64     `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Type        EventType `json:"type"`
	PrincipalID *int64    `json:"principal_id,omitempty"`
	TargetID    *int64    `json:"target_id,omitempty"`
	TenantID    string    `json:"tenant_id,omitempty"`
	Action      string    `json:"action,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
}

// Logger records audit events. Implementations must never fail the calling
// operation: audit write failures are logged, not propagated.
type Logger interface {
	Log(ctx context.Context, event *Event)
}

// NopLogger discards all events
type NopLogger struct{}

// Log implements Logger
func (NopLogger) Log(ctx context.Context, event *Event) {}
