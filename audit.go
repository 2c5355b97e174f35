package identity

import (
	"context"
	"time"
)

// AuditEventType enumerates the account events the core reports.
type AuditEventType string

const (
	AuditEventSignInSuccess    AuditEventType = "identity.signin.success"
	AuditEventSignInFailure    AuditEventType = "identity.signin.failure"
	AuditEventSignInLockedOut  AuditEventType = "identity.signin.locked_out"
	AuditEventLockoutTriggered AuditEventType = "identity.lockout.triggered"
	AuditEventPasswordChanged  AuditEventType = "identity.password.changed"
	AuditEventUserCreated      AuditEventType = "identity.user.created"
	AuditEventUserDeleted      AuditEventType = "identity.user.deleted"
)

// AuditEvent captures audit-friendly information about an account action.
type AuditEvent struct {
	EventType  AuditEventType
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// AuditSink consumes audit events for logging or telemetry. Sink failures
// never fail the operation that produced the event, they are logged and
// dropped.
type AuditSink interface {
	Record(ctx context.Context, event AuditEvent) error
}

// AuditSinkFunc adapts a function to the AuditSink interface.
type AuditSinkFunc func(ctx context.Context, event AuditEvent) error

// Record implements AuditSink.
func (f AuditSinkFunc) Record(ctx context.Context, event AuditEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

// WithAuditSink attaches a sink that receives account events.
func (m *Manager[U]) WithAuditSink(sink AuditSink) *Manager[U] {
	if sink != nil {
		m.auditSink = sink
	}
	return m
}

func (m *Manager[U]) recordAudit(ctx context.Context, eventType AuditEventType, userID string, metadata map[string]any) {
	if m.auditSink == nil {
		return
	}
	event := AuditEvent{
		EventType:  eventType,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: m.now(),
	}
	if err := m.auditSink.Record(ctx, event); err != nil {
		m.logger.Warn("audit sink rejected %s event: %v", eventType, err)
	}
}
