// Package audit provides security audit logging for SIEM consumption.
// Events are emitted as structured JSON so rejected queries and scope
// violations can be alerted on independently of application logs.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/auth"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventQueryRejected is logged when the validator refuses a generated query.
	EventQueryRejected SecurityEventType = "query_rejected"
	// EventScopeDenied is logged when a request arrives without a usable tenant scope.
	EventScopeDenied SecurityEventType = "scope_denied"
	// EventQueryExecuted is logged for accepted query execution. High volume.
	EventQueryExecuted SecurityEventType = "query_executed"
)

// SecurityEvent is one auditable event with the context a SIEM needs.
type SecurityEvent struct {
	Timestamp      time.Time         `json:"timestamp"`
	EventType      SecurityEventType `json:"event_type"`
	ConversationID uuid.UUID         `json:"conversation_id,omitempty"`
	TenantIDs      []string          `json:"tenant_ids,omitempty"`
	ClientIP       string            `json:"client_ip,omitempty"`
	Details        any               `json:"details"`
	Severity       string            `json:"severity"` // info, warning, critical
}

// QueryRejectedDetails describes why a candidate query was refused. The
// query text is expected to be pre-sanitized by the caller.
type QueryRejectedDetails struct {
	Reason      string `json:"reason"`
	Query       string `json:"query"`
	Fingerprint string `json:"fingerprint,omitempty"` // libinjection fingerprint when present
}

// SecurityAuditor logs security events under a dedicated logger namespace
// so SIEM pipelines can filter on it.
type SecurityAuditor struct {
	logger *zap.Logger
}

func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogQueryRejected records a validator rejection. Injection findings carry a
// fingerprint and are logged at ERROR with "critical" severity; everything
// else is a warning.
func (a *SecurityAuditor) LogQueryRejected(ctx context.Context, conversationID uuid.UUID, details QueryRejectedDetails) {
	if a == nil {
		return
	}

	severity := "warning"
	if details.Fingerprint != "" {
		severity = "critical"
	}

	event := SecurityEvent{
		Timestamp:      time.Now().UTC(),
		EventType:      EventQueryRejected,
		ConversationID: conversationID,
		TenantIDs:      tenantIDs(ctx),
		Details:        details,
		Severity:       severity,
	}
	eventJSON, _ := json.Marshal(event)

	fields := []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("conversation_id", conversationID.String()),
		zap.String("reason", details.Reason),
		zap.String("severity", severity),
	}
	if severity == "critical" {
		a.logger.Error("Generated query rejected", fields...)
	} else {
		a.logger.Warn("Generated query rejected", fields...)
	}
}

// LogScopeDenied records a request refused for missing or malformed tenant
// scope. Logged at WARN; repeated denials from one address suggest probing.
func (a *SecurityAuditor) LogScopeDenied(clientIP, reason string) {
	if a == nil {
		return
	}

	event := SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventScopeDenied,
		ClientIP:  clientIP,
		Details:   map[string]string{"reason": reason},
		Severity:  "warning",
	}
	eventJSON, _ := json.Marshal(event)

	a.logger.Warn("Request denied for tenant scope",
		zap.String("event_json", string(eventJSON)),
		zap.String("client_ip", clientIP),
		zap.String("reason", reason),
		zap.String("severity", "warning"),
	)
}

// LogQueryExecuted records an accepted query run for the audit trail.
func (a *SecurityAuditor) LogQueryExecuted(ctx context.Context, conversationID uuid.UUID, rowCount int) {
	if a == nil {
		return
	}

	event := SecurityEvent{
		Timestamp:      time.Now().UTC(),
		EventType:      EventQueryExecuted,
		ConversationID: conversationID,
		TenantIDs:      tenantIDs(ctx),
		Details:        map[string]int{"row_count": rowCount},
		Severity:       "info",
	}
	eventJSON, _ := json.Marshal(event)

	a.logger.Info("Query executed",
		zap.String("event_json", string(eventJSON)),
		zap.String("conversation_id", conversationID.String()),
		zap.Int("row_count", rowCount),
		zap.String("severity", "info"),
	)
}

func tenantIDs(ctx context.Context) []string {
	scope, ok := auth.ScopeFromContext(ctx)
	if !ok {
		return nil
	}
	return scope.IDs()
}
