package audit

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/quillio/quill-engine/pkg/auth"
	"github.com/quillio/quill-engine/pkg/models"
)

func setupTestLogger(t *testing.T) (*zap.Logger, *observer.ObservedLogs) {
	t.Helper()
	core, recorded := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)
	return logger, recorded
}

func scopedCtx(t *testing.T, ids ...string) context.Context {
	t.Helper()
	scope, err := models.NewTenantScope(ids)
	require.NoError(t, err)
	return auth.WithScope(context.Background(), scope)
}

func TestLogQueryRejected(t *testing.T) {
	tenant := "0c2d47f8-9f31-4b07-a9cc-2f8f5f1d6a01"
	conversationID := uuid.New()

	tests := []struct {
		name         string
		details      QueryRejectedDetails
		wantLevel    zapcore.Level
		wantSeverity string
	}{
		{
			name: "injection finding is critical",
			details: QueryRejectedDetails{
				Reason:      "suspicious literal",
				Query:       "SELECT * FROM tasks WHERE title = ?",
				Fingerprint: "s&1c",
			},
			wantLevel:    zapcore.ErrorLevel,
			wantSeverity: "critical",
		},
		{
			name: "policy rejection is warning",
			details: QueryRejectedDetails{
				Reason: "table not allowed",
				Query:  "SELECT * FROM pg_shadow",
			},
			wantLevel:    zapcore.WarnLevel,
			wantSeverity: "warning",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, recorded := setupTestLogger(t)
			auditor := NewSecurityAuditor(logger)

			auditor.LogQueryRejected(scopedCtx(t, tenant), conversationID, tt.details)

			entries := recorded.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.wantLevel, entries[0].Level)

			fields := entries[0].ContextMap()
			assert.Equal(t, tt.wantSeverity, fields["severity"])
			assert.Equal(t, conversationID.String(), fields["conversation_id"])

			var event SecurityEvent
			require.NoError(t, json.Unmarshal([]byte(fields["event_json"].(string)), &event))
			assert.Equal(t, EventQueryRejected, event.EventType)
			assert.Equal(t, []string{tenant}, event.TenantIDs)
		})
	}
}

func TestLogScopeDenied(t *testing.T) {
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)

	auditor.LogScopeDenied("192.168.1.100:52110", "missing scope header")

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "192.168.1.100:52110", fields["client_ip"])

	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(fields["event_json"].(string)), &event))
	assert.Equal(t, EventScopeDenied, event.EventType)
	assert.Empty(t, event.TenantIDs)
}

func TestLogQueryExecuted(t *testing.T) {
	tenant := "1a9e7c5b-3d24-4f18-8d6e-0b5a2c9e4f13"
	logger, recorded := setupTestLogger(t)
	auditor := NewSecurityAuditor(logger)
	conversationID := uuid.New()

	auditor.LogQueryExecuted(scopedCtx(t, tenant), conversationID, 42)

	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, int64(42), entries[0].ContextMap()["row_count"])
}

func TestNilAuditorIsSafe(t *testing.T) {
	var auditor *SecurityAuditor

	auditor.LogQueryRejected(context.Background(), uuid.New(), QueryRejectedDetails{})
	auditor.LogScopeDenied("", "")
	auditor.LogQueryExecuted(context.Background(), uuid.New(), 0)
}
