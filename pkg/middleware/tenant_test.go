package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/auth"
)

func TestTenantScopeMiddleware(t *testing.T) {
	const (
		teamA = "11111111-1111-1111-1111-111111111111"
		teamB = "22222222-2222-2222-2222-222222222222"
	)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantIDs    []string
	}{
		{
			name:       "single tenant",
			header:     teamA,
			wantStatus: http.StatusOK,
			wantIDs:    []string{teamA},
		},
		{
			name:       "multiple tenants with spaces",
			header:     teamA + ", " + teamB,
			wantStatus: http.StatusOK,
			wantIDs:    []string{teamA, teamB},
		},
		{
			name:       "duplicates collapsed",
			header:     teamA + "," + teamA,
			wantStatus: http.StatusOK,
			wantIDs:    []string{teamA},
		},
		{
			name:       "missing header",
			header:     "",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "malformed id",
			header:     "not-a-uuid",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "injection attempt",
			header:     teamA + "' OR '1'='1",
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotIDs []string
			handler := TenantScope(nil, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				scope, ok := auth.ScopeFromContext(r.Context())
				if !ok {
					t.Error("scope missing from context")
				}
				gotIDs = scope.IDs()
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/assistant/chat", nil)
			if tt.header != "" {
				req.Header.Set(ScopeHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if len(gotIDs) != len(tt.wantIDs) {
				t.Fatalf("scope ids = %v, want %v", gotIDs, tt.wantIDs)
			}
			for i := range gotIDs {
				if gotIDs[i] != tt.wantIDs[i] {
					t.Errorf("scope ids = %v, want %v", gotIDs, tt.wantIDs)
				}
			}
		})
	}
}
