package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/audit"
	"github.com/quillio/quill-engine/pkg/auth"
	"github.com/quillio/quill-engine/pkg/models"
)

// ScopeHeader carries the caller's authorized tenant ids, comma separated.
// The upstream gateway resolves memberships and sets it; this service never
// sees credentials.
const ScopeHeader = "X-Tenant-Scope"

// TenantScope returns middleware that parses the scope header into a
// validated TenantScope on the request context. Requests without a usable
// scope are rejected before any handler runs. auditor may be nil.
func TenantScope(auditor *audit.SecurityAuditor, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(ScopeHeader)
			if strings.TrimSpace(raw) == "" {
				auditor.LogScopeDenied(r.RemoteAddr, "missing tenant scope header")
				rejectScope(w, "missing tenant scope")
				return
			}

			var ids []string
			for _, part := range strings.Split(raw, ",") {
				if part = strings.TrimSpace(part); part != "" {
					ids = append(ids, part)
				}
			}

			scope, err := models.NewTenantScope(ids)
			if err != nil {
				logger.Warn("rejected malformed tenant scope header",
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err))
				auditor.LogScopeDenied(r.RemoteAddr, "malformed tenant scope header")
				rejectScope(w, "invalid tenant scope")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithScope(r.Context(), scope)))
		})
	}
}

func rejectScope(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
