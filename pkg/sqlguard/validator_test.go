package sqlguard

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/models"
	"github.com/quillio/quill-engine/pkg/sqlast"
)

const (
	tenantA = "11111111-1111-1111-1111-111111111111"
	tenantB = "22222222-2222-2222-2222-222222222222"
	tenantC = "33333333-3333-3333-3333-333333333333"
)

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	return NewValidator(Config{
		AllowedTables: []string{"teams", "projects", "tasks", "users"},
		TenantColumn:  "team_id",
		TenantTables:  []string{"projects", "users"},
	}, zap.NewNop())
}

func scopeOf(t *testing.T, ids ...string) models.TenantScope {
	t.Helper()
	scope, err := models.NewTenantScope(ids)
	if err != nil {
		t.Fatalf("bad scope: %v", err)
	}
	return scope
}

func TestValidateAcceptsScopedQuery(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA)

	sql := "SELECT name FROM projects WHERE team_id = '" + tenantA + "'"
	verdict, err := v.Validate(sql, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.SQL != sql {
		t.Errorf("accepted SQL changed: %q -> %q", sql, verdict.SQL)
	}
	if verdict.Rewritten {
		t.Error("no rewrite should have occurred")
	}
}

func TestValidateIdempotent(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA)

	sql := "SELECT t.name FROM tasks t JOIN projects p ON t.project_id = p.id WHERE t.status = 'open'"
	first, err := v.Validate(sql, scope)
	if err != nil {
		t.Fatalf("first validation failed: %v", err)
	}
	if !first.Rewritten {
		t.Fatal("expected a tenant-filter rewrite")
	}

	second, err := v.Validate(first.SQL, scope)
	if err != nil {
		t.Fatalf("re-validation failed: %v", err)
	}
	if second.Rewritten {
		t.Error("re-validation must not inject a second filter")
	}
	if second.SQL != first.SQL {
		t.Errorf("re-validation changed SQL: %q -> %q", first.SQL, second.SQL)
	}
}

func TestValidateRewriteInjectsTenantFilter(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA)

	sql := "SELECT t.name, t.due_date FROM tasks t JOIN projects p ON t.project_id = p.id WHERE t.due_date < CURRENT_DATE"
	verdict, err := v.Validate(sql, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verdict.Rewritten {
		t.Fatal("expected rewrite")
	}
	want := "p.team_id = '" + tenantA + "'"
	if !strings.Contains(verdict.SQL, want) {
		t.Errorf("rewritten SQL %q does not contain %q", verdict.SQL, want)
	}
}

func TestValidateRewriteUsesInListForMultipleTenants(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA, tenantB)

	verdict, err := v.Validate("SELECT name FROM projects", scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verdict.Rewritten {
		t.Fatal("expected rewrite")
	}
	if !strings.Contains(verdict.SQL, "IN ('"+tenantA+"', '"+tenantB+"')") {
		t.Errorf("rewritten SQL %q lacks IN list over the scope", verdict.SQL)
	}
}

func TestValidateRejectsAmbiguousRewrite(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA)

	// Both projects and users carry the tenant column: ambiguous target.
	sql := "SELECT p.name, u.email FROM projects p JOIN users u ON p.owner_id = u.id"
	_, err := v.Validate(sql, scope)
	if !errors.Is(err, ErrMissingTenantScope) {
		t.Fatalf("got %v, want ErrMissingTenantScope", err)
	}
}

func TestValidateRejectsNoRewriteTarget(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA)

	// teams carries no tenant column per configuration; nothing to scope.
	_, err := v.Validate("SELECT name FROM teams", scope)
	if !errors.Is(err, ErrMissingTenantScope) {
		t.Fatalf("got %v, want ErrMissingTenantScope", err)
	}
}

func TestValidateORSafety(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA)

	// A scoped predicate appears, but the unscoped disjunct would bypass it.
	sql := "SELECT name FROM projects WHERE team_id = '" + tenantA + "' OR status = 'x'"
	_, err := v.Validate(sql, scope)
	if !errors.Is(err, ErrMissingTenantScope) {
		t.Fatalf("got %v, want ErrMissingTenantScope", err)
	}
}

func TestValidateORBothSidesScoped(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA, tenantB)

	sql := "SELECT name FROM projects WHERE (team_id = '" + tenantA + "' AND status = 'active') OR (team_id = '" + tenantB + "' AND status = 'archived')"
	verdict, err := v.Validate(sql, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Rewritten {
		t.Error("both disjuncts are scoped; no rewrite expected")
	}
}

func TestValidateRejectsForeignTenantLiteral(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA)

	sql := "SELECT name FROM projects WHERE team_id = '" + tenantB + "'"
	_, err := v.Validate(sql, scope)
	if !errors.Is(err, ErrMissingTenantScope) {
		t.Fatalf("got %v, want ErrMissingTenantScope", err)
	}
}

func TestValidateInListScoping(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA, tenantB)

	tests := []struct {
		name    string
		where   string
		wantErr bool
	}{
		{
			name:  "all ids authorized",
			where: "team_id IN ('" + tenantA + "', '" + tenantB + "')",
		},
		{
			name:  "subset authorized",
			where: "team_id IN ('" + tenantA + "')",
		},
		{
			name:    "mixed list with foreign id",
			where:   "team_id IN ('" + tenantA + "', '" + tenantC + "')",
			wantErr: true,
		},
		{
			name:    "negated",
			where:   "team_id NOT IN ('" + tenantA + "')",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql := "SELECT name FROM projects WHERE " + tt.where
			verdict, err := v.Validate(sql, scope)
			if tt.wantErr {
				// These fall through to the rewrite path, which appends a
				// proper filter; the original predicate alone must not count.
				if err == nil && !verdict.Rewritten {
					t.Errorf("predicate %q accepted without rewrite", tt.where)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if verdict.Rewritten {
				t.Errorf("predicate %q should be scoped as written", tt.where)
			}
		})
	}
}

func TestValidateScopedInConjunctionAnywhere(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA)

	sql := "SELECT name FROM projects WHERE status = 'active' AND (archived = FALSE AND team_id = '" + tenantA + "')"
	verdict, err := v.Validate(sql, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if verdict.Rewritten {
		t.Error("deeply nested scoping predicate should suffice")
	}
}

func TestValidateRejectsDisallowedTable(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA)

	tests := []string{
		"SELECT * FROM secrets",
		"SELECT t.name FROM tasks t JOIN audit_log a ON t.id = a.task_id WHERE t.team_id = '" + tenantA + "'",
		"SELECT * FROM projects, billing",
	}
	for _, sql := range tests {
		_, err := v.Validate(sql, scope)
		var dte *DisallowedTableError
		if !errors.As(err, &dte) {
			t.Errorf("Validate(%q) = %v, want DisallowedTableError", sql, err)
		}
	}
}

func TestValidateRejectsUnsafeStatements(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA)

	tests := []string{
		"UPDATE projects SET name = 'x'",
		"DELETE FROM tasks",
		"DROP TABLE projects",
		"SELECT * FROM projects WHERE id IN (SELECT id FROM secrets)",
		"SELECT * FROM (SELECT * FROM projects) p",
	}
	for _, sql := range tests {
		_, err := v.Validate(sql, scope)
		if !errors.Is(err, ErrUnsafeOperation) {
			t.Errorf("Validate(%q) = %v, want ErrUnsafeOperation", sql, err)
		}
	}
}

func TestValidateRejectsMultipleStatements(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA)

	sql := "SELECT name FROM projects WHERE team_id = '" + tenantA + "'; DROP TABLE projects"
	_, err := v.Validate(sql, scope)
	if !errors.Is(err, ErrMultipleStatements) {
		t.Fatalf("got %v, want ErrMultipleStatements", err)
	}
}

func TestValidateTrailingSemicolonAccepted(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA)

	sql := "SELECT name FROM projects WHERE team_id = '" + tenantA + "';"
	verdict, err := v.Validate(sql, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.HasSuffix(verdict.SQL, ";") {
		t.Errorf("trailing semicolon not stripped: %q", verdict.SQL)
	}
}

func TestValidateRejectsSyntaxErrors(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA)

	for _, sql := range []string{"", "   ", "SELECT FROM WHERE", "not sql at all ((("} {
		_, err := v.Validate(sql, scope)
		if !errors.Is(err, ErrSyntax) {
			t.Errorf("Validate(%q) = %v, want ErrSyntax", sql, err)
		}
	}
}

func TestValidateRejectsInjectionShapedLiteral(t *testing.T) {
	v := newTestValidator(t)
	scope := scopeOf(t, tenantA)

	sql := "SELECT name FROM projects WHERE team_id = '" + tenantA + "' AND name = '1'' OR ''1''=''1'"
	_, err := v.Validate(sql, scope)
	if !errors.Is(err, ErrSuspiciousLiteral) {
		t.Fatalf("got %v, want ErrSuspiciousLiteral", err)
	}
}

func TestValidateEmptyScopeRejected(t *testing.T) {
	v := newTestValidator(t)

	_, err := v.Validate("SELECT name FROM projects", models.TenantScope{})
	if !errors.Is(err, ErrMissingTenantScope) {
		t.Fatalf("got %v, want ErrMissingTenantScope", err)
	}
}

func TestIsAggregate(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want bool
	}{
		{"count star", "SELECT COUNT(*) FROM tasks", true},
		{"grouped with aggregate", "SELECT status, COUNT(*) FROM tasks GROUP BY status", true},
		{"sum expression", "SELECT SUM(estimate) / COUNT(*) FROM tasks", true},
		{"plain columns", "SELECT name, due_date FROM tasks", false},
		{"star", "SELECT * FROM tasks", false},
		{"ungrouped column alongside aggregate", "SELECT name, COUNT(*) FROM tasks", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := sqlast.Parse(tt.sql)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if got := IsAggregate(stmt); got != tt.want {
				t.Errorf("IsAggregate(%q) = %v, want %v", tt.sql, got, tt.want)
			}
		})
	}
}
