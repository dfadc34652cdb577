package sqlguard

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/logging"
	"github.com/quillio/quill-engine/pkg/models"
	"github.com/quillio/quill-engine/pkg/sqlast"
)

// Config fixes the validator's security posture. All three fields come from
// deployment configuration, never from request input.
type Config struct {
	// AllowedTables is the complete set of table names a query may touch.
	AllowedTables []string
	// TenantColumn is the column that scopes rows to a tenant.
	TenantColumn string
	// TenantTables are the allow-listed tables carrying the tenant column
	// directly; targets for tenant-filter injection.
	TenantTables []string
}

// Validator turns untrusted candidate SQL into an accepted, tenant-scoped
// statement or an error. It holds no per-request state and is safe for
// concurrent use.
type Validator struct {
	allowed      map[string]struct{}
	tenantTables map[string]struct{}
	tenantColumn string
	logger       *zap.Logger
}

// Verdict is an accepted query: the final SQL (original or rewritten), its
// parsed form, and whether a tenant filter was injected.
type Verdict struct {
	SQL       string
	Stmt      *sqlast.SelectStatement
	Rewritten bool
}

// NewValidator builds a validator from fixed configuration.
func NewValidator(cfg Config, logger *zap.Logger) *Validator {
	allowed := make(map[string]struct{}, len(cfg.AllowedTables))
	for _, t := range cfg.AllowedTables {
		allowed[strings.ToLower(t)] = struct{}{}
	}
	tenantTables := make(map[string]struct{}, len(cfg.TenantTables))
	for _, t := range cfg.TenantTables {
		tenantTables[strings.ToLower(t)] = struct{}{}
	}
	return &Validator{
		allowed:      allowed,
		tenantTables: tenantTables,
		tenantColumn: cfg.TenantColumn,
		logger:       logger.Named("sqlguard"),
	}
}

// Validate runs the full pipeline: normalize, parse, shape check, table
// allow-listing, literal heuristics, and tenant-scope verification. When the
// WHERE tree is unscoped it attempts a single rewrite, injecting a tenant
// filter on the one tenant-bearing table in the query, and re-validates the
// rewritten text from scratch. Re-validating an accepted verdict's SQL
// yields the identical string: filters are never injected twice.
func (v *Validator) Validate(query string, scope models.TenantScope) (*Verdict, error) {
	if scope.IsEmpty() {
		return nil, ErrMissingTenantScope
	}

	stmt, normalized, err := v.parseAndCheck(query)
	if err != nil {
		return nil, err
	}

	if v.scoped(stmt.Where, scope) {
		return &Verdict{SQL: normalized, Stmt: stmt}, nil
	}

	rewritten, ok := v.rewrite(stmt, scope)
	if !ok {
		return nil, ErrMissingTenantScope
	}
	v.logger.Debug("injected tenant filter",
		zap.String("query", logging.SanitizeQuery(rewritten)))

	stmt2, normalized2, err := v.parseAndCheck(rewritten)
	if err != nil {
		return nil, fmt.Errorf("rewritten query failed validation: %w", err)
	}
	if !v.scoped(stmt2.Where, scope) {
		return nil, ErrMissingTenantScope
	}
	return &Verdict{SQL: normalized2, Stmt: stmt2, Rewritten: true}, nil
}

// parseAndCheck covers everything except the tenant-scope walk.
func (v *Validator) parseAndCheck(query string) (*sqlast.SelectStatement, string, error) {
	normalized, err := Normalize(query)
	if err != nil {
		return nil, "", err
	}
	if normalized == "" {
		return nil, "", fmt.Errorf("%w: empty query", ErrSyntax)
	}

	stmt, err := sqlast.Parse(normalized)
	if err != nil {
		var notSelect *sqlast.NotSelectError
		var unsupported *sqlast.UnsupportedError
		switch {
		case errors.As(err, &notSelect):
			return nil, "", fmt.Errorf("%w: %s statement", ErrUnsafeOperation, notSelect.Verb)
		case errors.As(err, &unsupported):
			return nil, "", fmt.Errorf("%w: %s", ErrUnsafeOperation, unsupported.Construct)
		default:
			return nil, "", fmt.Errorf("%w: %v", ErrSyntax, err)
		}
	}

	if err := v.checkTables(stmt.From); err != nil {
		return nil, "", err
	}

	if sus := checkLiterals(stmt); sus != nil {
		v.logger.Warn("suspicious literal in candidate query",
			zap.String("fingerprint", sus.Fingerprint))
		return nil, "", &SuspiciousLiteralError{Fingerprint: sus.Fingerprint}
	}

	return stmt, normalized, nil
}

// checkTables walks the FROM clause and every join branch, requiring each
// referenced table to be allow-listed.
func (v *Validator) checkTables(t sqlast.TableExpr) error {
	switch n := t.(type) {
	case *sqlast.TableRef:
		if _, ok := v.allowed[canonicalTable(n.Name)]; !ok {
			return &DisallowedTableError{Table: n.Name}
		}
		return nil
	case *sqlast.JoinClause:
		if err := v.checkTables(n.Left); err != nil {
			return err
		}
		return v.checkTables(n.Right)
	default:
		return fmt.Errorf("%w: unrecognized table expression", ErrUnsafeOperation)
	}
}

// scoped reports whether the expression provably restricts every reachable
// row to the caller's tenants. A scoping predicate anywhere in a conjunction
// suffices; both sides of a disjunction must be independently scoped, since
// an unscoped disjunct would bypass the filter. Anything the walk does not
// recognize is unscoped.
func (v *Validator) scoped(e sqlast.Expr, scope models.TenantScope) bool {
	switch n := e.(type) {
	case *sqlast.BinaryExpr:
		switch n.Op {
		case "AND":
			return v.scoped(n.Left, scope) || v.scoped(n.Right, scope)
		case "OR":
			return v.scoped(n.Left, scope) && v.scoped(n.Right, scope)
		case "=":
			col, lit := columnLiteralPair(n.Left, n.Right)
			if col == nil {
				return false
			}
			return v.isTenantColumn(col) &&
				lit.Kind == sqlast.LiteralString &&
				scope.Contains(lit.Value)
		}
	case *sqlast.InList:
		col, ok := n.Expr.(*sqlast.ColumnRef)
		if !ok || n.Negated || !v.isTenantColumn(col) || len(n.Values) == 0 {
			return false
		}
		// Every listed id must be authorized: a mixed list would match
		// rows of tenants outside the scope.
		for _, val := range n.Values {
			lit, ok := val.(*sqlast.Literal)
			if !ok || lit.Kind != sqlast.LiteralString || !scope.Contains(lit.Value) {
				return false
			}
		}
		return true
	}
	return false
}

// rewrite injects a tenant predicate when exactly one tenant-bearing table
// appears in the query's FROM/JOIN set. Ambiguity (zero or multiple
// candidates) means no rewrite: the query is rejected instead.
func (v *Validator) rewrite(stmt *sqlast.SelectStatement, scope models.TenantScope) (string, bool) {
	type carrier struct {
		ref string // alias when present, table name otherwise
	}
	var carriers []carrier

	var collect func(t sqlast.TableExpr)
	collect = func(t sqlast.TableExpr) {
		switch n := t.(type) {
		case *sqlast.TableRef:
			if _, ok := v.tenantTables[canonicalTable(n.Name)]; ok {
				ref := n.Alias
				if ref == "" {
					ref = n.Name
				}
				carriers = append(carriers, carrier{ref: ref})
			}
		case *sqlast.JoinClause:
			collect(n.Left)
			collect(n.Right)
		}
	}
	collect(stmt.From)

	if len(carriers) != 1 {
		return "", false
	}

	col := &sqlast.ColumnRef{Table: carriers[0].ref, Name: v.tenantColumn}
	ids := scope.IDs()

	var pred sqlast.Expr
	if len(ids) == 1 {
		pred = &sqlast.BinaryExpr{
			Op:    "=",
			Left:  col,
			Right: &sqlast.Literal{Kind: sqlast.LiteralString, Value: ids[0]},
		}
	} else {
		in := &sqlast.InList{Expr: col}
		for _, id := range ids {
			in.Values = append(in.Values, &sqlast.Literal{Kind: sqlast.LiteralString, Value: id})
		}
		pred = in
	}

	if stmt.Where == nil {
		stmt.Where = pred
	} else {
		stmt.Where = &sqlast.BinaryExpr{Op: "AND", Left: stmt.Where, Right: pred}
	}
	return stmt.SQL(), true
}

func (v *Validator) isTenantColumn(col *sqlast.ColumnRef) bool {
	return strings.EqualFold(col.Name, v.tenantColumn)
}

// columnLiteralPair matches "col op lit" in either operand order.
func columnLiteralPair(left, right sqlast.Expr) (*sqlast.ColumnRef, *sqlast.Literal) {
	if col, ok := left.(*sqlast.ColumnRef); ok {
		if lit, ok := right.(*sqlast.Literal); ok {
			return col, lit
		}
	}
	if col, ok := right.(*sqlast.ColumnRef); ok {
		if lit, ok := left.(*sqlast.Literal); ok {
			return col, lit
		}
	}
	return nil, nil
}

// canonicalTable lowercases and strips an explicit public schema qualifier.
func canonicalTable(name string) string {
	lower := strings.ToLower(name)
	return strings.TrimPrefix(lower, "public.")
}

var aggregateFuncs = map[string]struct{}{
	"COUNT": {}, "SUM": {}, "AVG": {}, "MIN": {}, "MAX": {},
}

// IsAggregate reports whether every select-list item is an aggregate
// expression or a grouped column, meaning the result cardinality is bounded
// by the grouping rather than the table size. The executor exempts such
// queries from the row cap.
func IsAggregate(stmt *sqlast.SelectStatement) bool {
	if len(stmt.Columns) == 0 {
		return false
	}
	grouped := make(map[string]struct{}, len(stmt.GroupBy))
	for _, g := range stmt.GroupBy {
		grouped[g.SQL()] = struct{}{}
	}
	for _, item := range stmt.Columns {
		if !aggregated(item.Expr, grouped) {
			return false
		}
	}
	return true
}

func aggregated(e sqlast.Expr, grouped map[string]struct{}) bool {
	if e == nil {
		return false
	}
	if _, ok := grouped[e.SQL()]; ok {
		return true
	}
	switch n := e.(type) {
	case *sqlast.Literal:
		return true
	case *sqlast.FuncCall:
		if _, ok := aggregateFuncs[n.Name]; ok {
			return true
		}
		for _, a := range n.Args {
			if !aggregated(a, grouped) {
				return false
			}
		}
		return len(n.Args) > 0
	case *sqlast.BinaryExpr:
		return aggregated(n.Left, grouped) && aggregated(n.Right, grouped)
	}
	return false
}
