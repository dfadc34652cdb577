package sqlguard

import (
	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/quillio/quill-engine/pkg/sqlast"
)

// SuspiciousLiteral describes a string literal that matched an injection
// fingerprint.
type SuspiciousLiteral struct {
	Value       string
	Fingerprint string
}

// checkLiterals runs libinjection over every string literal in the
// statement's expressions. Parsed literals cannot escape their quoting, but
// a candidate stuffed with injection-shaped values is a strong signal the
// model was manipulated, so the whole query is refused.
func checkLiterals(stmt *sqlast.SelectStatement) *SuspiciousLiteral {
	var found *SuspiciousLiteral

	visit := func(e sqlast.Expr) bool {
		lit, ok := e.(*sqlast.Literal)
		if !ok || lit.Kind != sqlast.LiteralString || found != nil {
			return true
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(lit.Value); isSQLi {
			found = &SuspiciousLiteral{Value: lit.Value, Fingerprint: string(fingerprint)}
			return false
		}
		return true
	}

	for _, col := range stmt.Columns {
		walkExpr(col.Expr, visit)
	}
	walkTableExprs(stmt.From, visit)
	walkExpr(stmt.Where, visit)
	for _, g := range stmt.GroupBy {
		walkExpr(g, visit)
	}
	walkExpr(stmt.Having, visit)
	for _, o := range stmt.OrderBy {
		walkExpr(o.Expr, visit)
	}

	return found
}

// walkExpr visits every node of an expression tree in depth-first order,
// stopping early if visit returns false.
func walkExpr(e sqlast.Expr, visit func(sqlast.Expr) bool) bool {
	if e == nil {
		return true
	}
	if !visit(e) {
		return false
	}
	switch n := e.(type) {
	case *sqlast.BinaryExpr:
		return walkExpr(n.Left, visit) && walkExpr(n.Right, visit)
	case *sqlast.InList:
		if !walkExpr(n.Expr, visit) {
			return false
		}
		for _, v := range n.Values {
			if !walkExpr(v, visit) {
				return false
			}
		}
	case *sqlast.FuncCall:
		for _, a := range n.Args {
			if !walkExpr(a, visit) {
				return false
			}
		}
	case *sqlast.IsNull:
		return walkExpr(n.Expr, visit)
	}
	return true
}

// walkTableExprs visits the ON expressions of every join branch.
func walkTableExprs(t sqlast.TableExpr, visit func(sqlast.Expr) bool) {
	join, ok := t.(*sqlast.JoinClause)
	if !ok {
		return
	}
	walkTableExprs(join.Left, visit)
	walkTableExprs(join.Right, visit)
	walkExpr(join.On, visit)
}
