// Package sqlast parses a single-statement SELECT subset of PostgreSQL into
// a closed set of tagged variants. The tree covers only the constructs the
// query validator reasons about; everything else surfaces as an Unsupported
// node so downstream checks fail closed instead of silently ignoring it.
package sqlast

import (
	"fmt"
	"strings"
)

// Expr is a node in a scalar expression tree.
type Expr interface {
	// SQL renders the node back to SQL text.
	SQL() string
	exprNode()
}

// TableExpr is a node in the FROM clause: a table reference or a join.
type TableExpr interface {
	SQL() string
	tableNode()
}

// SelectStatement is the root of a parsed query.
type SelectStatement struct {
	Distinct bool
	Columns  []SelectItem
	From     TableExpr
	Where    Expr // nil when absent
	GroupBy  []Expr
	Having   Expr // nil when absent
	OrderBy  []OrderItem
	Limit    *int
	Offset   *int
}

// SelectItem is one entry of the select list.
type SelectItem struct {
	Expr  Expr
	Alias string
}

// OrderItem is one entry of the ORDER BY clause.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// TableRef is a plain table reference with an optional alias.
type TableRef struct {
	Name  string
	Alias string
}

// JoinClause combines two table expressions. Joins nest left-recursively:
// "a JOIN b JOIN c" parses as Join(Join(a,b),c).
type JoinClause struct {
	Type  string // "JOIN", "LEFT JOIN", "RIGHT JOIN", "INNER JOIN", "FULL JOIN", "CROSS JOIN"
	Left  TableExpr
	Right TableExpr
	On    Expr // nil for CROSS JOIN
}

// ColumnRef is a possibly-qualified column reference.
type ColumnRef struct {
	Table string // alias or table qualifier, may be empty
	Name  string
}

// Literal kinds.
const (
	LiteralString  = "string"
	LiteralNumber  = "number"
	LiteralBool    = "bool"
	LiteralNull    = "null"
	LiteralKeyword = "keyword" // CURRENT_DATE and friends
)

// Literal is a scalar constant. Value holds the unquoted text.
type Literal struct {
	Kind  string
	Value string
}

// BinaryExpr is an infix operation: comparisons, AND/OR, arithmetic, LIKE.
type BinaryExpr struct {
	Op    string // upper-case: "=", "<>", "<", ">", "<=", ">=", "AND", "OR", "LIKE", "ILIKE", "+", "-", "*", "/", "||"
	Left  Expr
	Right Expr
}

// InList is "expr [NOT] IN (value, ...)" with literal-only values.
type InList struct {
	Expr    Expr
	Values  []Expr
	Negated bool
}

// FuncCall is a function invocation. Star marks COUNT(*).
type FuncCall struct {
	Name     string // upper-case
	Distinct bool
	Star     bool
	Args     []Expr
}

// Star is "*" or "t.*" in a select list.
type Star struct {
	Table string
}

// IsNull is "expr IS [NOT] NULL".
type IsNull struct {
	Expr    Expr
	Negated bool
}

// Unsupported marks a construct the parser recognized but the validator has
// no rules for (subqueries, CASE, BETWEEN). It renders as its original text
// and always fails validation.
type Unsupported struct {
	Reason string
	Text   string
}

func (*ColumnRef) exprNode()   {}
func (*Literal) exprNode()     {}
func (*BinaryExpr) exprNode()  {}
func (*InList) exprNode()      {}
func (*FuncCall) exprNode()    {}
func (*Star) exprNode()        {}
func (*IsNull) exprNode()      {}
func (*Unsupported) exprNode() {}

func (*TableRef) tableNode()   {}
func (*JoinClause) tableNode() {}

// SQL renders the statement back to canonical text. Used when the validator
// rewrites a query to inject a tenant filter.
func (s *SelectStatement) SQL() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	if s.Distinct {
		b.WriteString("DISTINCT ")
	}
	for i, col := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col.Expr.SQL())
		if col.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(renderIdent(col.Alias))
		}
	}
	b.WriteString(" FROM ")
	b.WriteString(s.From.SQL())
	if s.Where != nil {
		b.WriteString(" WHERE ")
		b.WriteString(s.Where.SQL())
	}
	if len(s.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		for i, e := range s.GroupBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(e.SQL())
		}
	}
	if s.Having != nil {
		b.WriteString(" HAVING ")
		b.WriteString(s.Having.SQL())
	}
	if len(s.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(o.Expr.SQL())
			if o.Desc {
				b.WriteString(" DESC")
			}
		}
	}
	if s.Limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *s.Limit)
	}
	if s.Offset != nil {
		fmt.Fprintf(&b, " OFFSET %d", *s.Offset)
	}
	return b.String()
}

func (t *TableRef) SQL() string {
	parts := strings.Split(t.Name, ".")
	for i, p := range parts {
		parts[i] = renderIdent(p)
	}
	s := strings.Join(parts, ".")
	if t.Alias != "" {
		s += " " + renderIdent(t.Alias)
	}
	return s
}

// renderIdent writes an identifier back to SQL, quoting it when the bare
// form would case-fold, clash with a reserved word, or fail to lex as a
// single identifier. Identifiers the parser folded to lowercase render
// unchanged.
func renderIdent(name string) string {
	if isBareIdent(name) && !isReserved(name) {
		return name
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func isBareIdent(name string) bool {
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case (r >= '0' && r <= '9') || r == '$':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return name != ""
}

func (j *JoinClause) SQL() string {
	s := j.Left.SQL() + " " + j.Type + " " + j.Right.SQL()
	if j.On != nil {
		s += " ON " + j.On.SQL()
	}
	return s
}

func (c *ColumnRef) SQL() string {
	if c.Table != "" {
		return renderIdent(c.Table) + "." + renderIdent(c.Name)
	}
	return renderIdent(c.Name)
}

func (l *Literal) SQL() string {
	switch l.Kind {
	case LiteralString:
		return "'" + strings.ReplaceAll(l.Value, "'", "''") + "'"
	case LiteralNull:
		return "NULL"
	default:
		return l.Value
	}
}

func (e *BinaryExpr) SQL() string {
	return operandSQL(e.Left) + " " + e.Op + " " + operandSQL(e.Right)
}

// operandSQL parenthesizes nested binary expressions so the rendered text
// parses back to the same tree regardless of operator precedence.
func operandSQL(e Expr) string {
	if _, ok := e.(*BinaryExpr); ok {
		return "(" + e.SQL() + ")"
	}
	return e.SQL()
}

func (i *InList) SQL() string {
	var b strings.Builder
	b.WriteString(i.Expr.SQL())
	if i.Negated {
		b.WriteString(" NOT")
	}
	b.WriteString(" IN (")
	for idx, v := range i.Values {
		if idx > 0 {
			b.WriteString(", ")
		}
		b.WriteString(v.SQL())
	}
	b.WriteString(")")
	return b.String()
}

func (f *FuncCall) SQL() string {
	if f.Star {
		return f.Name + "(*)"
	}
	args := make([]string, len(f.Args))
	for i, a := range f.Args {
		args[i] = a.SQL()
	}
	prefix := ""
	if f.Distinct {
		prefix = "DISTINCT "
	}
	return f.Name + "(" + prefix + strings.Join(args, ", ") + ")"
}

func (s *Star) SQL() string {
	if s.Table != "" {
		return renderIdent(s.Table) + ".*"
	}
	return "*"
}

func (n *IsNull) SQL() string {
	if n.Negated {
		return n.Expr.SQL() + " IS NOT NULL"
	}
	return n.Expr.SQL() + " IS NULL"
}

func (u *Unsupported) SQL() string {
	return u.Text
}
