package sqlast

import (
	"fmt"
	"strconv"
	"strings"
)

// NotSelectError reports a statement whose leading verb is not SELECT.
type NotSelectError struct {
	Verb string
}

func (e *NotSelectError) Error() string {
	return fmt.Sprintf("statement is not a SELECT (found %q)", e.Verb)
}

// UnsupportedError reports a construct the grammar refuses outright because
// it could smuggle table access past the validator (subqueries, CASE,
// EXISTS) or alter data.
type UnsupportedError struct {
	Construct string
}

func (e *UnsupportedError) Error() string {
	return "unsupported SQL construct: " + e.Construct
}

// reserved words that terminate an implicit alias.
var reservedWords = map[string]struct{}{
	"SELECT": {}, "FROM": {}, "WHERE": {}, "GROUP": {}, "ORDER": {}, "HAVING": {},
	"LIMIT": {}, "OFFSET": {}, "JOIN": {}, "LEFT": {}, "RIGHT": {}, "INNER": {},
	"FULL": {}, "CROSS": {}, "OUTER": {}, "ON": {}, "AND": {}, "OR": {}, "NOT": {},
	"AS": {}, "ASC": {}, "DESC": {}, "IN": {}, "IS": {}, "NULL": {}, "LIKE": {},
	"ILIKE": {}, "BETWEEN": {}, "DISTINCT": {}, "ALL": {}, "BY": {}, "UNION": {},
	"CASE": {}, "EXISTS": {},
}

type parser struct {
	tokens []token
	pos    int
}

// Parse parses a single SELECT statement. Statements with any other leading
// verb yield a NotSelectError; constructs outside the supported grammar
// yield an UnsupportedError; everything else malformed yields a plain error.
func Parse(input string) (*SelectStatement, error) {
	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}

	first := p.peek()
	if first.kind == tokenEOF {
		return nil, fmt.Errorf("empty statement")
	}
	if !p.peekKeyword("SELECT") {
		verb := first.text
		if first.kind != tokenIdent {
			return nil, fmt.Errorf("expected SELECT, found %q", verb)
		}
		return nil, &NotSelectError{Verb: strings.ToUpper(verb)}
	}

	stmt, err := p.parseSelect()
	if err != nil {
		return nil, err
	}

	if tok := p.peek(); tok.kind != tokenEOF {
		if tok.kind == tokenSymbol && tok.text == ";" {
			return nil, fmt.Errorf("unexpected %q: multiple statements are not allowed", ";")
		}
		if tok.kind == tokenIdent && strings.EqualFold(tok.text, "UNION") {
			return nil, &UnsupportedError{Construct: "UNION"}
		}
		return nil, fmt.Errorf("unexpected trailing input starting at %q", tok.text)
	}
	return stmt, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) peekKeyword(kw string) bool {
	tok := p.peek()
	return tok.kind == tokenIdent && strings.EqualFold(tok.text, kw)
}

func (p *parser) acceptKeyword(kw string) bool {
	if p.peekKeyword(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return fmt.Errorf("expected %s, found %q", kw, p.peek().text)
	}
	return nil
}

func (p *parser) peekSymbol(sym string) bool {
	tok := p.peek()
	return tok.kind == tokenSymbol && tok.text == sym
}

func (p *parser) acceptSymbol(sym string) bool {
	if p.peekSymbol(sym) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectSymbol(sym string) error {
	if !p.acceptSymbol(sym) {
		return fmt.Errorf("expected %q, found %q", sym, p.peek().text)
	}
	return nil
}

func (p *parser) parseSelect() (*SelectStatement, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}

	stmt := &SelectStatement{}
	if p.acceptKeyword("DISTINCT") {
		stmt.Distinct = true
	} else {
		p.acceptKeyword("ALL")
	}

	for {
		item, err := p.parseSelectItem()
		if err != nil {
			return nil, err
		}
		stmt.Columns = append(stmt.Columns, item)
		if !p.acceptSymbol(",") {
			break
		}
	}

	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	from, err := p.parseTableExpr()
	if err != nil {
		return nil, err
	}
	stmt.From = from

	if p.acceptKeyword("WHERE") {
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}

	if p.acceptKeyword("GROUP") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.GroupBy = append(stmt.GroupBy, e)
			if !p.acceptSymbol(",") {
				break
			}
		}
	}

	if p.acceptKeyword("HAVING") {
		having, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Having = having
	}

	if p.acceptKeyword("ORDER") {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item := OrderItem{Expr: e}
			if p.acceptKeyword("DESC") {
				item.Desc = true
			} else {
				p.acceptKeyword("ASC")
			}
			stmt.OrderBy = append(stmt.OrderBy, item)
			if !p.acceptSymbol(",") {
				break
			}
		}
	}

	if p.acceptKeyword("LIMIT") {
		n, err := p.parseIntValue("LIMIT")
		if err != nil {
			return nil, err
		}
		stmt.Limit = &n
	}

	if p.acceptKeyword("OFFSET") {
		n, err := p.parseIntValue("OFFSET")
		if err != nil {
			return nil, err
		}
		stmt.Offset = &n
	}

	return stmt, nil
}

func (p *parser) parseIntValue(clause string) (int, error) {
	tok := p.next()
	if tok.kind != tokenNumber {
		return 0, fmt.Errorf("expected number after %s, found %q", clause, tok.text)
	}
	n, err := strconv.Atoi(tok.text)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q", clause, tok.text)
	}
	return n, nil
}

func (p *parser) parseSelectItem() (SelectItem, error) {
	if p.acceptSymbol("*") {
		return SelectItem{Expr: &Star{}}, nil
	}

	expr, err := p.parseExpr()
	if err != nil {
		return SelectItem{}, err
	}
	item := SelectItem{Expr: expr}

	if p.acceptKeyword("AS") {
		tok := p.next()
		if tok.kind != tokenIdent && tok.kind != tokenQuotedIdent {
			return SelectItem{}, fmt.Errorf("expected alias after AS, found %q", tok.text)
		}
		item.Alias = identText(tok)
	} else if tok := p.peek(); tok.kind == tokenIdent && !isReserved(tok.text) {
		p.pos++
		item.Alias = identText(tok)
	}
	return item, nil
}

func (p *parser) parseTableExpr() (TableExpr, error) {
	left, err := p.parseTableRef()
	if err != nil {
		return nil, err
	}

	for {
		var joinType string
		switch {
		case p.acceptSymbol(","):
			joinType = "CROSS JOIN"
		case p.peekKeyword("JOIN"):
			p.pos++
			joinType = "JOIN"
		case p.peekKeyword("INNER"):
			p.pos++
			if err := p.expectKeyword("JOIN"); err != nil {
				return nil, err
			}
			joinType = "INNER JOIN"
		case p.peekKeyword("LEFT"), p.peekKeyword("RIGHT"), p.peekKeyword("FULL"):
			dir := strings.ToUpper(p.next().text)
			p.acceptKeyword("OUTER")
			if err := p.expectKeyword("JOIN"); err != nil {
				return nil, err
			}
			joinType = dir + " JOIN"
		case p.peekKeyword("CROSS"):
			p.pos++
			if err := p.expectKeyword("JOIN"); err != nil {
				return nil, err
			}
			joinType = "CROSS JOIN"
		default:
			return left, nil
		}

		right, err := p.parseTableRef()
		if err != nil {
			return nil, err
		}

		join := &JoinClause{Type: joinType, Left: left, Right: right}
		if joinType != "CROSS JOIN" {
			if err := p.expectKeyword("ON"); err != nil {
				return nil, err
			}
			on, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			join.On = on
		}
		left = join
	}
}

func (p *parser) parseTableRef() (TableExpr, error) {
	if p.peekSymbol("(") {
		// Derived tables would let a query read tables the walker never
		// sees, so the grammar refuses them outright.
		return nil, &UnsupportedError{Construct: "derived table (subquery in FROM)"}
	}

	tok := p.next()
	if tok.kind != tokenIdent && tok.kind != tokenQuotedIdent {
		return nil, fmt.Errorf("expected table name, found %q", tok.text)
	}
	name := identText(tok)
	if p.acceptSymbol(".") {
		part := p.next()
		if part.kind != tokenIdent && part.kind != tokenQuotedIdent {
			return nil, fmt.Errorf("expected identifier after %q.", name)
		}
		name = name + "." + identText(part)
	}

	ref := &TableRef{Name: name}
	if p.acceptKeyword("AS") {
		alias := p.next()
		if alias.kind != tokenIdent && alias.kind != tokenQuotedIdent {
			return nil, fmt.Errorf("expected alias after AS, found %q", alias.text)
		}
		ref.Alias = identText(alias)
	} else if tok := p.peek(); tok.kind == tokenIdent && !isReserved(tok.text) {
		p.pos++
		ref.Alias = identText(tok)
	}
	return ref, nil
}

func (p *parser) parseExpr() (Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.acceptKeyword("AND") {
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.acceptKeyword("NOT") {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		// Negation inverts whatever it wraps, so it can never count as a
		// scoping predicate. Kept as an opaque node: scoped() is false.
		return &Unsupported{Reason: "NOT", Text: "NOT " + operandSQL(inner)}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}

	negated := false
	if tok := p.peek(); tok.kind == tokenIdent && strings.EqualFold(tok.text, "NOT") {
		// infix NOT: "x NOT IN", "x NOT LIKE", "x NOT BETWEEN"
		next := p.tokens[p.pos+1]
		if next.kind == tokenIdent {
			switch strings.ToUpper(next.text) {
			case "IN", "LIKE", "ILIKE", "BETWEEN":
				p.pos++
				negated = true
			}
		}
	}

	switch {
	case p.acceptKeyword("IS"):
		isNot := p.acceptKeyword("NOT")
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return &IsNull{Expr: left, Negated: isNot}, nil

	case p.acceptKeyword("IN"):
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		if p.peekKeyword("SELECT") {
			return nil, &UnsupportedError{Construct: "subquery in IN"}
		}
		in := &InList{Expr: left, Negated: negated}
		for {
			v, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			in.Values = append(in.Values, v)
			if !p.acceptSymbol(",") {
				break
			}
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return in, nil

	case p.acceptKeyword("BETWEEN"):
		lo, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		hi, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		text := left.SQL() + " BETWEEN " + lo.SQL() + " AND " + hi.SQL()
		if negated {
			text = left.SQL() + " NOT BETWEEN " + lo.SQL() + " AND " + hi.SQL()
		}
		return &Unsupported{Reason: "BETWEEN", Text: text}, nil

	case p.peekKeyword("LIKE"), p.peekKeyword("ILIKE"):
		op := strings.ToUpper(p.next().text)
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		if negated {
			return &Unsupported{
				Reason: "NOT " + op,
				Text:   operandSQL(left) + " NOT " + op + " " + operandSQL(right),
			}, nil
		}
		return &BinaryExpr{Op: op, Left: left, Right: right}, nil
	}

	if negated {
		return nil, fmt.Errorf("unexpected NOT before %q", p.peek().text)
	}

	if tok := p.peek(); tok.kind == tokenSymbol {
		switch tok.text {
		case "=", "<", ">", "<=", ">=", "<>", "!=":
			p.pos++
			op := tok.text
			if op == "!=" {
				op = "<>"
			}
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &BinaryExpr{Op: op, Left: left, Right: right}, nil
		}
	}

	return left, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokenSymbol || (tok.text != "+" && tok.text != "-" && tok.text != "||") {
			return left, nil
		}
		p.pos++
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: tok.text, Left: left, Right: right}
	}
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		tok := p.peek()
		if tok.kind != tokenSymbol || (tok.text != "*" && tok.text != "/" && tok.text != "%") {
			return left, nil
		}
		p.pos++
		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: tok.text, Left: left, Right: right}
	}
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.peek()

	switch tok.kind {
	case tokenString:
		p.pos++
		return &Literal{Kind: LiteralString, Value: tok.text}, nil

	case tokenNumber:
		p.pos++
		return &Literal{Kind: LiteralNumber, Value: tok.text}, nil

	case tokenSymbol:
		switch tok.text {
		case "(":
			p.pos++
			if p.peekKeyword("SELECT") {
				return nil, &UnsupportedError{Construct: "scalar subquery"}
			}
			inner, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return inner, nil
		case "-":
			p.pos++
			num := p.next()
			if num.kind != tokenNumber {
				return nil, fmt.Errorf("expected number after unary minus, found %q", num.text)
			}
			return &Literal{Kind: LiteralNumber, Value: "-" + num.text}, nil
		}
		return nil, fmt.Errorf("unexpected token %q", tok.text)

	case tokenIdent, tokenQuotedIdent:
		upper := strings.ToUpper(tok.text)
		if tok.kind == tokenIdent {
			switch upper {
			case "NULL":
				p.pos++
				return &Literal{Kind: LiteralNull, Value: "NULL"}, nil
			case "TRUE", "FALSE":
				p.pos++
				return &Literal{Kind: LiteralBool, Value: upper}, nil
			case "CURRENT_DATE", "CURRENT_TIMESTAMP", "CURRENT_TIME", "LOCALTIMESTAMP":
				p.pos++
				return &Literal{Kind: LiteralKeyword, Value: upper}, nil
			case "CASE":
				return nil, &UnsupportedError{Construct: "CASE expression"}
			case "EXISTS":
				return nil, &UnsupportedError{Construct: "EXISTS"}
			case "SELECT":
				return nil, &UnsupportedError{Construct: "nested SELECT"}
			}
		}
		p.pos++

		// function call
		if tok.kind == tokenIdent && p.peekSymbol("(") {
			return p.parseFuncCall(upper)
		}

		// qualified reference: t.col or t.*
		if p.acceptSymbol(".") {
			if p.acceptSymbol("*") {
				return &Star{Table: identText(tok)}, nil
			}
			col := p.next()
			if col.kind != tokenIdent && col.kind != tokenQuotedIdent {
				return nil, fmt.Errorf("expected column after %q.", tok.text)
			}
			return &ColumnRef{Table: identText(tok), Name: identText(col)}, nil
		}
		return &ColumnRef{Name: identText(tok)}, nil
	}

	return nil, fmt.Errorf("unexpected end of input")
}

func (p *parser) parseFuncCall(name string) (Expr, error) {
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	fn := &FuncCall{Name: name}

	if p.acceptSymbol("*") {
		fn.Star = true
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return fn, nil
	}
	if p.acceptSymbol(")") {
		return fn, nil
	}
	if p.acceptKeyword("DISTINCT") {
		fn.Distinct = true
	}
	for {
		if p.peekKeyword("SELECT") {
			return nil, &UnsupportedError{Construct: "subquery in function arguments"}
		}
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		fn.Args = append(fn.Args, arg)
		if !p.acceptSymbol(",") {
			break
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return fn, nil
}

func isReserved(word string) bool {
	_, ok := reservedWords[strings.ToUpper(word)]
	return ok
}

// identText is the AST form of an identifier token. Unquoted identifiers
// fold to lowercase the way Postgres folds them; quoted identifiers keep
// their exact text.
func identText(tok token) string {
	if tok.kind == tokenQuotedIdent {
		return tok.text
	}
	return strings.ToLower(tok.text)
}
