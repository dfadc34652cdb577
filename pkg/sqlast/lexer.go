package sqlast

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenQuotedIdent
	tokenString
	tokenNumber
	tokenSymbol
)

type token struct {
	kind tokenKind
	text string // keywords keep original case; upper() at comparison sites
	pos  int
}

// lex tokenizes the input, stripping line and block comments. A verb hidden
// in a comment therefore never reaches the parser as text.
func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	n := len(input)

	for i < n {
		c := input[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '-' && i+1 < n && input[i+1] == '-':
			for i < n && input[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && input[i+1] == '*':
			end := strings.Index(input[i+2:], "*/")
			if end < 0 {
				return nil, fmt.Errorf("unterminated block comment at offset %d", i)
			}
			i += 2 + end + 2

		case c == '\'':
			start := i
			i++
			var sb strings.Builder
			closed := false
			for i < n {
				if input[i] == '\'' {
					if i+1 < n && input[i+1] == '\'' {
						sb.WriteByte('\'')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteByte(input[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string literal at offset %d", start)
			}
			tokens = append(tokens, token{kind: tokenString, text: sb.String(), pos: start})

		case c == '"':
			start := i
			i++
			var sb strings.Builder
			closed := false
			for i < n {
				if input[i] == '"' {
					if i+1 < n && input[i+1] == '"' {
						sb.WriteByte('"')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				sb.WriteByte(input[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated quoted identifier at offset %d", start)
			}
			tokens = append(tokens, token{kind: tokenQuotedIdent, text: sb.String(), pos: start})

		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(input[i]) {
				i++
			}
			tokens = append(tokens, token{kind: tokenIdent, text: input[start:i], pos: start})

		case c >= '0' && c <= '9':
			start := i
			for i < n && (input[i] >= '0' && input[i] <= '9' || input[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: input[start:i], pos: start})

		default:
			start := i
			// two-character operators first
			if i+1 < n {
				two := input[i : i+2]
				switch two {
				case "<=", ">=", "<>", "!=", "||":
					tokens = append(tokens, token{kind: tokenSymbol, text: two, pos: start})
					i += 2
					continue
				}
			}
			switch c {
			case ',', '(', ')', '.', '=', '<', '>', '+', '-', '*', '/', '%', ';':
				tokens = append(tokens, token{kind: tokenSymbol, text: string(c), pos: start})
				i++
			default:
				if unicode.IsPrint(rune(c)) {
					return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
				}
				return nil, fmt.Errorf("unexpected byte 0x%02x at offset %d", c, i)
			}
		}
	}

	tokens = append(tokens, token{kind: tokenEOF, pos: n})
	return tokens, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}
