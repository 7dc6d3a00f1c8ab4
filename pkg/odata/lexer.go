package odata

import (
	"strconv"
	"strings"
	"time"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokDateTime
	tokGUID
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokenKind
	text string // ident name or decoded literal text
	num  float64
	i64  int64
	flt  bool // number carries a fractional part
	t    time.Time
	pos  int
}

type lexer struct {
	option string // option name for error messages
	input  string
	pos    int
	toks   []token
}

func lex(option, input string) ([]token, error) {
	l := &lexer{option: option, input: input}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.toks, nil
}

func (l *lexer) run() error {
	for {
		l.skipSpace()
		if l.pos >= len(l.input) {
			l.emit(token{kind: tokEOF, pos: l.pos})
			return nil
		}
		start := l.pos
		c := l.input[l.pos]
		switch {
		case c == '(':
			l.pos++
			l.emit(token{kind: tokLParen, pos: start})
		case c == ')':
			l.pos++
			l.emit(token{kind: tokRParen, pos: start})
		case c == ',':
			l.pos++
			l.emit(token{kind: tokComma, pos: start})
		case c == '\'':
			s, err := l.quoted()
			if err != nil {
				return err
			}
			l.emit(token{kind: tokString, text: s, pos: start})
		case isDigit(c) || (c == '-' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1])):
			if err := l.numberOrDate(start); err != nil {
				return err
			}
		case isIdentStart(c):
			if err := l.identOrTyped(start); err != nil {
				return err
			}
		default:
			return syntaxErr(l.option, start, "unexpected character %q", c)
		}
	}
}

func (l *lexer) emit(t token) {
	l.toks = append(l.toks, t)
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t') {
		l.pos++
	}
}

// quoted consumes a single-quoted string; '' escapes a quote.
func (l *lexer) quoted() (string, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '\'' {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
				sb.WriteByte('\'')
				l.pos += 2
				continue
			}
			l.pos++
			return sb.String(), nil
		}
		sb.WriteByte(c)
		l.pos++
	}
	return "", syntaxErr(l.option, start, "unterminated string literal")
}

// numberOrDate consumes a digit-led literal and classifies it as an integer,
// a float, or an ISO 8601 datetime.
func (l *lexer) numberOrDate(start int) error {
	for l.pos < len(l.input) && isLiteralChar(l.input[l.pos]) {
		l.pos++
	}
	text := l.input[start:l.pos]

	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		l.emit(token{kind: tokNumber, i64: i, num: float64(i), pos: start})
		return nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		l.emit(token{kind: tokNumber, num: f, flt: true, pos: start})
		return nil
	}
	if t, ok := parseDateTime(text); ok {
		l.emit(token{kind: tokDateTime, text: text, t: t, pos: start})
		return nil
	}
	return syntaxErr(l.option, start, "invalid literal %q", text)
}

// identOrTyped consumes an identifier; datetime'...' and guid'...' become
// typed literals.
func (l *lexer) identOrTyped(start int) error {
	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.pos++
	}
	name := l.input[start:l.pos]

	if l.pos < len(l.input) && l.input[l.pos] == '\'' {
		switch strings.ToLower(name) {
		case "datetime", "datetimeoffset":
			s, err := l.quoted()
			if err != nil {
				return err
			}
			t, ok := parseDateTime(s)
			if !ok {
				return syntaxErr(l.option, start, "invalid datetime literal %q", s)
			}
			l.emit(token{kind: tokDateTime, text: s, t: t, pos: start})
			return nil
		case "guid":
			s, err := l.quoted()
			if err != nil {
				return err
			}
			l.emit(token{kind: tokGUID, text: s, pos: start})
			return nil
		}
	}

	l.emit(token{kind: tokIdent, text: name, pos: start})
	return nil
}

func parseDateTime(s string) (time.Time, bool) {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

// isLiteralChar covers digit-led literals: numbers and ISO datetimes.
func isLiteralChar(c byte) bool {
	return isDigit(c) || c == '.' || c == ':' || c == '-' || c == '+' || c == 'T' || c == 'Z'
}
