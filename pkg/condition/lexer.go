package condition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenString
	tokenNumber
	tokenBool
	tokenNull
	tokenEq
	tokenNeq
	tokenAnd
	tokenOr
	tokenNot
	tokenLParen
	tokenRParen
)

type token struct {
	kind tokenKind
	text string
}

type lexer struct {
	src string
	pos int
	out []token
}

func lex(src string) ([]token, error) {
	l := &lexer{src: src}
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			return l.out, nil
		}
		if err := l.next(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
}

func (l *lexer) peekAt(offset int) byte {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *lexer) emit(kind tokenKind, text string, width int) {
	l.out = append(l.out, token{kind: kind, text: text})
	l.pos += width
}

func (l *lexer) next() error {
	ch := l.src[l.pos]
	switch ch {
	case '(':
		l.emit(tokenLParen, "(", 1)
	case ')':
		l.emit(tokenRParen, ")", 1)
	case '!':
		if l.peekAt(1) == '=' {
			l.emit(tokenNeq, "!=", 2)
		} else {
			l.emit(tokenNot, "!", 1)
		}
	case '=':
		if l.peekAt(1) != '=' {
			return fmt.Errorf("condition: unexpected '=' at %d; use '=='", l.pos)
		}
		l.emit(tokenEq, "==", 2)
	case '&':
		if l.peekAt(1) != '&' {
			return fmt.Errorf("condition: unexpected '&' at %d; use '&&'", l.pos)
		}
		l.emit(tokenAnd, "&&", 2)
	case '|':
		if l.peekAt(1) != '|' {
			return fmt.Errorf("condition: unexpected '|' at %d; use '||'", l.pos)
		}
		l.emit(tokenOr, "||", 2)
	case '"', '\'':
		return l.quoted(ch)
	default:
		l.word()
	}
	return nil
}

func (l *lexer) quoted(quote byte) error {
	start := l.pos
	l.pos++
	escaped := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == quote:
			body := l.src[start+1 : l.pos-1]
			if quote == '\'' {
				body = strings.ReplaceAll(body, `"`, `\"`)
				body = strings.ReplaceAll(body, `\'`, `'`)
			}
			value, err := strconv.Unquote(`"` + body + `"`)
			if err != nil {
				return fmt.Errorf("condition: invalid string literal: %w", err)
			}
			l.out = append(l.out, token{kind: tokenString, text: value})
			return nil
		}
	}
	return errors.New("condition: unterminated string literal")
}

func (l *lexer) word() {
	start := l.pos
	for l.pos < len(l.src) && !isDelimiter(l.src[l.pos]) {
		l.pos++
	}
	raw := l.src[start:l.pos]
	switch lower := strings.ToLower(raw); {
	case lower == "true" || lower == "false":
		l.out = append(l.out, token{kind: tokenBool, text: lower})
	case lower == "null" || lower == "nil":
		l.out = append(l.out, token{kind: tokenNull, text: "null"})
	case looksNumeric(raw):
		l.out = append(l.out, token{kind: tokenNumber, text: raw})
	default:
		l.out = append(l.out, token{kind: tokenIdent, text: raw})
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDelimiter(c byte) bool {
	return isSpace(c) || strings.IndexByte("()!=&|\"'", c) >= 0
}

func looksNumeric(raw string) bool {
	if raw == "" {
		return false
	}
	c := raw[0]
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}
