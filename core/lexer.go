// Package core provides the fundamental building blocks of the docorm ODM.
// This file implements the tokenizer of the restricted query language.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenPositional // ?1
	tokenNamed      // :name
	tokenString     // 'text' or "text"
	tokenNumber
	tokenOperator // = != <> < <= > >=
	tokenComma
)

type token struct {
	kind  tokenKind
	text  string // identifier, operator, named parameter, string contents
	index int    // positional parameter index
	num   any    // number literal (int64 or float64)
	pos   int
}

// keyword reports whether the token is the given case-insensitive keyword.
func (t token) keyword(word string) bool {
	return t.kind == tokenIdent && strings.EqualFold(t.text, word)
}

type lexer struct {
	input string
	pos   int
}

func isIdentStart(r byte) bool {
	return r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z'
}

func isIdentPart(r byte) bool {
	return isIdentStart(r) || r == '.' || r >= '0' && r <= '9'
}

// tokenize splits a restricted-language fragment into tokens.
func tokenize(input string) ([]token, error) {
	lex := &lexer{input: input}
	var tokens []token
	for {
		tok, err := lex.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.kind == tokenEOF {
			return tokens, nil
		}
	}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.input) {
		return token{kind: tokenEOF, pos: start}, nil
	}

	c := l.input[l.pos]
	switch {
	case isIdentStart(c):
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}
		return token{kind: tokenIdent, text: l.input[start:l.pos], pos: start}, nil

	case c == '?':
		l.pos++
		digits := l.pos
		for l.pos < len(l.input) && l.input[l.pos] >= '0' && l.input[l.pos] <= '9' {
			l.pos++
		}
		index, err := strconv.Atoi(l.input[digits:l.pos])
		if err != nil {
			return token{}, newQueryError(ErrMalformedQuery, l.input, "positional parameter at %d needs an index", start)
		}
		if index < 1 {
			return token{}, newQueryError(ErrUnresolvedParameter, l.input, "positional parameter ?%d at %d, indexes start at 1", index, start)
		}
		return token{kind: tokenPositional, index: index, text: l.input[start:l.pos], pos: start}, nil

	case c == ':':
		l.pos++
		if l.pos >= len(l.input) || !isIdentStart(l.input[l.pos]) {
			return token{}, newQueryError(ErrMalformedQuery, l.input, "named parameter at %d needs a name", start)
		}
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}
		return token{kind: tokenNamed, text: l.input[start+1 : l.pos], pos: start}, nil

	case c == '\'' || c == '"':
		text, err := l.quoted(c)
		if err != nil {
			return token{}, err
		}
		return token{kind: tokenString, text: text, pos: start}, nil

	case c >= '0' && c <= '9' || c == '-' && l.pos+1 < len(l.input) && l.input[l.pos+1] >= '0' && l.input[l.pos+1] <= '9':
		l.pos++
		for l.pos < len(l.input) && strings.IndexByte("0123456789.eE", l.input[l.pos]) >= 0 {
			l.pos++
		}
		text := l.input[start:l.pos]
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return token{kind: tokenNumber, num: n, text: text, pos: start}, nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, newQueryError(ErrMalformedQuery, l.input, "invalid number %q", text)
		}
		return token{kind: tokenNumber, num: f, text: text, pos: start}, nil

	case c == ',':
		l.pos++
		return token{kind: tokenComma, text: ",", pos: start}, nil

	case strings.IndexByte("=!<>", c) >= 0:
		l.pos++
		if l.pos < len(l.input) && (l.input[l.pos] == '=' || c == '<' && l.input[l.pos] == '>') {
			l.pos++
		}
		op := l.input[start:l.pos]
		if op == "!" {
			return token{}, newQueryError(ErrMalformedQuery, l.input, "unexpected '!' at %d", start)
		}
		return token{kind: tokenOperator, text: op, pos: start}, nil
	}
	return token{}, newQueryError(ErrMalformedQuery, l.input, "unexpected %q at %d", c, start)
}

// quoted reads a string literal delimited by quote; a backslash escapes the
// next character.
func (l *lexer) quoted(quote byte) (string, error) {
	start := l.pos
	l.pos++
	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == '\\' && l.pos+1 < len(l.input):
			sb.WriteByte(l.input[l.pos+1])
			l.pos += 2
		case c == quote:
			l.pos++
			return sb.String(), nil
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return "", newQueryError(ErrMalformedQuery, l.input, "unterminated string at %d", start)
}
