// Package core provides the fundamental building blocks of the docorm ODM.
// This file implements native filter templates: relaxed JSON documents whose
// ?n / :name placeholders are replaced by parameter values.
package core

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// placeholderMark prefixes the strings that stand in for placeholders while
// the template is parsed. NUL cannot appear in a field name.
const placeholderMark = "\x00"

// translateNative parses a native template and substitutes its placeholders.
//
// The template accepts single-quoted strings and unquoted keys
// ({'amount': {$gt: ?1}}). Keys are persisted field names and are used as is.
func translateNative(template string, source paramSource) (bson.D, error) {
	text, refs, err := normalizeTemplate(template)
	if err != nil {
		return nil, err
	}
	if err := checkPlaceholders(template, refs, source); err != nil {
		return nil, err
	}

	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(text), false, &doc); err != nil {
		return nil, newQueryError(ErrMalformedQuery, template, "%v", err)
	}
	substituted, err := substitute(template, doc, source)
	if err != nil {
		return nil, err
	}
	return substituted.(bson.D), nil
}

// normalizeTemplate rewrites the template into strict JSON: strings are
// re-quoted with double quotes, bare keys are quoted and placeholders become
// marked strings. It returns the placeholders in order of appearance.
func normalizeTemplate(template string) (string, []valueRef, error) {
	var sb strings.Builder
	var refs []valueRef
	lex := &lexer{input: template}
	for lex.pos < len(template) {
		c := template[lex.pos]
		switch {
		case c == '\'' || c == '"':
			content, err := lex.quoted(c)
			if err != nil {
				return "", nil, err
			}
			sb.WriteString(jsonQuote(content))

		case c == '?':
			tok, err := lex.next()
			if err != nil {
				return "", nil, err
			}
			refs = append(refs, valueRef{position: tok.index})
			sb.WriteString(jsonQuote(placeholderMark + tok.text))

		case c == ':' && lex.pos+1 < len(template) && isIdentStart(template[lex.pos+1]) && !isJSONLiteralAt(template, lex.pos+1):
			tok, err := lex.next()
			if err != nil {
				return "", nil, err
			}
			refs = append(refs, valueRef{name: tok.text})
			sb.WriteString(jsonQuote(placeholderMark + ":" + tok.text))

		case c == '$' || isIdentStart(c):
			start := lex.pos
			lex.pos++
			for lex.pos < len(template) && (isIdentPart(template[lex.pos]) || template[lex.pos] == '$') {
				lex.pos++
			}
			word := template[start:lex.pos]
			if word == "true" || word == "false" || word == "null" {
				sb.WriteString(word)
			} else {
				sb.WriteString(jsonQuote(word))
			}

		case c >= '0' && c <= '9' || c == '-':
			start := lex.pos
			lex.pos++
			for lex.pos < len(template) && strings.IndexByte("0123456789.eE+-", template[lex.pos]) >= 0 {
				lex.pos++
			}
			sb.WriteString(template[start:lex.pos])

		default:
			if !unicode.IsSpace(rune(c)) {
				sb.WriteByte(c)
			} else {
				sb.WriteByte(' ')
			}
			lex.pos++
		}
	}
	return sb.String(), refs, nil
}

// jsonQuote returns s as a JSON string literal.
func jsonQuote(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func isJSONLiteralAt(template string, pos int) bool {
	for _, word := range []string{"true", "false", "null"} {
		end := pos + len(word)
		if strings.HasPrefix(template[pos:], word) && (end == len(template) || !isIdentPart(template[end])) {
			return true
		}
	}
	return false
}

// checkPlaceholders validates the placeholders against the parameters: every
// reference must resolve and, for positional parameters, the number of
// distinct placeholders must match the number of parameters.
func checkPlaceholders(template string, refs []valueRef, source paramSource) error {
	distinct := map[int]bool{}
	for _, ref := range refs {
		if _, err := ref.resolve(template, source); err != nil {
			return err
		}
		if ref.position > 0 {
			distinct[ref.position] = true
		}
	}
	if !source.isNamed() && len(distinct) != source.size() {
		return newQueryError(ErrUnresolvedParameter, template,
			"%d placeholder(s) for %d parameter(s)", len(distinct), source.size())
	}
	return nil
}

// substitute walks the parsed template and replaces the marked strings.
func substitute(template string, node any, source paramSource) (any, error) {
	switch v := node.(type) {
	case bson.D:
		out := make(bson.D, 0, len(v))
		for _, elem := range v {
			value, err := substitute(template, elem.Value, source)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.E{Key: elem.Key, Value: value})
		}
		return out, nil
	case bson.A:
		out := make(bson.A, 0, len(v))
		for _, item := range v {
			value, err := substitute(template, item, source)
			if err != nil {
				return nil, err
			}
			out = append(out, value)
		}
		return out, nil
	case primitive.Regex:
		return v, nil
	case string:
		if !strings.HasPrefix(v, placeholderMark) {
			return v, nil
		}
		ref := v[len(placeholderMark):]
		var value any
		var err error
		if name, named := strings.CutPrefix(ref, ":"); named {
			value, err = valueRef{name: name}.resolve(template, source)
		} else {
			position, convErr := strconv.Atoi(strings.TrimPrefix(ref, "?"))
			if convErr != nil {
				return nil, newQueryError(ErrMalformedQuery, template, "bad placeholder %q", ref)
			}
			value, err = valueRef{position: position}.resolve(template, source)
		}
		if err != nil {
			return nil, err
		}
		normalized, err := NormalizeValue(value)
		if err != nil {
			return nil, errors.Wrapf(err, "parameter %s", ref)
		}
		return normalized, nil
	}
	return node, nil
}
