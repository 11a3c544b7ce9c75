// Package core provides the fundamental building blocks of the docorm ODM.
// This file implements the query translator: bare property names, the
// restricted query language and native filter templates all become a native
// filter document plus an optional sort document.
package core

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// FieldResolver maps domain field names to persisted field names.
// *SchemaCore implements it.
type FieldResolver interface {
	ResolveField(name string) (string, bool)
}

// Translation is the native form of a query fragment.
type Translation struct {
	Filter bson.D // native filter document, never nil
	Sort   bson.D // native sort document from an "order by" suffix, nil when absent
}

// valueRef is the right-hand side of a clause: a parameter or a literal.
type valueRef struct {
	position int    // ?n when > 0
	name     string // :name when not empty
	literal  any
}

type parsedClause struct {
	field    string
	operator Operator
	value    valueRef
}

// parsedQuery is the parameter-independent form of a restricted-language
// fragment. Instances are shared through the parse cache and never mutated.
type parsedQuery struct {
	clauses    []parsedClause
	connective Operator
	order      []SortField
}

const parseCacheSize = 1024

var parseCache, _ = lru.New[string, *parsedQuery](parseCacheSize)

// Translate converts a query fragment into its native form.
//
// The fragment is one of:
//   - a bare property name with exactly one parameter: "name" -> {"name": p1};
//   - a native filter template starting with "{", whose keys are persisted
//     names and whose ?n / :name placeholders are substituted:
//     "{'amount': {'$gt': ?1}}";
//   - a restricted-language expression joined by a single connective, with an
//     optional "order by" suffix: "amount > ?1 and firstname != ?2 order by
//     lastname desc". Field names are domain names resolved through resolver.
//
// params are positional values, or a single Parameters for named values.
// A nil resolver keeps field names as written.
func Translate(query string, resolver FieldResolver, params ...any) (*Translation, error) {
	source := newParamSource(params)
	fragment := strings.TrimSpace(query)

	if strings.HasPrefix(fragment, "{") {
		filter, err := translateNative(fragment, source)
		if err != nil {
			return nil, err
		}
		return &Translation{Filter: filter}, nil
	}

	if isBareIdentifier(fragment) && source.size() == 1 {
		field, err := resolveField(resolver, fragment, query)
		if err != nil {
			return nil, err
		}
		value, _ := source.only()
		return buildTranslation((&Condition{FieldName: field}).Eq(value), nil)
	}

	parsed, err := parseCached(fragment)
	if err != nil {
		return nil, err
	}
	return parsed.bind(query, resolver, source)
}

func buildTranslation(condition *Condition, sort bson.D) (*Translation, error) {
	filter, err := BuildFilter(condition)
	if err != nil {
		return nil, err
	}
	return &Translation{Filter: filter, Sort: sort}, nil
}

func isBareIdentifier(fragment string) bool {
	if fragment == "" || !isIdentStart(fragment[0]) {
		return false
	}
	for i := 1; i < len(fragment); i++ {
		if !isIdentPart(fragment[i]) {
			return false
		}
	}
	return true
}

func resolveField(resolver FieldResolver, name string, query string) (string, error) {
	if resolver == nil {
		return name, nil
	}
	persisted, ok := resolver.ResolveField(name)
	if !ok {
		return "", newQueryError(ErrUnmappedField, query, "%q", name)
	}
	return persisted, nil
}

func parseCached(fragment string) (*parsedQuery, error) {
	if parsed, ok := parseCache.Get(fragment); ok {
		return parsed, nil
	}
	parsed, err := parse(fragment)
	if err != nil {
		return nil, err
	}
	parseCache.Add(fragment, parsed)
	return parsed, nil
}

// parser is a recursive-descent parser over the token list.
type parser struct {
	query  string
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) advance() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) fail(format string, args ...any) error {
	return newQueryError(ErrMalformedQuery, p.query, format, args...)
}

// parse reads: [clause {(and|or) clause}] [order by field [asc|desc] {, ...}]
func parse(fragment string) (*parsedQuery, error) {
	tokens, err := tokenize(fragment)
	if err != nil {
		return nil, err
	}
	p := &parser{query: fragment, tokens: tokens}
	parsed := &parsedQuery{connective: OpAnd}

	connectiveSeen := false
	for p.peek().kind != tokenEOF && !p.peek().keyword("order") {
		clause, err := p.clause()
		if err != nil {
			return nil, err
		}
		parsed.clauses = append(parsed.clauses, clause)

		next := p.peek()
		if next.kind == tokenEOF || next.keyword("order") {
			break
		}
		var connective Operator
		switch {
		case next.keyword("and"):
			connective = OpAnd
		case next.keyword("or"):
			connective = OpOr
		default:
			return nil, p.fail("expected 'and', 'or' or 'order by' at %d, got %q", next.pos, next.text)
		}
		if connectiveSeen && connective != parsed.connective {
			return nil, newQueryError(ErrMixedConnectives, fragment, "")
		}
		connectiveSeen = true
		parsed.connective = connective
		p.advance()
		if p.peek().kind == tokenEOF || p.peek().keyword("order") {
			return nil, p.fail("dangling %q", next.text)
		}
	}

	if p.peek().keyword("order") {
		order, err := p.orderBy()
		if err != nil {
			return nil, err
		}
		parsed.order = order
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, p.fail("unexpected %q at %d", tok.text, tok.pos)
	}
	return parsed, nil
}

func (p *parser) clause() (parsedClause, error) {
	fieldTok := p.advance()
	if fieldTok.kind != tokenIdent || isReserved(fieldTok.text) {
		return parsedClause{}, p.fail("expected a field name at %d", fieldTok.pos)
	}
	clause := parsedClause{field: fieldTok.text}

	opTok := p.advance()
	switch {
	case opTok.kind == tokenOperator:
		operator, ok := comparisonOperators[opTok.text]
		if !ok {
			return parsedClause{}, p.fail("unknown operator %q", opTok.text)
		}
		clause.operator = operator
	case opTok.keyword("like"):
		clause.operator = OpLike
	case opTok.keyword("in"):
		clause.operator = OpIn
	case opTok.keyword("is"):
		clause.operator = OpNil
		if p.peek().keyword("not") {
			p.advance()
			clause.operator = OpNotNil
		}
		if !p.advance().keyword("null") {
			return parsedClause{}, p.fail("expected 'null' after 'is' on %q", clause.field)
		}
		return clause, nil
	default:
		return parsedClause{}, p.fail("expected an operator after %q", clause.field)
	}

	value, err := p.value()
	if err != nil {
		return parsedClause{}, err
	}
	clause.value = value
	return clause, nil
}

var comparisonOperators = map[string]Operator{
	"=":  OpEq,
	"!=": OpNe,
	"<>": OpNe,
	">":  OpGt,
	">=": OpGte,
	"<":  OpLt,
	"<=": OpLte,
}

func isReserved(word string) bool {
	switch strings.ToLower(word) {
	case "and", "or", "is", "not", "null", "like", "in", "order", "by", "true", "false":
		return true
	}
	return false
}

func (p *parser) value() (valueRef, error) {
	tok := p.advance()
	switch {
	case tok.kind == tokenPositional:
		return valueRef{position: tok.index}, nil
	case tok.kind == tokenNamed:
		return valueRef{name: tok.text}, nil
	case tok.kind == tokenString:
		return valueRef{literal: tok.text}, nil
	case tok.kind == tokenNumber:
		return valueRef{literal: tok.num}, nil
	case tok.keyword("true"):
		return valueRef{literal: true}, nil
	case tok.keyword("false"):
		return valueRef{literal: false}, nil
	case tok.keyword("null"):
		return valueRef{literal: nil}, nil
	}
	return valueRef{}, p.fail("expected a parameter or a literal at %d", tok.pos)
}

func (p *parser) orderBy() ([]SortField, error) {
	p.advance()
	if !p.advance().keyword("by") {
		return nil, p.fail("expected 'by' after 'order'")
	}
	var order []SortField
	for {
		fieldTok := p.advance()
		if fieldTok.kind != tokenIdent || isReserved(fieldTok.text) {
			return nil, p.fail("expected a sort field at %d", fieldTok.pos)
		}
		field := SortField{FieldName: fieldTok.text, Order: Ascending}
		switch {
		case p.peek().keyword("asc"):
			p.advance()
		case p.peek().keyword("desc"):
			p.advance()
			field.Order = Descending
		}
		order = append(order, field)
		if p.peek().kind != tokenComma {
			return order, nil
		}
		p.advance()
	}
}

// bind resolves fields and parameters, producing the native translation.
func (q *parsedQuery) bind(query string, resolver FieldResolver, source paramSource) (*Translation, error) {
	conditions := make([]*Condition, 0, len(q.clauses))
	for _, clause := range q.clauses {
		field, err := resolveField(resolver, clause.field, query)
		if err != nil {
			return nil, err
		}
		value, err := clause.value.resolve(query, source)
		if err != nil {
			return nil, err
		}
		operator := clause.operator
		conditions = append(conditions, &Condition{FieldName: field, Operator: &operator, Value: value})
	}

	sort, err := (&Sort{Fields: q.order}).native(resolver)
	if err != nil {
		return nil, err
	}

	var condition *Condition
	switch {
	case len(conditions) == 1:
		condition = conditions[0]
	case len(conditions) > 1:
		connective := q.connective
		condition = &Condition{Operator: &connective, Children: conditions}
	}
	translation, err := buildTranslation(condition, sort)
	if err != nil {
		return nil, errors.Wrapf(err, "translate %q", query)
	}
	return translation, nil
}

func (v valueRef) resolve(query string, source paramSource) (any, error) {
	switch {
	case v.position > 0:
		value, ok := source.position(v.position)
		if !ok {
			return nil, newQueryError(ErrUnresolvedParameter, query, "?%d with %d parameter(s)", v.position, source.size())
		}
		return value, nil
	case v.name != "":
		value, ok := source.name(v.name)
		if !ok {
			return nil, newQueryError(ErrUnresolvedParameter, query, ":%s", v.name)
		}
		return value, nil
	}
	return v.literal, nil
}
