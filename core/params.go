// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines query parameters: positional (?1, ?2, ...) or named (:name).
package core

// Parameters holds named query parameters.
//
// Example:
//
//	model.Find("name = :name and status = :status",
//		core.With("name", "Loïc").And("status", Alive))
type Parameters map[string]any

// With starts a Parameters set with one named value.
func With(name string, value any) Parameters {
	return Parameters{name: value}
}

// And adds a named value and returns the same set.
func (p Parameters) And(name string, value any) Parameters {
	p[name] = value
	return p
}

// paramSource resolves value references against either an ordered list or a
// name -> value mapping.
type paramSource struct {
	positional []any
	named      Parameters
}

// newParamSource inspects the variadic arguments of a query call: a single
// Parameters (or map[string]any) argument selects named parameters.
func newParamSource(params []any) paramSource {
	if len(params) == 1 {
		switch named := params[0].(type) {
		case Parameters:
			return paramSource{named: named}
		case map[string]any:
			return paramSource{named: Parameters(named)}
		}
	}
	return paramSource{positional: params}
}

func (p paramSource) isNamed() bool { return p.named != nil }

func (p paramSource) size() int {
	if p.isNamed() {
		return len(p.named)
	}
	return len(p.positional)
}

// only returns the single supplied value, for the bare-property shorthand.
func (p paramSource) only() (any, bool) {
	if p.size() != 1 {
		return nil, false
	}
	if p.isNamed() {
		for _, value := range p.named {
			return value, true
		}
	}
	return p.positional[0], true
}

// position resolves ?n (1-based).
func (p paramSource) position(n int) (any, bool) {
	if p.isNamed() || n < 1 || n > len(p.positional) {
		return nil, false
	}
	return p.positional[n-1], true
}

// name resolves :name.
func (p paramSource) name(name string) (any, bool) {
	if !p.isNamed() {
		return nil, false
	}
	value, ok := p.named[name]
	return value, ok
}
