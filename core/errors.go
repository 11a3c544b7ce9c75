// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines the error kinds reported by translation, execution and
// persistence operations.
package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrTranslation is matched by every error produced while translating a query
// fragment. No driver call is made once translation fails.
var ErrTranslation = errors.New("query translation failed")

// Translation error kinds. Each *QueryError matches ErrTranslation and exactly
// one of these.
var (
	ErrMalformedQuery      = errors.New("malformed query")
	ErrMixedConnectives    = errors.New("mixing 'and' and 'or' in one query is not supported")
	ErrUnmappedField       = errors.New("unmapped field")
	ErrUnresolvedParameter = errors.New("unresolved parameter")
)

var (
	// ErrNotFound reports an identifier or a single result that is absent.
	ErrNotFound = errors.New("document not found")
	// ErrMultipleResults reports a single-result query that matched more than one document.
	ErrMultipleResults = errors.New("query returned more than one result")
	// ErrUnsupportedValue reports a value that has no native representation.
	ErrUnsupportedValue = errors.New("value has no native representation")
	// ErrMissingID reports a caller-assigned identifier left at its zero value.
	ErrMissingID = errors.New("identifier is not set")
	// ErrInvalidPage reports an invalid page descriptor or a paging/range conflict.
	ErrInvalidPage = errors.New("invalid page")
)

// QueryError is the error returned by the translator.
//
// Example:
//
//	_, err := core.Translate("a = ?1 and b = ?2 or c = ?3", nil, 1, 2, 3)
//	errors.Is(err, core.ErrTranslation)      // true
//	errors.Is(err, core.ErrMixedConnectives) // true
type QueryError struct {
	Kind   error  // One of the translation error kinds
	Query  string // The offending fragment
	Detail string // Human readable detail
}

func newQueryError(kind error, query string, format string, args ...any) *QueryError {
	return &QueryError{Kind: kind, Query: query, Detail: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %s in %q", ErrTranslation, e.Kind, e.Query)
	}
	return fmt.Sprintf("%s: %s: %s in %q", ErrTranslation, e.Kind, e.Detail, e.Query)
}

// Is reports whether target is ErrTranslation or the error kind.
func (e *QueryError) Is(target error) bool {
	return target == ErrTranslation || target == e.Kind
}

// Unwrap returns the error kind.
func (e *QueryError) Unwrap() error { return e.Kind }
