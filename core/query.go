// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines the query cursor, which executes a translated filter with
// optional sort, paging window and projection.
package core

import (
	"context"
	"iter"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Query is a lazily executed query over the collection bound to T.
//
// A Query owns mutable paging state and is meant for a single caller at a
// time. Nothing is sent to the database until an execution method (List,
// Stream, FirstResult, SingleResult, Count, PageCount, ...) is called. When
// the fragment given to Model.Find fails to translate, the error is kept and
// returned by every execution method without any database call.
//
// Example:
//
//	query := people.Find("status = ?1 order by lastname", Alive).PageAt(0, 25)
//	for {
//		batch, err := query.List(ctx)
//		// ...
//		if more, _ := query.HasNextPage(ctx); !more {
//			break
//		}
//		query.NextPage()
//	}
type Query[T any] struct {
	schema *SchemaMeta[T]
	driver Driver

	fragment string
	filter   bson.D
	sort     bson.D

	page       *Page
	rangeSet   bool
	rangeStart int
	rangeEnd   int

	count      *int64
	builderErr error
}

// FindPayload is the payload passed to middlewares for read operations and
// to EventFind handlers.
type FindPayload struct {
	Schema   *SchemaCore
	Fragment string // query fragment as written by the caller, empty for FindAll
	Filter   bson.D
	Options  *FindOptions
	Count    int // documents delivered, set on EventFind only
}

func newQuery[T any](schema *SchemaMeta[T], driver Driver, fragment string, sort *Sort, params []any) *Query[T] {
	query := &Query[T]{schema: schema, driver: driver, fragment: fragment}
	translation, err := Translate(fragment, &schema.SchemaCore, params...)
	if err != nil {
		query.builderErr = err
		return query
	}
	query.filter = translation.Filter
	query.sort = translation.Sort

	explicit, err := sort.native(&schema.SchemaCore)
	if err != nil {
		query.builderErr = err
		return query
	}
	query.sort = append(query.sort, explicit...)
	return query
}

func newConditionQuery[T any](schema *SchemaMeta[T], driver Driver, condition *Condition, sort *Sort) *Query[T] {
	query := &Query[T]{schema: schema, driver: driver}
	filter, err := BuildFilter(condition)
	if err != nil {
		query.builderErr = err
		return query
	}
	query.filter = filter
	query.sort, query.builderErr = sort.native(&schema.SchemaCore)
	return query
}

func (q *Query[T]) fail(err error) *Query[T] {
	if q.builderErr == nil {
		q.builderErr = err
	}
	return q
}

// Err returns the error recorded while building the query, if any.
func (q *Query[T]) Err() error { return q.builderErr }

// Filter returns the native filter document of the query.
func (q *Query[T]) Filter() bson.D { return q.filter }

// SortDocument returns the native sort document of the query, nil when unsorted.
func (q *Query[T]) SortDocument() bson.D { return q.sort }

// OrderBy replaces the sort of the query.
func (q *Query[T]) OrderBy(sort *Sort) *Query[T] {
	native, err := sort.native(&q.schema.SchemaCore)
	if err != nil {
		return q.fail(err)
	}
	q.sort = native
	return q
}

//region paging

// Page activates paging and moves the cursor to the given page.
func (q *Query[T]) Page(page Page) *Query[T] {
	if err := page.Validate(); err != nil {
		return q.fail(err)
	}
	if q.rangeSet {
		return q.fail(errors.Wrap(ErrInvalidPage, "cannot page a query restricted to a range"))
	}
	q.page = &page
	return q
}

// PageAt is a shorthand for Page(Page{Index: index, Size: size}).
func (q *Query[T]) PageAt(index, size int) *Query[T] {
	return q.Page(Page{Index: index, Size: size})
}

// NextPage moves the cursor to the next page.
func (q *Query[T]) NextPage() *Query[T] {
	if err := q.requirePage(); err != nil {
		return q.fail(err)
	}
	next := q.page.Next()
	q.page = &next
	return q
}

// PreviousPage moves the cursor to the previous page; it stays on the first page.
func (q *Query[T]) PreviousPage() *Query[T] {
	if err := q.requirePage(); err != nil {
		return q.fail(err)
	}
	previous := q.page.Previous()
	q.page = &previous
	return q
}

// FirstPage moves the cursor to the first page.
func (q *Query[T]) FirstPage() *Query[T] {
	if err := q.requirePage(); err != nil {
		return q.fail(err)
	}
	first := q.page.First()
	q.page = &first
	return q
}

// LastPage moves the cursor to the last page. It needs the count.
func (q *Query[T]) LastPage(ctx context.Context) *Query[T] {
	pages, err := q.PageCount(ctx)
	if err != nil {
		return q.fail(err)
	}
	last := q.page.At(max(pages-1, 0))
	q.page = &last
	return q
}

// HasNextPage reports whether a page follows the current one. It needs the count.
func (q *Query[T]) HasNextPage(ctx context.Context) (bool, error) {
	pages, err := q.PageCount(ctx)
	if err != nil {
		return false, err
	}
	return q.page.Index < pages-1, nil
}

// HasPreviousPage reports whether the cursor is past the first page.
func (q *Query[T]) HasPreviousPage() bool {
	return q.page != nil && q.page.Index > 0
}

// CurrentPage returns the current page; ok is false when paging is not active.
func (q *Query[T]) CurrentPage() (page Page, ok bool) {
	if q.page == nil {
		return Page{}, false
	}
	return *q.page, true
}

// PageCount returns ceil(Count / page size).
func (q *Query[T]) PageCount(ctx context.Context) (int, error) {
	if err := q.requirePage(); err != nil {
		return 0, err
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, err
	}
	return pageCount(count, q.page.Size), nil
}

// Range restricts the query to the documents at positions start to end,
// both inclusive. Range and paging are exclusive.
func (q *Query[T]) Range(start, end int) *Query[T] {
	if q.page != nil {
		return q.fail(errors.Wrap(ErrInvalidPage, "cannot restrict a paged query to a range"))
	}
	if start < 0 || end < start {
		return q.fail(errors.Wrapf(ErrInvalidPage, "range [%d, %d]", start, end))
	}
	q.rangeSet, q.rangeStart, q.rangeEnd = true, start, end
	return q
}

func (q *Query[T]) requirePage() error {
	if q.builderErr != nil {
		return q.builderErr
	}
	if q.page == nil {
		return errors.Wrap(ErrInvalidPage, "paging is not active")
	}
	return nil
}

//endregion

// findOptions returns the cursor options of the current window. A positive
// limit further caps the number of documents.
func (q *Query[T]) findOptions(projection bson.D, limit int64) *FindOptions {
	options := &FindOptions{Sort: q.sort, Projection: projection}
	switch {
	case q.page != nil:
		options.Skip = q.page.skip()
		options.Limit = int64(q.page.Size)
	case q.rangeSet:
		options.Skip = int64(q.rangeStart)
		options.Limit = int64(q.rangeEnd - q.rangeStart + 1)
	}
	if limit > 0 && (options.Limit == 0 || limit < options.Limit) {
		options.Limit = limit
	}
	return options
}

func (q *Query[T]) decode(document bson.Raw) (T, error) {
	var value T
	if err := q.schema.Codec.Decode(document, &value); err != nil {
		return value, err
	}
	if err := q.schema.runPost(PostFind, &value); err != nil {
		return value, err
	}
	return value, nil
}

// List returns every document of the current window.
func (q *Query[T]) List(ctx context.Context) ([]T, error) {
	return collect(q.Stream(ctx))
}

// Stream returns a lazy sequence over the current window backed by a driver
// cursor. The window, sort and projection are those at the time Stream is
// called; each iteration of the sequence issues the query again. An error is
// yielded once and ends the sequence.
func (q *Query[T]) Stream(ctx context.Context) iter.Seq2[T, error] {
	return execute(ctx, q, q.findOptions(nil, 0), q.decode)
}

// FirstResult returns the first document of the current window, or nil.
func (q *Query[T]) FirstResult(ctx context.Context) (*T, error) {
	value, found, err := q.FirstResultOptional(ctx)
	if err != nil || !found {
		return nil, err
	}
	return &value, nil
}

// FirstResultOptional returns the first document of the current window and
// whether there was one.
func (q *Query[T]) FirstResultOptional(ctx context.Context) (T, bool, error) {
	return first(execute(ctx, q, q.findOptions(nil, 1), q.decode))
}

// SingleResult returns the only document of the current window. It fails
// with ErrNotFound when there is none and ErrMultipleResults when there are
// several.
func (q *Query[T]) SingleResult(ctx context.Context) (T, error) {
	value, found, err := q.SingleResultOptional(ctx)
	if err == nil && !found {
		err = ErrNotFound
	}
	return value, err
}

// SingleResultOptional is SingleResult with absence reported as false
// instead of ErrNotFound.
func (q *Query[T]) SingleResultOptional(ctx context.Context) (T, bool, error) {
	return single(execute(ctx, q, q.findOptions(nil, 2), q.decode))
}

// Count returns the number of documents matching the filter, ignoring the
// paging window. The result is kept on the query; paging does not change it.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	if q.builderErr != nil {
		return 0, q.builderErr
	}
	if q.count != nil {
		return *q.count, nil
	}
	payload := &FindPayload{Schema: &q.schema.SchemaCore, Fragment: q.fragment, Filter: q.filter}
	var count int64
	err := dispatchOperation(ctx, OperationCount, payload, func() error {
		var err error
		count, err = q.driver.Count(ctx, &q.schema.SchemaCore, q.filter)
		return err
	})
	if err != nil {
		return 0, err
	}
	q.count = &count
	return count, nil
}

// execute runs the query with the given options and decodes every document
// with decode. The whole iteration runs inside the middleware chain.
func execute[T, R any](ctx context.Context, q *Query[T], options *FindOptions, decode func(bson.Raw) (R, error)) iter.Seq2[R, error] {
	return func(yield func(R, error) bool) {
		var zero R
		if q.builderErr != nil {
			yield(zero, q.builderErr)
			return
		}
		if err := q.schema.runPre(PreFind, new(T)); err != nil {
			yield(zero, err)
			return
		}

		payload := &FindPayload{Schema: &q.schema.SchemaCore, Fragment: q.fragment, Filter: q.filter, Options: options}
		stopped := false
		delivered := 0
		err := dispatchOperation(ctx, OperationFind, payload, func() error {
			cursor, err := q.driver.Find(ctx, &q.schema.SchemaCore, q.filter, options)
			if err != nil {
				return err
			}
			defer cursor.Close(context.WithoutCancel(ctx))
			for cursor.Next(ctx) {
				value, err := decode(cursor.Raw())
				if err != nil {
					return err
				}
				delivered++
				if !yield(value, nil) {
					stopped = true
					return nil
				}
			}
			return cursor.Err()
		})
		if err != nil {
			if !stopped {
				yield(zero, err)
			}
			return
		}
		Emit(EventFind, FindPayload{
			Schema:   payload.Schema,
			Fragment: payload.Fragment,
			Filter:   payload.Filter,
			Options:  payload.Options,
			Count:    delivered,
		})
	}
}

func collect[R any](seq iter.Seq2[R, error]) ([]R, error) {
	list := []R{}
	for value, err := range seq {
		if err != nil {
			return nil, err
		}
		list = append(list, value)
	}
	return list, nil
}

func first[R any](seq iter.Seq2[R, error]) (R, bool, error) {
	var zero R
	for value, err := range seq {
		if err != nil {
			return zero, false, err
		}
		return value, true, nil
	}
	return zero, false, nil
}

func single[R any](seq iter.Seq2[R, error]) (R, bool, error) {
	var result R
	found := false
	for value, err := range seq {
		if err != nil {
			var zero R
			return zero, false, err
		}
		if found {
			var zero R
			return zero, false, ErrMultipleResults
		}
		result, found = value, true
	}
	return result, found, nil
}
