// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines the non-blocking variant of the persistence core:
// operations return a Future, streams are exposed as a Publisher with
// request-driven demand.
package core

import (
	"context"
	"iter"
	"math"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
	"github.com/pkg/errors"
)

// Executor runs submitted tasks without blocking the caller.
type Executor interface {
	Submit(task func()) error
}

// goExecutor runs every task in its own goroutine.
type goExecutor struct{}

func (goExecutor) Submit(task func()) error {
	go task()
	return nil
}

// PoolExecutor runs tasks on a bounded ants worker pool.
type PoolExecutor struct {
	pool *ants.Pool
}

// NewPoolExecutor starts a pool of size workers. Submit blocks while every
// worker is busy unless ants.WithNonblocking is given.
func NewPoolExecutor(size int, options ...ants.Option) (*PoolExecutor, error) {
	pool, err := ants.NewPool(size, options...)
	if err != nil {
		return nil, errors.Wrap(err, "start worker pool")
	}
	return &PoolExecutor{pool: pool}, nil
}

func (e *PoolExecutor) Submit(task func()) error {
	return e.pool.Submit(task)
}

// Running returns the number of busy workers.
func (e *PoolExecutor) Running() int { return e.pool.Running() }

// Release stops the workers. Tasks submitted afterwards fail.
func (e *PoolExecutor) Release() { e.pool.Release() }

// Future is the pending result of a non-blocking operation.
//
// The operation runs to completion even when nobody waits for it.
type Future[R any] struct {
	done  chan struct{}
	value R
	err   error
}

// Async runs work on the executor and returns its Future. A nil executor
// runs work in a new goroutine.
func Async[R any](executor Executor, work func() (R, error)) *Future[R] {
	if executor == nil {
		executor = goExecutor{}
	}
	future := &Future[R]{done: make(chan struct{})}
	err := executor.Submit(func() {
		defer close(future.done)
		future.value, future.err = work()
	})
	if err != nil {
		future.err = errors.Wrap(err, "submit task")
		close(future.done)
	}
	return future
}

// Done is closed when the result is available.
func (f *Future[R]) Done() <-chan struct{} { return f.done }

// Get waits for the result. It returns ctx.Err() if ctx ends first; the
// operation itself keeps running.
func (f *Future[R]) Get(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Optional is the result of an absent-safe lookup.
type Optional[T any] struct {
	Value   T
	Present bool
}

//region publisher

// Subscriber receives the signals of a Publisher.
//
// OnSubscribe is called first, exactly once. OnNext is called at most as
// many times as requested. OnError or OnComplete is called at most once and
// ends the subscription. Signals are never delivered concurrently.
type Subscriber[T any] interface {
	OnSubscribe(subscription Subscription)
	OnNext(value T)
	OnError(err error)
	OnComplete()
}

// Subscription is the link between a Publisher and one Subscriber.
type Subscription interface {
	// Request adds n to the outstanding demand. A non-positive n ends the
	// subscription with an error.
	Request(n int64)
	// Cancel stops the delivery of signals and releases the cursor.
	Cancel()
}

// Publisher is a cold source of values: every subscription runs the query
// again from the start.
type Publisher[T any] interface {
	Subscribe(subscriber Subscriber[T])
}

type seqPublisher[T any] struct {
	ctx      context.Context
	executor Executor
	source   func(ctx context.Context) iter.Seq2[T, error]
}

// PublisherOf adapts a sequence factory into a Publisher. Each subscription
// calls source with a context cancelled by Subscription.Cancel.
func PublisherOf[T any](ctx context.Context, executor Executor, source func(ctx context.Context) iter.Seq2[T, error]) Publisher[T] {
	if executor == nil {
		executor = goExecutor{}
	}
	return &seqPublisher[T]{ctx: ctx, executor: executor, source: source}
}

func (p *seqPublisher[T]) Subscribe(subscriber Subscriber[T]) {
	ctx, cancel := context.WithCancel(p.ctx)
	subscription := &seqSubscription{cancel: cancel}
	subscription.cond = sync.NewCond(&subscription.mutex)
	subscriber.OnSubscribe(subscription)

	err := p.executor.Submit(func() {
		defer cancel()
		p.run(ctx, subscription, subscriber)
	})
	if err != nil {
		cancel()
		if !subscription.isCancelled() {
			subscriber.OnError(errors.Wrap(err, "submit task"))
		}
	}
}

func (p *seqPublisher[T]) run(ctx context.Context, subscription *seqSubscription, subscriber Subscriber[T]) {
	next, stop := iter.Pull2(p.source(ctx))
	defer stop()
	for {
		// read ahead so that completion is signalled without extra demand
		value, err, ok := next()
		if subscription.isCancelled() {
			return
		}
		switch {
		case !ok:
			subscriber.OnComplete()
			return
		case err != nil:
			subscriber.OnError(err)
			return
		}
		if err := subscription.await(); err != nil {
			if !subscription.isCancelled() {
				subscriber.OnError(err)
			}
			return
		}
		if !subscription.emit(func() { subscriber.OnNext(value) }) {
			return
		}
	}
}

type seqSubscription struct {
	mutex     sync.Mutex
	cond      *sync.Cond
	demand    int64
	invalid   bool
	requested int64 // the rejected request when invalid
	cancelled bool
	cancel    context.CancelFunc

	// emitMutex is held while OnNext runs; emitting is set inside it.
	emitMutex sync.Mutex
	emitting  atomic.Bool
}

func (s *seqSubscription) Request(n int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.cancelled {
		return
	}
	if n <= 0 {
		if !s.invalid {
			s.invalid, s.requested = true, n
		}
	} else if s.demand > math.MaxInt64-n {
		s.demand = math.MaxInt64
	} else {
		s.demand += n
	}
	s.cond.Broadcast()
}

// Cancel marks the subscription cancelled and waits for an OnNext running on
// another goroutine, so no value is delivered once Cancel returns. Called
// from OnNext itself it does not wait.
func (s *seqSubscription) Cancel() {
	s.mutex.Lock()
	s.cancelled = true
	s.cond.Broadcast()
	s.mutex.Unlock()
	s.cancel()
	if !s.emitting.Load() {
		s.emitMutex.Lock()
		s.emitMutex.Unlock()
	}
}

func (s *seqSubscription) isCancelled() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.cancelled
}

// emit runs deliver unless the subscription is cancelled and reports
// whether it ran.
func (s *seqSubscription) emit(deliver func()) bool {
	s.emitMutex.Lock()
	defer s.emitMutex.Unlock()
	if s.isCancelled() {
		return false
	}
	s.emitting.Store(true)
	defer s.emitting.Store(false)
	deliver()
	return true
}

// await blocks until there is demand and consumes one unit of it.
func (s *seqSubscription) await() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for s.demand == 0 && !s.invalid && !s.cancelled {
		s.cond.Wait()
	}
	switch {
	case s.cancelled:
		return context.Canceled
	case s.invalid:
		return errors.Errorf("request(%d): demand must be positive", s.requested)
	}
	if s.demand != math.MaxInt64 {
		s.demand--
	}
	return nil
}

// Collect subscribes to publisher with unbounded demand and gathers every
// value.
func Collect[T any](ctx context.Context, publisher Publisher[T]) ([]T, error) {
	collector := &collector[T]{done: make(chan struct{}), values: []T{}}
	publisher.Subscribe(collector)
	select {
	case <-collector.done:
		return collector.values, collector.err
	case <-ctx.Done():
		collector.subscription.Cancel()
		return nil, ctx.Err()
	}
}

type collector[T any] struct {
	subscription Subscription
	values       []T
	err          error
	done         chan struct{}
}

func (c *collector[T]) OnSubscribe(subscription Subscription) {
	c.subscription = subscription
	subscription.Request(math.MaxInt64)
}

func (c *collector[T]) OnNext(value T) { c.values = append(c.values, value) }

func (c *collector[T]) OnError(err error) {
	c.err = err
	close(c.done)
}

func (c *collector[T]) OnComplete() { close(c.done) }

//endregion

//region reactive model

// ReactiveModel is the non-blocking variant of Model[T]. Every operation is
// submitted to the executor and returns at once; streams are Publishers.
// Query translation is shared with Model, and translation errors complete
// the Future with the error without any database call.
type ReactiveModel[T any] struct {
	model    *Model[T]
	executor Executor
}

// NewReactiveModel wraps model. A nil executor runs each operation in its
// own goroutine.
func NewReactiveModel[T any](model *Model[T], executor Executor) *ReactiveModel[T] {
	if executor == nil {
		executor = goExecutor{}
	}
	return &ReactiveModel[T]{model: model, executor: executor}
}

// Model returns the blocking model.
func (m *ReactiveModel[T]) Model() *Model[T] { return m.model }

func done[T any](m *ReactiveModel[T], work func() error) *Future[struct{}] {
	return Async(m.executor, func() (struct{}, error) { return struct{}{}, work() })
}

// Persist stores doc as a new document, as a Future.
func (m *ReactiveModel[T]) Persist(ctx context.Context, doc *T) *Future[struct{}] {
	return done(m, func() error { return m.model.Persist(ctx, doc) })
}

// PersistAll persists docs in order and stops at the first error, as a Future.
func (m *ReactiveModel[T]) PersistAll(ctx context.Context, docs ...*T) *Future[struct{}] {
	return done(m, func() error { return m.model.PersistAll(ctx, docs...) })
}

// Update replaces the stored document with the identifier of doc, as a Future.
func (m *ReactiveModel[T]) Update(ctx context.Context, doc *T) *Future[struct{}] {
	return done(m, func() error { return m.model.Update(ctx, doc) })
}

// PersistOrUpdate inserts doc or replaces the document with its identifier, as a Future.
func (m *ReactiveModel[T]) PersistOrUpdate(ctx context.Context, doc *T) *Future[struct{}] {
	return done(m, func() error { return m.model.PersistOrUpdate(ctx, doc) })
}

// Delete removes the stored document with the identifier of doc, as a Future.
func (m *ReactiveModel[T]) Delete(ctx context.Context, doc *T) *Future[struct{}] {
	return done(m, func() error { return m.model.Delete(ctx, doc) })
}

// FindByID returns the document stored under id, or ErrNotFound, as a Future.
func (m *ReactiveModel[T]) FindByID(ctx context.Context, id any) *Future[*T] {
	return Async(m.executor, func() (*T, error) { return m.model.FindByID(ctx, id) })
}

// FindByIDOptional looks up id and reports whether a document was found, as a Future.
func (m *ReactiveModel[T]) FindByIDOptional(ctx context.Context, id any) *Future[Optional[T]] {
	return Async(m.executor, func() (Optional[T], error) {
		value, found, err := m.model.FindByIDOptional(ctx, id)
		return Optional[T]{Value: value, Present: found}, err
	})
}

// Find returns a cursor over the documents matching query.
func (m *ReactiveModel[T]) Find(query string, params ...any) *ReactiveQuery[T] {
	return &ReactiveQuery[T]{query: m.model.Find(query, params...), executor: m.executor}
}

// FindSorted is Find with an explicit sort.
func (m *ReactiveModel[T]) FindSorted(query string, sort *Sort, params ...any) *ReactiveQuery[T] {
	return &ReactiveQuery[T]{query: m.model.FindSorted(query, sort, params...), executor: m.executor}
}

// FindAll returns a cursor over every document.
func (m *ReactiveModel[T]) FindAll() *ReactiveQuery[T] {
	return &ReactiveQuery[T]{query: m.model.FindAll(), executor: m.executor}
}

// FindAllSorted is FindAll with an explicit sort.
func (m *ReactiveModel[T]) FindAllSorted(sort *Sort) *ReactiveQuery[T] {
	return &ReactiveQuery[T]{query: m.model.FindAllSorted(sort), executor: m.executor}
}

// List returns every document matching query, as a Future.
func (m *ReactiveModel[T]) List(ctx context.Context, query string, params ...any) *Future[[]T] {
	return m.Find(query, params...).List(ctx)
}

// ListSorted is List with an explicit sort, as a Future.
func (m *ReactiveModel[T]) ListSorted(ctx context.Context, query string, sort *Sort, params ...any) *Future[[]T] {
	return m.FindSorted(query, sort, params...).List(ctx)
}

// ListAll returns every document, as a Future.
func (m *ReactiveModel[T]) ListAll(ctx context.Context) *Future[[]T] {
	return m.FindAll().List(ctx)
}

// ListAllSorted is ListAll with an explicit sort, as a Future.
func (m *ReactiveModel[T]) ListAllSorted(ctx context.Context, sort *Sort) *Future[[]T] {
	return m.FindAllSorted(sort).List(ctx)
}

// Stream publishes the documents matching query.
func (m *ReactiveModel[T]) Stream(ctx context.Context, query string, params ...any) Publisher[T] {
	return m.Find(query, params...).Stream(ctx)
}

// StreamSorted is Stream with an explicit sort.
func (m *ReactiveModel[T]) StreamSorted(ctx context.Context, query string, sort *Sort, params ...any) Publisher[T] {
	return m.FindSorted(query, sort, params...).Stream(ctx)
}

// StreamAll publishes every document.
func (m *ReactiveModel[T]) StreamAll(ctx context.Context) Publisher[T] {
	return m.FindAll().Stream(ctx)
}

// StreamAllSorted is StreamAll with an explicit sort.
func (m *ReactiveModel[T]) StreamAllSorted(ctx context.Context, sort *Sort) Publisher[T] {
	return m.FindAllSorted(sort).Stream(ctx)
}

// Count returns the number of stored documents, as a Future.
func (m *ReactiveModel[T]) Count(ctx context.Context) *Future[int64] {
	return Async(m.executor, func() (int64, error) { return m.model.Count(ctx) })
}

// CountWhere returns the number of documents matching query, as a Future.
func (m *ReactiveModel[T]) CountWhere(ctx context.Context, query string, params ...any) *Future[int64] {
	return Async(m.executor, func() (int64, error) { return m.model.CountWhere(ctx, query, params...) })
}

// DeleteByID removes the document stored under id and reports whether one existed, as a Future.
func (m *ReactiveModel[T]) DeleteByID(ctx context.Context, id any) *Future[bool] {
	return Async(m.executor, func() (bool, error) { return m.model.DeleteByID(ctx, id) })
}

// DeleteWhere removes the documents matching query and returns how many, as a Future.
func (m *ReactiveModel[T]) DeleteWhere(ctx context.Context, query string, params ...any) *Future[int64] {
	return Async(m.executor, func() (int64, error) { return m.model.DeleteWhere(ctx, query, params...) })
}

// DeleteAll removes every document and returns how many, as a Future.
func (m *ReactiveModel[T]) DeleteAll(ctx context.Context) *Future[int64] {
	return Async(m.executor, func() (int64, error) { return m.model.DeleteAll(ctx) })
}

// ReactiveQuery is the non-blocking variant of Query[T]. Paging methods
// change the state synchronously; execution methods snapshot the state at
// call time and run on the executor.
type ReactiveQuery[T any] struct {
	query    *Query[T]
	executor Executor
}

// Query returns the underlying blocking query.
func (q *ReactiveQuery[T]) Query() *Query[T] { return q.query }

func (q *ReactiveQuery[T]) snapshot() *Query[T] {
	copied := *q.query
	return &copied
}

// Page selects a page of the result.
func (q *ReactiveQuery[T]) Page(page Page) *ReactiveQuery[T] {
	q.query.Page(page)
	return q
}

// PageAt selects the page at index with size documents.
func (q *ReactiveQuery[T]) PageAt(index, size int) *ReactiveQuery[T] {
	q.query.PageAt(index, size)
	return q
}

// NextPage moves to the next page.
func (q *ReactiveQuery[T]) NextPage() *ReactiveQuery[T] {
	q.query.NextPage()
	return q
}

// PreviousPage moves to the previous page, staying on the first.
func (q *ReactiveQuery[T]) PreviousPage() *ReactiveQuery[T] {
	q.query.PreviousPage()
	return q
}

// FirstPage moves to the first page.
func (q *ReactiveQuery[T]) FirstPage() *ReactiveQuery[T] {
	q.query.FirstPage()
	return q
}

// Range selects the documents at positions start through end.
func (q *ReactiveQuery[T]) Range(start, end int) *ReactiveQuery[T] {
	q.query.Range(start, end)
	return q
}

// List resolves to every document of the window.
func (q *ReactiveQuery[T]) List(ctx context.Context) *Future[[]T] {
	query := q.snapshot()
	return Async(q.executor, func() ([]T, error) { return query.List(ctx) })
}

// Stream returns a cold Publisher over the current window.
func (q *ReactiveQuery[T]) Stream(ctx context.Context) Publisher[T] {
	query := q.snapshot()
	return PublisherOf(ctx, q.executor, query.Stream)
}

// FirstResult resolves to the first document of the window, or nil.
func (q *ReactiveQuery[T]) FirstResult(ctx context.Context) *Future[*T] {
	query := q.snapshot()
	return Async(q.executor, func() (*T, error) { return query.FirstResult(ctx) })
}

// FirstResultOptional resolves to the first document of the window, if any.
func (q *ReactiveQuery[T]) FirstResultOptional(ctx context.Context) *Future[Optional[T]] {
	query := q.snapshot()
	return Async(q.executor, func() (Optional[T], error) {
		value, found, err := query.FirstResultOptional(ctx)
		return Optional[T]{Value: value, Present: found}, err
	})
}

// SingleResult resolves to the only document of the window.
func (q *ReactiveQuery[T]) SingleResult(ctx context.Context) *Future[T] {
	query := q.snapshot()
	return Async(q.executor, func() (T, error) { return query.SingleResult(ctx) })
}

// SingleResultOptional resolves to the only document of the window, if any.
func (q *ReactiveQuery[T]) SingleResultOptional(ctx context.Context) *Future[Optional[T]] {
	query := q.snapshot()
	return Async(q.executor, func() (Optional[T], error) {
		value, found, err := query.SingleResultOptional(ctx)
		return Optional[T]{Value: value, Present: found}, err
	})
}

// Count resolves to the number of documents matching the filter.
func (q *ReactiveQuery[T]) Count(ctx context.Context) *Future[int64] {
	query := q.snapshot()
	return Async(q.executor, func() (int64, error) { return query.Count(ctx) })
}

// PageCount resolves to the number of pages of the current page size.
func (q *ReactiveQuery[T]) PageCount(ctx context.Context) *Future[int] {
	query := q.snapshot()
	return Async(q.executor, func() (int, error) { return query.PageCount(ctx) })
}

// ReactiveRepository is the non-blocking variant of Repository[T, ID].
type ReactiveRepository[T any, ID comparable] struct {
	model *ReactiveModel[T]
}

// NewReactiveRepository returns a repository over the default schema of T.
func NewReactiveRepository[T any, ID comparable](driver Driver, executor Executor) *ReactiveRepository[T, ID] {
	return &ReactiveRepository[T, ID]{model: NewReactiveModel(NewModel(SchemaFor[T](), driver), executor)}
}

// Model returns the reactive model the repository delegates to.
func (r *ReactiveRepository[T, ID]) Model() *ReactiveModel[T] { return r.model }

// Persist stores doc as a new document, as a Future.
func (r *ReactiveRepository[T, ID]) Persist(ctx context.Context, doc *T) *Future[struct{}] {
	return r.model.Persist(ctx, doc)
}

// PersistAll persists docs in order and stops at the first error, as a Future.
func (r *ReactiveRepository[T, ID]) PersistAll(ctx context.Context, docs ...*T) *Future[struct{}] {
	return r.model.PersistAll(ctx, docs...)
}

// Update replaces the stored document with the identifier of doc, as a Future.
func (r *ReactiveRepository[T, ID]) Update(ctx context.Context, doc *T) *Future[struct{}] {
	return r.model.Update(ctx, doc)
}

// PersistOrUpdate inserts doc or replaces the document with its identifier, as a Future.
func (r *ReactiveRepository[T, ID]) PersistOrUpdate(ctx context.Context, doc *T) *Future[struct{}] {
	return r.model.PersistOrUpdate(ctx, doc)
}

// Delete removes the stored document with the identifier of doc, as a Future.
func (r *ReactiveRepository[T, ID]) Delete(ctx context.Context, doc *T) *Future[struct{}] {
	return r.model.Delete(ctx, doc)
}

// FindByID returns the document stored under id, or ErrNotFound, as a Future.
func (r *ReactiveRepository[T, ID]) FindByID(ctx context.Context, id ID) *Future[*T] {
	return r.model.FindByID(ctx, id)
}

// FindByIDOptional looks up id and reports whether a document was found, as a Future.
func (r *ReactiveRepository[T, ID]) FindByIDOptional(ctx context.Context, id ID) *Future[Optional[T]] {
	return r.model.FindByIDOptional(ctx, id)
}

// Find returns a cursor over the documents matching query.
func (r *ReactiveRepository[T, ID]) Find(query string, params ...any) *ReactiveQuery[T] {
	return r.model.Find(query, params...)
}

// FindSorted is Find with an explicit sort.
func (r *ReactiveRepository[T, ID]) FindSorted(query string, sort *Sort, params ...any) *ReactiveQuery[T] {
	return r.model.FindSorted(query, sort, params...)
}

// FindAll returns a cursor over every document.
func (r *ReactiveRepository[T, ID]) FindAll() *ReactiveQuery[T] {
	return r.model.FindAll()
}

// FindAllSorted is FindAll with an explicit sort.
func (r *ReactiveRepository[T, ID]) FindAllSorted(sort *Sort) *ReactiveQuery[T] {
	return r.model.FindAllSorted(sort)
}

// List returns every document matching query, as a Future.
func (r *ReactiveRepository[T, ID]) List(ctx context.Context, query string, params ...any) *Future[[]T] {
	return r.model.List(ctx, query, params...)
}

// ListSorted is List with an explicit sort, as a Future.
func (r *ReactiveRepository[T, ID]) ListSorted(ctx context.Context, query string, sort *Sort, params ...any) *Future[[]T] {
	return r.model.ListSorted(ctx, query, sort, params...)
}

// ListAll returns every document, as a Future.
func (r *ReactiveRepository[T, ID]) ListAll(ctx context.Context) *Future[[]T] {
	return r.model.ListAll(ctx)
}

// ListAllSorted is ListAll with an explicit sort, as a Future.
func (r *ReactiveRepository[T, ID]) ListAllSorted(ctx context.Context, sort *Sort) *Future[[]T] {
	return r.model.ListAllSorted(ctx, sort)
}

// Stream publishes the documents matching query.
func (r *ReactiveRepository[T, ID]) Stream(ctx context.Context, query string, params ...any) Publisher[T] {
	return r.model.Stream(ctx, query, params...)
}

// StreamSorted is Stream with an explicit sort.
func (r *ReactiveRepository[T, ID]) StreamSorted(ctx context.Context, query string, sort *Sort, params ...any) Publisher[T] {
	return r.model.StreamSorted(ctx, query, sort, params...)
}

// StreamAll publishes every document.
func (r *ReactiveRepository[T, ID]) StreamAll(ctx context.Context) Publisher[T] {
	return r.model.StreamAll(ctx)
}

// StreamAllSorted is StreamAll with an explicit sort.
func (r *ReactiveRepository[T, ID]) StreamAllSorted(ctx context.Context, sort *Sort) Publisher[T] {
	return r.model.StreamAllSorted(ctx, sort)
}

// Count returns the number of stored documents, as a Future.
func (r *ReactiveRepository[T, ID]) Count(ctx context.Context) *Future[int64] {
	return r.model.Count(ctx)
}

// CountWhere returns the number of documents matching query, as a Future.
func (r *ReactiveRepository[T, ID]) CountWhere(ctx context.Context, query string, params ...any) *Future[int64] {
	return r.model.CountWhere(ctx, query, params...)
}

// DeleteByID removes the document stored under id and reports whether one existed, as a Future.
func (r *ReactiveRepository[T, ID]) DeleteByID(ctx context.Context, id ID) *Future[bool] {
	return r.model.DeleteByID(ctx, id)
}

// DeleteWhere removes the documents matching query and returns how many, as a Future.
func (r *ReactiveRepository[T, ID]) DeleteWhere(ctx context.Context, query string, params ...any) *Future[int64] {
	return r.model.DeleteWhere(ctx, query, params...)
}

// DeleteAll removes every document and returns how many, as a Future.
func (r *ReactiveRepository[T, ID]) DeleteAll(ctx context.Context) *Future[int64] {
	return r.model.DeleteAll(ctx)
}

//endregion
