// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines the Model[T], the entry point for working with an entity
// type. A Model handles persistence, queries, hooks, timestamps and event
// emission.
package core

import (
	"context"
	"iter"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Model is the persistence core of an entity type T.
//
// It wraps a SchemaMeta[T] and a Driver, exposing instance operations
// (Persist, Update, PersistOrUpdate, Delete) and set operations driven by
// query fragments (Find, List, Stream, Count, DeleteWhere, ...). Models hold
// no mutable state and are safe for concurrent use.
type Model[T any] struct {
	schema *SchemaMeta[T]
	driver Driver
}

// NewModel creates a new Model instance bound to a schema and driver.
//
// Example:
//
//	people := core.NewModel(core.SchemaFor[Person](), mongoDriver)
func NewModel[T any](schema *SchemaMeta[T], driver Driver) *Model[T] {
	return &Model[T]{schema: schema, driver: driver}
}

// Schema returns the schema of the model.
func (m *Model[T]) Schema() *SchemaMeta[T] { return m.schema }

// Driver returns the driver of the model.
func (m *Model[T]) Driver() Driver { return m.driver }

// WithTenant creates a new Model[T] instance bound to a different database.
//
// It clones the schema and replaces only the Database name in SchemaCore.
// This is useful for multi-tenant or sharded architectures.
func (m *Model[T]) WithTenant(database string) *Model[T] {
	cloneSchema := *m.schema
	cloneCore := cloneSchema.SchemaCore
	cloneCore.Database = database
	cloneSchema.SchemaCore = cloneCore

	return &Model[T]{schema: &cloneSchema, driver: m.driver}
}

func (m *Model[T]) core() *SchemaCore { return &m.schema.SchemaCore }

// idFilter returns {"_id": id} with id normalised.
func (m *Model[T]) idFilter(id any) (bson.D, error) {
	value, err := NormalizeValue(id)
	if err != nil {
		return nil, err
	}
	return bson.D{{Key: "_id", Value: value}}, nil
}

//region instance operations

// Persist inserts doc as a new document.
//
// With the default identifier strategy (a primitive.ObjectID "_id" field) a
// zero identifier is assigned by the database and written back onto doc.
// Any other identifier type must be set by the caller, otherwise Persist
// fails with ErrMissingID. The createdAt and updatedAt fields are set,
// PreInsert and PostInsert hooks run and an EventInsert is emitted.
func (m *Model[T]) Persist(ctx context.Context, doc *T) error {
	payload := &EntityPayload[T]{Schema: m.core(), Doc: doc}
	return dispatchOperation(ctx, OperationInsert, payload, func() error {
		m.schema.stampTimes(doc, true)
		if err := m.schema.runPre(PreInsert, doc); err != nil {
			return err
		}

		document, err := m.schema.Codec.Encode(doc)
		if err != nil {
			return err
		}
		if _, set := m.core().idOf(doc); !set {
			if !m.core().usesGeneratedID() {
				return errors.Wrapf(ErrMissingID, "persist %s", m.core().Type)
			}
			if document, err = withoutField(document, "_id"); err != nil {
				return err
			}
		}

		id, err := m.driver.InsertOne(ctx, m.core(), document)
		if err != nil {
			return err
		}
		m.core().setID(doc, id)
		payload.ID = id

		if err := m.schema.runPost(PostInsert, doc); err != nil {
			return err
		}
		Emit(EventInsert, *payload)
		return nil
	})
}

// PersistAll persists every document in order and stops at the first error.
func (m *Model[T]) PersistAll(ctx context.Context, docs ...*T) error {
	for _, doc := range docs {
		if err := m.Persist(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// Update replaces the stored document with the identifier of doc by the
// current state of doc. It fails with ErrNotFound when no document has that
// identifier.
func (m *Model[T]) Update(ctx context.Context, doc *T) error {
	payload := &EntityPayload[T]{Schema: m.core(), Doc: doc}
	return dispatchOperation(ctx, OperationUpdate, payload, func() error {
		id, set := m.core().idOf(doc)
		if !set {
			return errors.Wrapf(ErrMissingID, "update %s", m.core().Type)
		}
		payload.ID = id

		m.schema.stampTimes(doc, false)
		if err := m.schema.runPre(PreUpdate, doc); err != nil {
			return err
		}
		document, err := m.schema.Codec.Encode(doc)
		if err != nil {
			return err
		}
		matched, err := m.driver.ReplaceOne(ctx, m.core(), id, document)
		if err != nil {
			return err
		}
		if matched == 0 {
			return errors.Wrapf(ErrNotFound, "update %s %v", m.core().Type, id)
		}

		if err := m.schema.runPost(PostUpdate, doc); err != nil {
			return err
		}
		Emit(EventUpdate, *payload)
		return nil
	})
}

// PersistOrUpdate inserts doc when no document has its identifier and
// replaces it otherwise, as one atomic upsert. A zero default identifier is
// generated on the client before the upsert.
func (m *Model[T]) PersistOrUpdate(ctx context.Context, doc *T) error {
	payload := &EntityPayload[T]{Schema: m.core(), Doc: doc}
	return dispatchOperation(ctx, OperationUpsert, payload, func() error {
		stored := false
		id, set := m.core().idOf(doc)
		if !set {
			if !m.core().usesGeneratedID() {
				return errors.Wrapf(ErrMissingID, "persist or update %s", m.core().Type)
			}
			id = primitive.NewObjectID()
			m.core().setID(doc, id)
			defer func() {
				if !stored {
					m.core().setID(doc, primitive.NilObjectID)
				}
			}()
		}
		payload.ID = id

		m.schema.stampTimes(doc, false)
		if err := m.schema.runPre(PreUpsert, doc); err != nil {
			return err
		}
		document, err := m.schema.Codec.Encode(doc)
		if err != nil {
			return err
		}
		if err := m.driver.Upsert(ctx, m.core(), id, document); err != nil {
			return err
		}
		stored = true

		if err := m.schema.runPost(PostUpsert, doc); err != nil {
			return err
		}
		Emit(EventUpsert, *payload)
		return nil
	})
}

// Delete removes the stored document with the identifier of doc. It fails
// with ErrNotFound when no document has that identifier.
func (m *Model[T]) Delete(ctx context.Context, doc *T) error {
	id, set := m.core().idOf(doc)
	if !set {
		return errors.Wrapf(ErrMissingID, "delete %s", m.core().Type)
	}
	filter, err := m.idFilter(id)
	if err != nil {
		return err
	}

	payload := &DeletePayload{Schema: m.core(), Filter: filter}
	return dispatchOperation(ctx, OperationDelete, payload, func() error {
		if err := m.schema.runPre(PreDelete, doc); err != nil {
			return err
		}
		deleted, err := m.driver.Delete(ctx, m.core(), filter)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return errors.Wrapf(ErrNotFound, "delete %s %v", m.core().Type, id)
		}
		if err := m.schema.runPost(PostDelete, doc); err != nil {
			return err
		}
		Emit(EventDelete, DeletePayload{Schema: m.core(), Filter: filter, Deleted: deleted})
		return nil
	})
}

//endregion

//region set operations

// FindByID returns the document with the given identifier. It fails with
// ErrNotFound when there is none.
func (m *Model[T]) FindByID(ctx context.Context, id any) (*T, error) {
	value, found, err := m.FindByIDOptional(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.Wrapf(ErrNotFound, "find %s %v", m.core().Type, id)
	}
	return &value, nil
}

// FindByIDOptional returns the document with the given identifier and
// whether it exists.
func (m *Model[T]) FindByIDOptional(ctx context.Context, id any) (T, bool, error) {
	filter, err := m.idFilter(id)
	if err != nil {
		var zero T
		return zero, false, err
	}
	query := &Query[T]{schema: m.schema, driver: m.driver, filter: filter}
	return query.FirstResultOptional(ctx)
}

// Find returns a query over the documents matching the fragment.
//
// The fragment is a bare field name with one parameter ("lastname", "Doe"),
// a restricted-language expression ("amount > ?1 and status = ?2") or a
// native filter template ("{'amount': {'$gt': ?1}}"). params are positional
// values, or a single Parameters for named ones. See Translate.
func (m *Model[T]) Find(query string, params ...any) *Query[T] {
	return newQuery(m.schema, m.driver, query, nil, params)
}

// FindSorted is Find with an explicit sort, applied after any "order by"
// keys of the fragment.
func (m *Model[T]) FindSorted(query string, sort *Sort, params ...any) *Query[T] {
	return newQuery(m.schema, m.driver, query, sort, params)
}

// FindAll returns a query over every document of the collection.
func (m *Model[T]) FindAll() *Query[T] {
	return newQuery(m.schema, m.driver, "", nil, nil)
}

// FindAllSorted returns a sorted query over every document of the collection.
func (m *Model[T]) FindAllSorted(sort *Sort) *Query[T] {
	return newQuery(m.schema, m.driver, "", sort, nil)
}

// Filter returns a query built from conditions on selected fields, joined
// with AND.
//
// Example:
//
//	query := people.Filter(func(f core.Filter[Person]) []*core.Condition {
//		return []*core.Condition{
//			f.Where(func(p *Person) any { return &p.Age }).Gt(18),
//			f.Where(func(p *Person) any { return &p.Status }).Eq(Alive),
//		}
//	})
func (m *Model[T]) Filter(build func(Filter[T]) []*Condition) *Query[T] {
	var conditions []*Condition
	if build != nil {
		conditions = build(Filter[T]{schema: m.schema})
	}
	return newConditionQuery(m.schema, m.driver, foldConditionsAnd(conditions...), nil)
}

// Filter provides the scope passed to Model.Filter.
type Filter[T any] struct{ schema *SchemaMeta[T] }

// Where starts a condition on the field whose address selector returns.
// It panics when the address is not the one of a mapped field.
func (f Filter[T]) Where(selector func(*T) any) *Condition {
	field, ok := f.schema.fieldsByOffset[offsetOfAny(selector)]
	if !ok {
		panic("core: Where: field not found by selector")
	}
	return &Condition{FieldName: field.PersistedName}
}

// List returns the documents matching the fragment.
func (m *Model[T]) List(ctx context.Context, query string, params ...any) ([]T, error) {
	return m.Find(query, params...).List(ctx)
}

// ListSorted returns the documents matching the fragment in the given order.
func (m *Model[T]) ListSorted(ctx context.Context, query string, sort *Sort, params ...any) ([]T, error) {
	return m.FindSorted(query, sort, params...).List(ctx)
}

// ListAll returns every document of the collection.
func (m *Model[T]) ListAll(ctx context.Context) ([]T, error) {
	return m.FindAll().List(ctx)
}

// ListAllSorted returns every document of the collection in the given order.
func (m *Model[T]) ListAllSorted(ctx context.Context, sort *Sort) ([]T, error) {
	return m.FindAllSorted(sort).List(ctx)
}

// Stream returns a lazy sequence of the documents matching the fragment.
func (m *Model[T]) Stream(ctx context.Context, query string, params ...any) iter.Seq2[T, error] {
	return m.Find(query, params...).Stream(ctx)
}

// StreamSorted returns a lazy sequence of the documents matching the
// fragment in the given order.
func (m *Model[T]) StreamSorted(ctx context.Context, query string, sort *Sort, params ...any) iter.Seq2[T, error] {
	return m.FindSorted(query, sort, params...).Stream(ctx)
}

// StreamAll returns a lazy sequence of every document of the collection.
func (m *Model[T]) StreamAll(ctx context.Context) iter.Seq2[T, error] {
	return m.FindAll().Stream(ctx)
}

// StreamAllSorted returns a lazy sequence of every document of the
// collection in the given order.
func (m *Model[T]) StreamAllSorted(ctx context.Context, sort *Sort) iter.Seq2[T, error] {
	return m.FindAllSorted(sort).Stream(ctx)
}

// Count returns the number of documents in the collection.
func (m *Model[T]) Count(ctx context.Context) (int64, error) {
	return m.FindAll().Count(ctx)
}

// CountWhere returns the number of documents matching the fragment.
func (m *Model[T]) CountWhere(ctx context.Context, query string, params ...any) (int64, error) {
	return m.Find(query, params...).Count(ctx)
}

// DeleteByID removes the document with the given identifier and reports
// whether it existed.
func (m *Model[T]) DeleteByID(ctx context.Context, id any) (bool, error) {
	filter, err := m.idFilter(id)
	if err != nil {
		return false, err
	}
	deleted, err := m.deleteFilter(ctx, filter)
	return deleted > 0, err
}

// DeleteWhere removes the documents matching the fragment and returns how
// many were removed.
func (m *Model[T]) DeleteWhere(ctx context.Context, query string, params ...any) (int64, error) {
	translation, err := Translate(query, m.core(), params...)
	if err != nil {
		return 0, err
	}
	return m.deleteFilter(ctx, translation.Filter)
}

// DeleteAll removes every document of the collection and returns how many
// were removed.
func (m *Model[T]) DeleteAll(ctx context.Context) (int64, error) {
	return m.deleteFilter(ctx, bson.D{})
}

func (m *Model[T]) deleteFilter(ctx context.Context, filter bson.D) (int64, error) {
	payload := &DeletePayload{Schema: m.core(), Filter: filter}
	var deleted int64
	err := dispatchOperation(ctx, OperationDelete, payload, func() error {
		var err error
		deleted, err = m.driver.Delete(ctx, m.core(), filter)
		if err != nil {
			return err
		}
		Emit(EventDelete, DeletePayload{Schema: m.core(), Filter: filter, Deleted: deleted})
		return nil
	})
	return deleted, err
}

//endregion
