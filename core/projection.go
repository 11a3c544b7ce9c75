// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines projections: reading a reduced set of fields of T into a
// lighter type P.
package core

import (
	"context"
	"iter"
	"reflect"
	"sync"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Projection maps the fields of a projection type onto the persisted fields
// of an entity type.
type Projection struct {
	Type     reflect.Type
	Document bson.D            // native projection document sent to the driver
	renames  map[string]string // entity persisted name -> projection persisted name
}

type projectionKey struct {
	entity     reflect.Type
	projection reflect.Type
}

var projectionCache sync.Map // projectionKey -> *Projection

// ProjectionFor builds the projection of P over the entity described by
// schema. Each exported field of P, including promoted fields of inlined
// structs, must match a field of the entity: by Go field name
// (case-insensitive) first, then by persisted name.
func ProjectionFor[P any](schema *SchemaCore) (*Projection, error) {
	projectionType := reflect.TypeOf((*P)(nil)).Elem()
	key := projectionKey{entity: schema.Type, projection: projectionType}
	if cached, ok := projectionCache.Load(key); ok {
		return cached.(*Projection), nil
	}
	if projectionType.Kind() != reflect.Struct {
		return nil, errors.Errorf("projection %s is not a struct", projectionType)
	}

	var fields []*Field
	collectFields(projectionType, nil, 0, &fields)

	projection := &Projection{Type: projectionType, renames: map[string]string{}}
	includesID := false
	for _, field := range fields {
		source := schema.fieldByStructName(field.StructFieldName)
		if source == nil {
			source = schema.fieldByPersistedName(field.PersistedName)
		}
		if source == nil {
			return nil, newQueryError(ErrUnmappedField, projectionType.String(),
				"%s.%s has no counterpart in %s", projectionType.Name(), field.StructFieldName, schema.Type)
		}
		if source.IsID {
			includesID = true
		}
		projection.Document = append(projection.Document, bson.E{Key: source.PersistedName, Value: 1})
		projection.renames[source.PersistedName] = field.PersistedName
	}
	if !includesID {
		projection.Document = append(projection.Document, bson.E{Key: "_id", Value: 0})
	}

	actual, _ := projectionCache.LoadOrStore(key, projection)
	return actual.(*Projection), nil
}

// rename rewrites a document read with the projection so that its keys are
// the persisted names of the projection type. Fields absent from the stored
// document stay absent.
func (p *Projection) rename(document bson.Raw) (bson.Raw, error) {
	elements, err := document.Elements()
	if err != nil {
		return nil, errors.Wrap(err, "read document")
	}
	renamed := make(bson.D, 0, len(elements))
	for _, element := range elements {
		target, ok := p.renames[element.Key()]
		if !ok {
			continue
		}
		renamed = append(renamed, bson.E{Key: target, Value: element.Value()})
	}
	data, err := bson.Marshal(renamed)
	if err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	return data, nil
}

// Projected is a read-only view of a Query[T] decoding into P.
//
// It shares the filter, sort and paging state of the query it was built
// from: moving the query to another page moves the view too.
type Projected[T any, P any] struct {
	query      *Query[T]
	projection *Projection
	err        error
}

// Project restricts the documents read by q to the fields of P and decodes
// them into P.
//
// Example:
//
//	type PersonName struct {
//		Name string
//	}
//
//	query := people.Find("status = ?1", Alive).PageAt(0, 25)
//	names, err := core.Project[PersonName](query).List(ctx)
func Project[P any, T any](q *Query[T]) *Projected[T, P] {
	projection, err := ProjectionFor[P](&q.schema.SchemaCore)
	return &Projected[T, P]{query: q, projection: projection, err: err}
}

// Query returns the underlying query, for paging.
func (p *Projected[T, P]) Query() *Query[T] { return p.query }

func (p *Projected[T, P]) decode(document bson.Raw) (P, error) {
	var value P
	renamed, err := p.projection.rename(document)
	if err != nil {
		return value, err
	}
	if err := bson.Unmarshal(renamed, &value); err != nil {
		return value, errors.Wrap(err, "decode projection")
	}
	return value, nil
}

func (p *Projected[T, P]) execute(ctx context.Context, limit int64) iter.Seq2[P, error] {
	if p.err != nil {
		return func(yield func(P, error) bool) {
			var zero P
			yield(zero, p.err)
		}
	}
	return execute(ctx, p.query, p.query.findOptions(p.projection.Document, limit), p.decode)
}

// List returns every projected document of the current window.
func (p *Projected[T, P]) List(ctx context.Context) ([]P, error) {
	return collect(p.execute(ctx, 0))
}

// Stream returns a lazy sequence of projected documents.
func (p *Projected[T, P]) Stream(ctx context.Context) iter.Seq2[P, error] {
	return p.execute(ctx, 0)
}

// FirstResult returns the first projected document, or nil.
func (p *Projected[T, P]) FirstResult(ctx context.Context) (*P, error) {
	value, found, err := first(p.execute(ctx, 1))
	if err != nil || !found {
		return nil, err
	}
	return &value, nil
}

// FirstResultOptional returns the first projected document and whether there was one.
func (p *Projected[T, P]) FirstResultOptional(ctx context.Context) (P, bool, error) {
	return first(p.execute(ctx, 1))
}

// SingleResult returns the only projected document; see Query.SingleResult.
func (p *Projected[T, P]) SingleResult(ctx context.Context) (P, error) {
	value, found, err := single(p.execute(ctx, 2))
	if err == nil && !found {
		err = ErrNotFound
	}
	return value, err
}

// SingleResultOptional returns the only projected document and whether there was one.
func (p *Projected[T, P]) SingleResultOptional(ctx context.Context) (P, bool, error) {
	return single(p.execute(ctx, 2))
}

// Count returns the number of documents matching the query filter.
func (p *Projected[T, P]) Count(ctx context.Context) (int64, error) {
	if p.err != nil {
		return 0, p.err
	}
	return p.query.Count(ctx)
}
