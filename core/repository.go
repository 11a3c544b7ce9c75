// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines the repository facade, which exposes the operations of a
// Model[T] with a typed identifier, for callers that keep persistence off
// their domain types.
package core

import (
	"context"
	"iter"
)

// Repository exposes the operations of Model[T] with identifiers typed as
// ID. It holds no state besides the model and behaves exactly like it.
//
// Example:
//
//	type PersonRepository struct {
//		*core.Repository[Person, primitive.ObjectID]
//	}
//
//	repo := PersonRepository{core.NewRepository[Person, primitive.ObjectID](driver)}
//	person, err := repo.FindByID(ctx, id)
type Repository[T any, ID comparable] struct {
	model *Model[T]
}

// NewRepository returns a repository over the default schema of T.
func NewRepository[T any, ID comparable](driver Driver) *Repository[T, ID] {
	return &Repository[T, ID]{model: NewModel(SchemaFor[T](), driver)}
}

// RepositoryOf returns a repository delegating to model.
func RepositoryOf[T any, ID comparable](model *Model[T]) *Repository[T, ID] {
	return &Repository[T, ID]{model: model}
}

// Model returns the model the repository delegates to.
func (r *Repository[T, ID]) Model() *Model[T] { return r.model }

// Persist stores doc as a new document.
func (r *Repository[T, ID]) Persist(ctx context.Context, doc *T) error {
	return r.model.Persist(ctx, doc)
}

// PersistAll persists docs in order and stops at the first error.
func (r *Repository[T, ID]) PersistAll(ctx context.Context, docs ...*T) error {
	return r.model.PersistAll(ctx, docs...)
}

// Update replaces the stored document with the identifier of doc.
func (r *Repository[T, ID]) Update(ctx context.Context, doc *T) error {
	return r.model.Update(ctx, doc)
}

// PersistOrUpdate inserts doc or replaces the document with its identifier.
func (r *Repository[T, ID]) PersistOrUpdate(ctx context.Context, doc *T) error {
	return r.model.PersistOrUpdate(ctx, doc)
}

// Delete removes the stored document with the identifier of doc.
func (r *Repository[T, ID]) Delete(ctx context.Context, doc *T) error {
	return r.model.Delete(ctx, doc)
}

// FindByID returns the document stored under id, or ErrNotFound.
func (r *Repository[T, ID]) FindByID(ctx context.Context, id ID) (*T, error) {
	return r.model.FindByID(ctx, id)
}

// FindByIDOptional looks up id and reports whether a document was found.
func (r *Repository[T, ID]) FindByIDOptional(ctx context.Context, id ID) (T, bool, error) {
	return r.model.FindByIDOptional(ctx, id)
}

// Find returns a cursor over the documents matching query.
func (r *Repository[T, ID]) Find(query string, params ...any) *Query[T] {
	return r.model.Find(query, params...)
}

// FindSorted is Find with an explicit sort.
func (r *Repository[T, ID]) FindSorted(query string, sort *Sort, params ...any) *Query[T] {
	return r.model.FindSorted(query, sort, params...)
}

// FindAll returns a cursor over every document.
func (r *Repository[T, ID]) FindAll() *Query[T] {
	return r.model.FindAll()
}

// FindAllSorted is FindAll with an explicit sort.
func (r *Repository[T, ID]) FindAllSorted(sort *Sort) *Query[T] {
	return r.model.FindAllSorted(sort)
}

// List returns every document matching query.
func (r *Repository[T, ID]) List(ctx context.Context, query string, params ...any) ([]T, error) {
	return r.model.List(ctx, query, params...)
}

// ListSorted is List with an explicit sort.
func (r *Repository[T, ID]) ListSorted(ctx context.Context, query string, sort *Sort, params ...any) ([]T, error) {
	return r.model.ListSorted(ctx, query, sort, params...)
}

// ListAll returns every document.
func (r *Repository[T, ID]) ListAll(ctx context.Context) ([]T, error) {
	return r.model.ListAll(ctx)
}

// ListAllSorted is ListAll with an explicit sort.
func (r *Repository[T, ID]) ListAllSorted(ctx context.Context, sort *Sort) ([]T, error) {
	return r.model.ListAllSorted(ctx, sort)
}

// Stream yields the documents matching query.
func (r *Repository[T, ID]) Stream(ctx context.Context, query string, params ...any) iter.Seq2[T, error] {
	return r.model.Stream(ctx, query, params...)
}

// StreamSorted is Stream with an explicit sort.
func (r *Repository[T, ID]) StreamSorted(ctx context.Context, query string, sort *Sort, params ...any) iter.Seq2[T, error] {
	return r.model.StreamSorted(ctx, query, sort, params...)
}

// StreamAll yields every document.
func (r *Repository[T, ID]) StreamAll(ctx context.Context) iter.Seq2[T, error] {
	return r.model.StreamAll(ctx)
}

// StreamAllSorted is StreamAll with an explicit sort.
func (r *Repository[T, ID]) StreamAllSorted(ctx context.Context, sort *Sort) iter.Seq2[T, error] {
	return r.model.StreamAllSorted(ctx, sort)
}

// Count returns the number of stored documents.
func (r *Repository[T, ID]) Count(ctx context.Context) (int64, error) {
	return r.model.Count(ctx)
}

// CountWhere returns the number of documents matching query.
func (r *Repository[T, ID]) CountWhere(ctx context.Context, query string, params ...any) (int64, error) {
	return r.model.CountWhere(ctx, query, params...)
}

// DeleteByID removes the document stored under id and reports whether one existed.
func (r *Repository[T, ID]) DeleteByID(ctx context.Context, id ID) (bool, error) {
	return r.model.DeleteByID(ctx, id)
}

// DeleteWhere removes the documents matching query and returns how many.
func (r *Repository[T, ID]) DeleteWhere(ctx context.Context, query string, params ...any) (int64, error) {
	return r.model.DeleteWhere(ctx, query, params...)
}

// DeleteAll removes every document and returns how many.
func (r *Repository[T, ID]) DeleteAll(ctx context.Context) (int64, error) {
	return r.model.DeleteAll(ctx)
}
