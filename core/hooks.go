// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines lifecycle hooks that run custom logic before or after
// persist, update, upsert, delete and find operations.
package core

import "github.com/pkg/errors"

// PreHook represents a lifecycle hook that runs before a persistence operation.
//
// Hooks are registered per schema. A pre hook receives the entity about to
// be written and may modify it; returning an error aborts the operation
// before the database is called.
type PreHook string

// PostHook represents a lifecycle hook that runs after a persistence operation.
//
// A post hook receives the entity that was written (or decoded, for
// PostFind). Returning an error fails the operation, but the database write
// has already happened.
type PostHook string

const (
	// PreInsert is executed before an entity is inserted.
	PreInsert PreHook = "pre:insert"
	// PreUpdate is executed before an entity replaces its stored document.
	PreUpdate PreHook = "pre:update"
	// PreUpsert is executed before an entity is inserted or replaced.
	PreUpsert PreHook = "pre:upsert"
	// PreDelete is executed before an entity is deleted.
	PreDelete PreHook = "pre:delete"
	// PreFind is executed before a query runs, with a zero entity.
	PreFind PreHook = "pre:find"

	// PostInsert is executed after an entity is inserted.
	PostInsert PostHook = "post:insert"
	// PostUpdate is executed after an entity replaced its stored document.
	PostUpdate PostHook = "post:update"
	// PostUpsert is executed after an entity is inserted or replaced.
	PostUpsert PostHook = "post:upsert"
	// PostDelete is executed after an entity is deleted.
	PostDelete PostHook = "post:delete"
	// PostFind is executed for every entity decoded by a query.
	PostFind PostHook = "post:find"
)

// runPre executes all registered PreHooks for the given operation.
func (s *SchemaMeta[T]) runPre(hook PreHook, doc *T) error {
	for _, fn := range s.PreHookList[hook] {
		if err := fn(doc); err != nil {
			return errors.Wrapf(err, "%s hook", hook)
		}
	}
	return nil
}

// runPost executes all registered PostHooks for the given operation.
func (s *SchemaMeta[T]) runPost(hook PostHook, doc *T) error {
	for _, fn := range s.PostHookList[hook] {
		if err := fn(doc); err != nil {
			return errors.Wrapf(err, "%s hook", hook)
		}
	}
	return nil
}
