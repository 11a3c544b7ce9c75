// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines lifecycle events and the process-wide event dispatcher.
package core

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// Event represents a lifecycle event emitted after a successful operation.
//
// Events let callers observe changes in the persistence layer without
// registering hooks on each schema.
type Event string

const (
	// EventInsert is emitted after an entity is inserted.
	EventInsert Event = "insert"
	// EventUpdate is emitted after an entity replaced its stored document.
	EventUpdate Event = "update"
	// EventUpsert is emitted after an entity is inserted or replaced.
	EventUpsert Event = "upsert"
	// EventDelete is emitted after documents are deleted.
	EventDelete Event = "delete"
	// EventFind is emitted after a query delivered its documents.
	EventFind Event = "find"
)

// EventHandler defines the callback signature for event listeners.
// The payload argument varies depending on the event type (EntityPayload[T],
// DeletePayload, FindPayload).
type EventHandler func(payload any)

// EventDispatcher manages a list of event handlers and dispatches them
// when the corresponding events are emitted.
type EventDispatcher struct {
	mutex       sync.RWMutex
	handlerList map[Event][]EventHandler
}

// globalDispatcher is the shared event dispatcher.
var globalDispatcher = &EventDispatcher{
	handlerList: make(map[Event][]EventHandler),
}

// On registers an EventHandler for a specific Event.
//
// Example:
//
//	core.On(core.EventInsert, func(payload any) {
//	    if p, ok := payload.(core.EntityPayload[Person]); ok {
//	        logger.Info("person inserted", zap.Any("id", p.ID))
//	    }
//	})
func On(event Event, handler EventHandler) {
	globalDispatcher.mutex.Lock()
	defer globalDispatcher.mutex.Unlock()
	globalDispatcher.handlerList[event] = append(globalDispatcher.handlerList[event], handler)
}

// Off removes every handler registered for the event.
func Off(event Event) {
	globalDispatcher.mutex.Lock()
	defer globalDispatcher.mutex.Unlock()
	delete(globalDispatcher.handlerList, event)
}

// Emit triggers all registered handlers for the given Event.
//
// Handlers are executed asynchronously in separate goroutines.
func Emit(event Event, payload any) {
	globalDispatcher.mutex.RLock()
	defer globalDispatcher.mutex.RUnlock()
	for _, h := range globalDispatcher.handlerList[event] {
		go h(payload)
	}
}

// EntityPayload is passed to EventInsert, EventUpdate and EventUpsert
// handlers.
type EntityPayload[T any] struct {
	Schema *SchemaCore
	ID     any
	Doc    *T
}

func (p *EntityPayload[T]) collection() string { return p.Schema.Collection }

// DeletePayload is passed to EventDelete handlers and to middlewares for
// delete operations.
type DeletePayload struct {
	Schema  *SchemaCore
	Filter  bson.D
	Deleted int64 // set on EventDelete only
}
