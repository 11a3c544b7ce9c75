// Package memory provides an in-memory implementation of core.Driver.
//
// It evaluates native filter documents against documents held in process
// memory and is meant for tests and local development. Documents are stored
// as encoded BSON, so callers never share memory with the store. Collections
// keep insertion order, which is the order of unsorted results.
//
// # Thread Safety
//
// MemoryDriver uses a sync.RWMutex: Find and Count take a read lock and
// snapshot the matching documents, writes take the exclusive lock.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/leandroluk/docorm/core"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrDuplicateKey reports an insert whose "_id" is already stored.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrClosed reports an operation on a closed driver.
	ErrClosed = errors.New("memory driver is closed")
)

type entry struct {
	key      string
	document bson.Raw
}

type collection struct {
	entries []entry
	index   map[string]int
}

func (c *collection) put(key string, document bson.Raw) {
	if i, ok := c.index[key]; ok {
		c.entries[i].document = document
		return
	}
	c.index[key] = len(c.entries)
	c.entries = append(c.entries, entry{key: key, document: document})
}

func (c *collection) remove(keys map[string]bool) {
	kept := c.entries[:0]
	for _, e := range c.entries {
		if !keys[e.key] {
			kept = append(kept, e)
		}
	}
	c.entries = kept
	c.index = make(map[string]int, len(kept))
	for i, e := range kept {
		c.index[e.key] = i
	}
}

//region cursor

type cursor struct {
	documents []bson.Raw
	position  int
	current   bson.Raw
}

func (c *cursor) Next(ctx context.Context) bool {
	if ctx.Err() != nil || c.position >= len(c.documents) {
		return false
	}
	c.current = c.documents[c.position]
	c.position++
	return true
}

func (c *cursor) Raw() bson.Raw { return c.current }

func (c *cursor) Err() error { return nil }

func (c *cursor) Close(ctx context.Context) error {
	c.documents = nil
	return nil
}

//endregion

//region MemoryDriver

// MemoryDriver is a thread-safe in-memory document store.
//
// Example:
//
//	driver := memory.NewMemoryDriver("app")
//	people := core.NewModel(core.SchemaFor[Person](), driver)
//	err := people.Persist(ctx, &Person{Name: "Ada"})
type MemoryDriver struct {
	mu              sync.RWMutex
	defaultDatabase string
	collections     map[string]*collection
	closed          bool
}

var _ core.Driver = (*MemoryDriver)(nil)

// NewMemoryDriver returns an empty store. defaultDatabase is used by
// bindings without a database.
func NewMemoryDriver(defaultDatabase string) *MemoryDriver {
	return &MemoryDriver{defaultDatabase: defaultDatabase, collections: make(map[string]*collection)}
}

func (driver *MemoryDriver) name(schema *core.SchemaCore) (string, error) {
	database := schema.Database
	if database == "" {
		database = driver.defaultDatabase
	}
	if schema.Collection == "" {
		return "", errors.Errorf("no collection bound to %s", schema.Type)
	}
	return database + "." + schema.Collection, nil
}

// collection returns the named collection; create controls whether a missing
// collection is created. The caller holds the lock.
func (driver *MemoryDriver) collection(schema *core.SchemaCore, create bool) (*collection, error) {
	if driver.closed {
		return nil, ErrClosed
	}
	name, err := driver.name(schema)
	if err != nil {
		return nil, err
	}
	coll, ok := driver.collections[name]
	if !ok && create {
		coll = &collection{index: make(map[string]int)}
		driver.collections[name] = coll
	}
	return coll, nil
}

func (driver *MemoryDriver) Connect(ctx context.Context) error {
	driver.mu.Lock()
	defer driver.mu.Unlock()
	driver.closed = false
	return nil
}

func (driver *MemoryDriver) Ping(ctx context.Context) error {
	driver.mu.RLock()
	defer driver.mu.RUnlock()
	if driver.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the driver closed. Stored documents survive and are visible
// again after Connect.
func (driver *MemoryDriver) Close(ctx context.Context) error {
	driver.mu.Lock()
	defer driver.mu.Unlock()
	driver.closed = true
	return nil
}

type matched struct {
	raw      bson.Raw
	document bson.D
}

// scan returns the documents of a collection matching filter, in insertion order.
func (driver *MemoryDriver) scan(schema *core.SchemaCore, filter bson.D) ([]matched, error) {
	coll, err := driver.collection(schema, false)
	if err != nil || coll == nil {
		return nil, err
	}
	var result []matched
	for _, e := range coll.entries {
		var document bson.D
		if err := bson.Unmarshal(e.document, &document); err != nil {
			return nil, errors.Wrap(err, "decode stored document")
		}
		ok, err := matches(document, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, matched{raw: e.document, document: document})
		}
	}
	return result, nil
}

func (driver *MemoryDriver) Find(ctx context.Context, schema *core.SchemaCore, filter bson.D, options *core.FindOptions) (core.Cursor, error) {
	driver.mu.RLock()
	matchedList, err := driver.scan(schema, filter)
	driver.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if options == nil {
		options = &core.FindOptions{}
	}
	if len(options.Sort) > 0 {
		sort.SliceStable(matchedList, func(i, j int) bool {
			for _, key := range options.Sort {
				order := sortCompare(lookup(matchedList[i].document, key.Key), lookup(matchedList[j].document, key.Key))
				if order == 0 {
					continue
				}
				if direction(key.Value) < 0 {
					return order > 0
				}
				return order < 0
			}
			return false
		})
	}
	start := min(int(options.Skip), len(matchedList))
	end := len(matchedList)
	if options.Limit > 0 {
		end = min(start+int(options.Limit), end)
	}
	documents := make([]bson.Raw, 0, end-start)
	for _, m := range matchedList[start:end] {
		if len(options.Projection) == 0 {
			documents = append(documents, m.raw)
			continue
		}
		projected, err := project(m.document, options.Projection)
		if err != nil {
			return nil, err
		}
		documents = append(documents, projected)
	}
	return &cursor{documents: documents}, nil
}

func (driver *MemoryDriver) InsertOne(ctx context.Context, schema *core.SchemaCore, document bson.Raw) (any, error) {
	document, id, err := ensureID(document)
	if err != nil {
		return nil, err
	}
	key, err := keyOf(id)
	if err != nil {
		return nil, err
	}
	driver.mu.Lock()
	defer driver.mu.Unlock()
	coll, err := driver.collection(schema, true)
	if err != nil {
		return nil, err
	}
	if _, exists := coll.index[key]; exists {
		return nil, errors.Wrapf(ErrDuplicateKey, "_id %s", key)
	}
	coll.put(key, document)
	return id, nil
}

func (driver *MemoryDriver) ReplaceOne(ctx context.Context, schema *core.SchemaCore, id any, document bson.Raw) (int64, error) {
	key, err := keyOf(id)
	if err != nil {
		return 0, err
	}
	driver.mu.Lock()
	defer driver.mu.Unlock()
	coll, err := driver.collection(schema, true)
	if err != nil {
		return 0, err
	}
	if _, exists := coll.index[key]; !exists {
		return 0, nil
	}
	coll.put(key, clone(document))
	return 1, nil
}

func (driver *MemoryDriver) Upsert(ctx context.Context, schema *core.SchemaCore, id any, document bson.Raw) error {
	key, err := keyOf(id)
	if err != nil {
		return err
	}
	driver.mu.Lock()
	defer driver.mu.Unlock()
	coll, err := driver.collection(schema, true)
	if err != nil {
		return err
	}
	coll.put(key, clone(document))
	return nil
}

func (driver *MemoryDriver) Delete(ctx context.Context, schema *core.SchemaCore, filter bson.D) (int64, error) {
	driver.mu.Lock()
	defer driver.mu.Unlock()
	coll, err := driver.collection(schema, false)
	if err != nil || coll == nil {
		return 0, err
	}
	matchedList, err := driver.scan(schema, filter)
	if err != nil {
		return 0, err
	}
	keys := make(map[string]bool, len(matchedList))
	for _, m := range matchedList {
		key, err := keyOf(lookup(m.document, "_id"))
		if err != nil {
			return 0, err
		}
		keys[key] = true
	}
	coll.remove(keys)
	return int64(len(keys)), nil
}

func (driver *MemoryDriver) Count(ctx context.Context, schema *core.SchemaCore, filter bson.D) (int64, error) {
	driver.mu.RLock()
	defer driver.mu.RUnlock()
	matchedList, err := driver.scan(schema, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(matchedList)), nil
}

//endregion

//region Helpers

// keyOf returns the canonical extended JSON of an identifier, used as the
// map key of a document.
func keyOf(id any) (string, error) {
	data, err := bson.MarshalExtJSON(bson.D{{Key: "_id", Value: id}}, true, false)
	if err != nil {
		return "", errors.Wrap(err, "encode _id")
	}
	return string(data), nil
}

func clone(document bson.Raw) bson.Raw {
	return append(bson.Raw(nil), document...)
}

// ensureID returns a private copy of document with an "_id", generating an
// ObjectID when it has none, and the identifier.
func ensureID(document bson.Raw) (bson.Raw, any, error) {
	if value, err := document.LookupErr("_id"); err == nil {
		var id any
		if err := value.Unmarshal(&id); err != nil {
			return nil, nil, errors.Wrap(err, "read _id")
		}
		return clone(document), id, nil
	}
	var fields bson.D
	if err := bson.Unmarshal(document, &fields); err != nil {
		return nil, nil, errors.Wrap(err, "decode document")
	}
	id := primitive.NewObjectID()
	data, err := bson.Marshal(append(bson.D{{Key: "_id", Value: id}}, fields...))
	if err != nil {
		return nil, nil, errors.Wrap(err, "encode document")
	}
	return data, id, nil
}

// project keeps the top-level fields selected by a projection document.
// "_id" is kept unless the projection sets it to 0.
func project(document bson.D, projection bson.D) (bson.Raw, error) {
	keep := map[string]bool{"_id": true}
	for _, elem := range projection {
		keep[elem.Key] = direction(elem.Value) != 0
	}
	projected := bson.D{}
	for _, elem := range document {
		if keep[elem.Key] {
			projected = append(projected, elem)
		}
	}
	data, err := bson.Marshal(projected)
	if err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	return data, nil
}

// direction reads a sort or projection flag of any integer type.
func direction(value any) int64 {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case bool:
		if v {
			return 1
		}
		return 0
	case core.SortOrder:
		return int64(v)
	}
	return 1
}

//endregion
