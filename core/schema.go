// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines the schema system, which maps Go structs to collections,
// describes their fields and resolves the collection binding of each type.
package core

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Field represents a struct field mapped to a document field.
//
// It contains the Go field name, the persisted (document) field name, the Go
// type and markers for the identifier and the timestamp fields.
type Field struct {
	StructFieldName string       // Name of the field in the Go struct
	PersistedName   string       // Name of the field in the stored document
	Type            reflect.Type // Go type of the field
	Index           []int        // Index path for reflect.Value.FieldByIndex
	MemoryOffset    uintptr      // Memory offset within the root struct
	IsID            bool         // Whether this field maps to "_id"

	// Special timestamp markers
	IsCreatedAt bool
	IsUpdatedAt bool
}

// FieldOption is a function used to configure a Field.
type FieldOption func(*Field)

// CreatedAt marks the field as the createdAt timestamp, set on insert.
func CreatedAt() FieldOption {
	return func(f *Field) { f.IsCreatedAt = true }
}

// UpdatedAt marks the field as the updatedAt timestamp, set on insert and update.
func UpdatedAt() FieldOption {
	return func(f *Field) { f.IsUpdatedAt = true }
}

// Binding is the (database, collection) pair an entity type is stored in.
// An empty Database means the driver's default database.
type Binding struct {
	Database   string
	Collection string
}

// Binder lets an entity type declare its own binding.
//
// Example:
//
//	func (Person) CollectionBinding() core.Binding {
//		return core.Binding{Collection: "people"}
//	}
type Binder interface {
	CollectionBinding() Binding
}

var bindingOverrides sync.Map // lower-cased type name -> Binding

// SetBindingOverride registers a deployment-time binding for the named type.
// Type names match case-insensitively. Non-empty parts of the override win
// over the binding declared in code. Overrides only apply to schemas built
// after the call.
func SetBindingOverride(typeName string, binding Binding) {
	bindingOverrides.Store(strings.ToLower(typeName), binding)
}

// SchemaCore contains the minimal schema information required at runtime.
//
// It includes the database name, collection name, fields, the identifier
// field and a map of fields indexed by their memory offsets.
type SchemaCore struct {
	Database       string
	Collection     string
	Fields         []*Field
	Type           reflect.Type
	Codec          Codec
	idField        *Field
	fieldsByOffset map[uintptr]*Field
}

// Binding returns the collection binding of the schema.
func (s *SchemaCore) Binding() Binding {
	return Binding{Database: s.Database, Collection: s.Collection}
}

// IDField returns the identifier field.
func (s *SchemaCore) IDField() *Field { return s.idField }

// ResolveField maps a domain field name to its persisted name.
//
// Domain names are Go struct field names, matched case-insensitively. A
// dotted path resolves its first segment and keeps the rest as written, so
// "Address.city" becomes "address.city".
func (s *SchemaCore) ResolveField(name string) (string, bool) {
	head, rest, nested := strings.Cut(name, ".")
	var match *Field
	for _, f := range s.Fields {
		if f.StructFieldName == head {
			match = f
			break
		}
		if match == nil && strings.EqualFold(f.StructFieldName, head) {
			match = f
		}
	}
	if match == nil {
		return "", false
	}
	if nested {
		return match.PersistedName + "." + rest, true
	}
	return match.PersistedName, true
}

// fieldByStructName returns the field with the given Go name, compared
// case-insensitively.
func (s *SchemaCore) fieldByStructName(name string) *Field {
	for _, f := range s.Fields {
		if strings.EqualFold(f.StructFieldName, name) {
			return f
		}
	}
	return nil
}

// fieldByPersistedName returns the field stored under the given name.
func (s *SchemaCore) fieldByPersistedName(name string) *Field {
	for _, f := range s.Fields {
		if f.PersistedName == name {
			return f
		}
	}
	return nil
}

// SchemaMeta extends SchemaCore with runtime metadata.
//
// It contains registered hooks and cached references to the timestamp fields.
type SchemaMeta[T any] struct {
	SchemaCore
	PreHookList  map[PreHook][]func(*T) error
	PostHookList map[PostHook][]func(*T) error

	createdAtField *Field
	updatedAtField *Field
}

// RegisterPreHook registers a pre-operation hook for the schema.
func (s *SchemaMeta[T]) RegisterPreHook(hook PreHook, fn func(*T) error) {
	s.PreHookList[hook] = append(s.PreHookList[hook], fn)
}

// RegisterPostHook registers a post-operation hook for the schema.
func (s *SchemaMeta[T]) RegisterPostHook(hook PostHook, fn func(*T) error) {
	s.PostHookList[hook] = append(s.PostHookList[hook], fn)
}

// SchemaBuilder is used to construct a schema definition from a Go struct.
//
// It collects field metadata from bson struct tags and applies
// customization through SchemaOptions.
type SchemaBuilder[T any] struct {
	database       string
	collection     string
	codec          Codec
	structType     reflect.Type
	fields         []*Field
	fieldsByOffset map[uintptr]*Field
}

// SchemaOption represents a function that customizes the schema builder.
type SchemaOption[T any] func(*SchemaBuilder[T])

// Table sets the collection name for the schema.
func Table[T any](name string) SchemaOption[T] {
	return func(schemaBuilder *SchemaBuilder[T]) { schemaBuilder.collection = name }
}

// Database sets the database name for the schema.
func Database[T any](name string) SchemaOption[T] {
	return func(schemaBuilder *SchemaBuilder[T]) { schemaBuilder.database = name }
}

// WithCodec replaces the default BSON codec for the schema.
func WithCodec[T any](codec Codec) SchemaOption[T] {
	return func(schemaBuilder *SchemaBuilder[T]) { schemaBuilder.codec = codec }
}

// OverrideField allows modifying the metadata of a specific field
// (e.g., marking it as the createdAt or updatedAt timestamp).
//
// Example:
//
//	core.OverrideField(func(p *Person) *time.Time { return &p.Created }, core.CreatedAt())
func OverrideField[T any, F any](selector func(*T) *F, opts ...FieldOption) SchemaOption[T] {
	return func(schemaBuilder *SchemaBuilder[T]) {
		if schemaBuilder.fieldsByOffset == nil || len(schemaBuilder.fields) == 0 {
			return
		}
		offset := offsetOf(selector)
		if field, ok := schemaBuilder.fieldsByOffset[offset]; ok {
			for _, opt := range opts {
				opt(field)
			}
		} else {
			panic("core: OverrideField: field not found by selector")
		}
	}
}

var schemaCache sync.Map // reflect.Type -> any (*SchemaMeta[T])

// SchemaFor returns the schema of T with its default binding, building it on
// first use. The same *SchemaMeta[T] is returned for the lifetime of the
// process, so the binding of a type is resolved exactly once.
func SchemaFor[T any]() *SchemaMeta[T] {
	key := reflect.TypeOf((*T)(nil)).Elem()
	if cached, ok := schemaCache.Load(key); ok {
		return cached.(*SchemaMeta[T])
	}
	actual, _ := schemaCache.LoadOrStore(key, Schema[T]())
	return actual.(*SchemaMeta[T])
}

// Schema builds a SchemaMeta[T] by reflecting on struct fields
// and applying the given SchemaOptions.
//
// It panics when T is not a struct or does not have exactly one field
// stored as "_id".
func Schema[T any](options ...SchemaOption[T]) *SchemaMeta[T] {
	structType := reflect.TypeOf((*T)(nil)).Elem()
	if structType.Kind() != reflect.Struct {
		panic(fmt.Sprintf("core: Schema: %s is not a struct", structType))
	}

	builder := &SchemaBuilder[T]{
		structType:     structType,
		fieldsByOffset: make(map[uintptr]*Field),
	}

	// Apply options before building fields (Table/Database/Codec)
	for _, option := range options {
		option(builder)
	}

	collectFields(structType, nil, 0, &builder.fields)
	for _, field := range builder.fields {
		builder.fieldsByOffset[field.MemoryOffset] = field
	}

	// Re-apply options so that OverrideField can work after fields exist
	for _, option := range options {
		option(builder)
	}

	meta := &SchemaMeta[T]{
		SchemaCore: SchemaCore{
			Database:       builder.database,
			Collection:     builder.collection,
			Fields:         builder.fields,
			Type:           structType,
			Codec:          builder.codec,
			fieldsByOffset: builder.fieldsByOffset,
		},
		PreHookList:  make(map[PreHook][]func(*T) error),
		PostHookList: make(map[PostHook][]func(*T) error),
	}
	if meta.Codec == nil {
		meta.Codec = BSONCodec{}
	}
	resolveBinding(&meta.SchemaCore)

	// Detect special fields once
	for _, f := range builder.fields {
		if f.IsID {
			if meta.idField != nil {
				panic(fmt.Sprintf("core: Schema: %s has more than one _id field", structType))
			}
			meta.idField = f
		}
		if f.IsCreatedAt {
			meta.createdAtField = f
		}
		if f.IsUpdatedAt {
			meta.updatedAtField = f
		}
	}
	if meta.idField == nil {
		panic(fmt.Sprintf("core: Schema: %s has no field stored as _id", structType))
	}

	return meta
}

// resolveBinding fills the collection binding: code first (options, then
// Binder), then deployment overrides, then the type name as collection.
func resolveBinding(schema *SchemaCore) {
	instance := reflect.New(schema.Type)
	binder, ok := instance.Elem().Interface().(Binder)
	if !ok {
		binder, ok = instance.Interface().(Binder)
	}
	if ok {
		declared := binder.CollectionBinding()
		if schema.Database == "" {
			schema.Database = declared.Database
		}
		if schema.Collection == "" {
			schema.Collection = declared.Collection
		}
	}
	if value, ok := bindingOverrides.Load(strings.ToLower(schema.Type.Name())); ok {
		override := value.(Binding)
		if override.Database != "" {
			schema.Database = override.Database
		}
		if override.Collection != "" {
			schema.Collection = override.Collection
		}
	}
	if schema.Collection == "" {
		schema.Collection = schema.Type.Name()
	}
}

// collectFields walks the exported fields of a struct the way the BSON codec
// does: "-" skips a field, ",inline" flattens an embedded struct, an untagged
// field is stored under its lower-cased Go name.
func collectFields(structType reflect.Type, index []int, baseOffset uintptr, out *[]*Field) {
	for i := 0; i < structType.NumField(); i++ {
		sf := structType.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, flags, _ := strings.Cut(sf.Tag.Get("bson"), ",")
		if name == "-" {
			continue
		}
		path := append(append([]int{}, index...), i)
		if hasFlag(flags, "inline") && sf.Type.Kind() == reflect.Struct {
			collectFields(sf.Type, path, baseOffset+sf.Offset, out)
			continue
		}
		if name == "" {
			name = strings.ToLower(sf.Name)
		}
		*out = append(*out, &Field{
			StructFieldName: sf.Name,
			PersistedName:   name,
			Type:            sf.Type,
			Index:           path,
			MemoryOffset:    baseOffset + sf.Offset,
			IsID:            name == "_id",
		})
	}
}

func hasFlag(flags string, flag string) bool {
	for _, f := range strings.Split(flags, ",") {
		if f == flag {
			return true
		}
	}
	return false
}
