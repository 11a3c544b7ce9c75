package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leandroluk/docorm/core"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

//region cursor

type cursor struct {
	rows    pgx.Rows
	current bson.Raw
	project bson.D
	err     error
}

func (c *cursor) Next(ctx context.Context) bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	var text string
	if err := c.rows.Scan(&text); err != nil {
		c.err = err
		return false
	}
	document, err := decodeDocument(text)
	if err != nil {
		c.err = err
		return false
	}
	if len(c.project) > 0 {
		if document, err = project(document, c.project); err != nil {
			c.err = err
			return false
		}
	}
	c.current = document
	return true
}

func (c *cursor) Raw() bson.Raw { return c.current }

func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *cursor) Close(ctx context.Context) error {
	c.rows.Close()
	return nil
}

//endregion

//region PostgresDriver

// PostgresDriver stores each collection as a table (id TEXT PRIMARY KEY,
// doc JSONB) and runs native filters as SQL over the JSONB column. The
// database of a binding is a PostgreSQL schema. Tables are created on first
// use.
type PostgresDriver struct {
	pool          *pgxpool.Pool
	defaultSchema string
	logger        *zap.Logger
	tables        sync.Map // qualified table name -> struct{}
}

var _ core.Driver = (*PostgresDriver)(nil)

// NewPostgresDriver opens a pool on connString. defaultSchema is used by
// bindings without a database; empty means the search_path.
func NewPostgresDriver(ctx context.Context, connString string, defaultSchema string, logger *zap.Logger) (*PostgresDriver, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresDriver{pool: pool, defaultSchema: defaultSchema, logger: logger}, nil
}

func (driver *PostgresDriver) formatTable(schema *core.SchemaCore) string {
	database := driver.defaultSchema
	if schema.Database != "" {
		database = schema.Database
	}
	if database != "" {
		return pgx.Identifier{database, schema.Collection}.Sanitize()
	}
	return pgx.Identifier{schema.Collection}.Sanitize()
}

// table returns the qualified table name, creating the schema and the table
// the first time the collection is used.
func (driver *PostgresDriver) table(ctx context.Context, schema *core.SchemaCore) (string, error) {
	table := driver.formatTable(schema)
	if _, ok := driver.tables.Load(table); ok {
		return table, nil
	}
	database := driver.defaultSchema
	if schema.Database != "" {
		database = schema.Database
	}
	if database != "" {
		sqlQuery := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", pgx.Identifier{database}.Sanitize())
		if _, err := driver.pool.Exec(ctx, sqlQuery); err != nil {
			return "", err
		}
	}
	sqlQuery := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, doc JSONB NOT NULL)", table)
	if _, err := driver.pool.Exec(ctx, sqlQuery); err != nil {
		return "", err
	}
	driver.tables.Store(table, struct{}{})
	driver.logger.Debug("collection table ready", zap.String("table", table))
	return table, nil
}

func (driver *PostgresDriver) Connect(ctx context.Context) error {
	return driver.pool.Ping(ctx)
}

func (driver *PostgresDriver) Ping(ctx context.Context) error {
	return driver.pool.Ping(ctx)
}

func (driver *PostgresDriver) Close(ctx context.Context) error {
	driver.pool.Close()
	return nil
}

func (driver *PostgresDriver) Find(ctx context.Context, schema *core.SchemaCore, filter bson.D, options *core.FindOptions) (core.Cursor, error) {
	table, err := driver.table(ctx, schema)
	if err != nil {
		return nil, err
	}
	sqlQuery, argList, err := buildSelect(table, filter, options)
	if err != nil {
		return nil, err
	}
	rowList, err := driver.pool.Query(ctx, sqlQuery, argList...)
	if err != nil {
		return nil, err
	}
	result := &cursor{rows: rowList}
	if options != nil {
		result.project = options.Projection
	}
	return result, nil
}

func (driver *PostgresDriver) InsertOne(ctx context.Context, schema *core.SchemaCore, document bson.Raw) (any, error) {
	table, err := driver.table(ctx, schema)
	if err != nil {
		return nil, err
	}
	document, id, err := ensureID(document)
	if err != nil {
		return nil, err
	}
	key, text, err := encodeRow(id, document)
	if err != nil {
		return nil, err
	}
	sqlQuery := fmt.Sprintf("INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb)", table)
	if _, err := driver.pool.Exec(ctx, sqlQuery, key, text); err != nil {
		return nil, err
	}
	return id, nil
}

func (driver *PostgresDriver) ReplaceOne(ctx context.Context, schema *core.SchemaCore, id any, document bson.Raw) (int64, error) {
	table, err := driver.table(ctx, schema)
	if err != nil {
		return 0, err
	}
	key, text, err := encodeRow(id, document)
	if err != nil {
		return 0, err
	}
	sqlQuery := fmt.Sprintf("UPDATE %s SET doc = $2::jsonb WHERE id = $1", table)
	tag, err := driver.pool.Exec(ctx, sqlQuery, key, text)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (driver *PostgresDriver) Upsert(ctx context.Context, schema *core.SchemaCore, id any, document bson.Raw) error {
	table, err := driver.table(ctx, schema)
	if err != nil {
		return err
	}
	key, text, err := encodeRow(id, document)
	if err != nil {
		return err
	}
	sqlQuery := fmt.Sprintf("INSERT INTO %s (id, doc) VALUES ($1, $2::jsonb) ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc", table)
	_, err = driver.pool.Exec(ctx, sqlQuery, key, text)
	return err
}

func (driver *PostgresDriver) Delete(ctx context.Context, schema *core.SchemaCore, filter bson.D) (int64, error) {
	table, err := driver.table(ctx, schema)
	if err != nil {
		return 0, err
	}
	sqlQuery, argList, err := buildDelete(table, filter)
	if err != nil {
		return 0, err
	}
	tag, err := driver.pool.Exec(ctx, sqlQuery, argList...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (driver *PostgresDriver) Count(ctx context.Context, schema *core.SchemaCore, filter bson.D) (int64, error) {
	table, err := driver.table(ctx, schema)
	if err != nil {
		return 0, err
	}
	sqlQuery, argList, err := buildCount(table, filter)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := driver.pool.QueryRow(ctx, sqlQuery, argList...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

//endregion

//region Helpers

// ensureID returns document with an "_id", generating an ObjectID when it
// has none, and the identifier.
func ensureID(document bson.Raw) (bson.Raw, any, error) {
	if value, err := document.LookupErr("_id"); err == nil {
		var id any
		if err := value.Unmarshal(&id); err != nil {
			return nil, nil, errors.Wrap(err, "read _id")
		}
		return document, id, nil
	}
	id := primitive.NewObjectID()
	elements, err := document.Elements()
	if err != nil {
		return nil, nil, errors.Wrap(err, "read document")
	}
	withID := bson.D{{Key: "_id", Value: id}}
	for _, element := range elements {
		withID = append(withID, bson.E{Key: element.Key(), Value: element.Value()})
	}
	data, err := bson.Marshal(withID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encode document")
	}
	return data, id, nil
}

// encodeRow returns the primary key and the JSONB text of a document.
func encodeRow(id any, document bson.Raw) (string, string, error) {
	key, err := jsonValue(id)
	if err != nil {
		return "", "", err
	}
	text, err := bson.MarshalExtJSON(document, false, false)
	if err != nil {
		return "", "", errors.Wrap(err, "encode document")
	}
	return key, string(text), nil
}

func decodeDocument(text string) (bson.Raw, error) {
	var document bson.Raw
	if err := bson.UnmarshalExtJSON([]byte(text), false, &document); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	return document, nil
}

// project keeps the top-level fields selected by a projection document.
// "_id" is kept unless the projection sets it to 0.
func project(document bson.Raw, projection bson.D) (bson.Raw, error) {
	keep := map[string]bool{"_id": true}
	for _, elem := range projection {
		keep[elem.Key] = direction(elem.Value) != 0
	}
	elements, err := document.Elements()
	if err != nil {
		return nil, errors.Wrap(err, "read document")
	}
	projected := bson.D{}
	for _, element := range elements {
		if keep[element.Key()] {
			projected = append(projected, bson.E{Key: element.Key(), Value: element.Value()})
		}
	}
	data, err := bson.Marshal(projected)
	if err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	return data, nil
}

//endregion
