// Package mongo implements core.Driver over the official MongoDB driver.
// This file defines the MongoDriver type and its operations.
package mongo

import (
	"context"
	"time"

	"github.com/leandroluk/docorm/core"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	mongodb "go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

//region MongoDriver

// MongoDriver runs native filters against a MongoDB deployment.
type MongoDriver struct {
	client          *mongodb.Client
	defaultDatabase string
	logger          *zap.Logger
}

var _ core.Driver = (*MongoDriver)(nil)

// Option configures a MongoDriver.
type Option func(*settings)

type settings struct {
	connectTimeout time.Duration
	logger         *zap.Logger
}

// WithConnectTimeout bounds connection and server selection. Default 10s.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(s *settings) { s.connectTimeout = timeout }
}

// WithLogger sets the logger used for connection events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// NewMongoDriver connects to uri and checks the deployment with a ping.
// defaultDB is used by schemas that do not name a database.
func NewMongoDriver(ctx context.Context, uri string, defaultDB string, options ...Option) (*MongoDriver, error) {
	config := settings{connectTimeout: 10 * time.Second, logger: zap.NewNop()}
	for _, option := range options {
		option(&config)
	}

	opts := mopt.Client().ApplyURI(uri)
	opts.SetConnectTimeout(config.connectTimeout).SetServerSelectionTimeout(config.connectTimeout)
	client, err := mongodb.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	driver := &MongoDriver{client: client, defaultDatabase: defaultDB, logger: config.logger}
	if err := driver.Connect(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	driver.logger.Info("connected to mongodb", zap.String("database", defaultDB))
	return driver, nil
}

// NewMongoDriverFromClient wraps an already connected client.
func NewMongoDriverFromClient(client *mongodb.Client, defaultDB string) *MongoDriver {
	return &MongoDriver{client: client, defaultDatabase: defaultDB, logger: zap.NewNop()}
}

func (driver *MongoDriver) coll(schema *core.SchemaCore) (*mongodb.Collection, error) {
	dbName := driver.defaultDatabase
	if schema.Database != "" {
		dbName = schema.Database
	}
	if dbName == "" {
		return nil, errors.Errorf("mongo driver: no database for collection %q", schema.Collection)
	}
	if schema.Collection == "" {
		return nil, errors.New("mongo driver: empty collection name")
	}
	return driver.client.Database(dbName).Collection(schema.Collection), nil
}

func (driver *MongoDriver) Connect(ctx context.Context) error {
	return driver.client.Ping(ctx, nil)
}

func (driver *MongoDriver) Ping(ctx context.Context) error {
	return driver.client.Ping(ctx, nil)
}

func (driver *MongoDriver) Close(ctx context.Context) error {
	return driver.client.Disconnect(ctx)
}

func (driver *MongoDriver) Find(ctx context.Context, schema *core.SchemaCore, filter bson.D, options *core.FindOptions) (core.Cursor, error) {
	coll, err := driver.coll(schema)
	if err != nil {
		return nil, err
	}
	mongoCursor, err := coll.Find(ctx, nonNil(filter), findOptions(options))
	if err != nil {
		return nil, err
	}
	return cursor{mongoCursor}, nil
}

func (driver *MongoDriver) InsertOne(ctx context.Context, schema *core.SchemaCore, document bson.Raw) (any, error) {
	coll, err := driver.coll(schema)
	if err != nil {
		return nil, err
	}
	result, err := coll.InsertOne(ctx, document)
	if err != nil {
		return nil, err
	}
	return result.InsertedID, nil
}

func (driver *MongoDriver) ReplaceOne(ctx context.Context, schema *core.SchemaCore, id any, document bson.Raw) (int64, error) {
	coll, err := driver.coll(schema)
	if err != nil {
		return 0, err
	}
	result, err := coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, document)
	if err != nil {
		return 0, err
	}
	return result.MatchedCount, nil
}

func (driver *MongoDriver) Upsert(ctx context.Context, schema *core.SchemaCore, id any, document bson.Raw) error {
	coll, err := driver.coll(schema)
	if err != nil {
		return err
	}
	_, err = coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, document, mopt.Replace().SetUpsert(true))
	return err
}

func (driver *MongoDriver) Delete(ctx context.Context, schema *core.SchemaCore, filter bson.D) (int64, error) {
	coll, err := driver.coll(schema)
	if err != nil {
		return 0, err
	}
	result, err := coll.DeleteMany(ctx, nonNil(filter))
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (driver *MongoDriver) Count(ctx context.Context, schema *core.SchemaCore, filter bson.D) (int64, error) {
	coll, err := driver.coll(schema)
	if err != nil {
		return 0, err
	}
	return coll.CountDocuments(ctx, nonNil(filter))
}

//endregion
