// Package mongo implements core.Driver over the official MongoDB driver.
// This file contains helpers that adapt core types to the driver API.
package mongo

import (
	"github.com/leandroluk/docorm/core"
	"go.mongodb.org/mongo-driver/bson"
	mongodb "go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"
)

// cursor exposes the current document of a driver cursor as core.Cursor.
type cursor struct {
	*mongodb.Cursor
}

func (c cursor) Raw() bson.Raw { return c.Current }

// findOptions converts core.FindOptions into driver options. Zero values
// leave the corresponding option unset.
//
// Example:
//
//	opts := findOptions(&core.FindOptions{Sort: bson.D{{Key: "age", Value: -1}}, Limit: 10})
//	// opts.Sort == bson.D{{"age", -1}}, opts.Limit == 10, no skip
func findOptions(options *core.FindOptions) *mopt.FindOptions {
	findOpts := mopt.Find()
	if options == nil {
		return findOpts
	}
	if len(options.Sort) > 0 {
		findOpts.SetSort(options.Sort)
	}
	if options.Skip > 0 {
		findOpts.SetSkip(options.Skip)
	}
	if options.Limit > 0 {
		findOpts.SetLimit(options.Limit)
	}
	if len(options.Projection) > 0 {
		findOpts.SetProjection(options.Projection)
	}
	return findOpts
}

// nonNil returns an empty filter for nil, which the driver rejects.
func nonNil(filter bson.D) bson.D {
	if filter == nil {
		return bson.D{}
	}
	return filter
}
