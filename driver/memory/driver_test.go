package memory

import (
	"context"
	"testing"
	"time"

	"github.com/leandroluk/docorm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var items = &core.SchemaCore{Collection: "items"}

func mustRaw(t *testing.T, doc bson.D) bson.Raw {
	t.Helper()
	data, err := bson.Marshal(doc)
	require.NoError(t, err)
	return data
}

func seed(t *testing.T, driver *MemoryDriver) {
	t.Helper()
	ctx := context.Background()
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []bson.D{
		{{Key: "_id", Value: 1}, {Key: "name", Value: "apple"}, {Key: "qty", Value: 5}, {Key: "tags", Value: bson.A{"red", "fruit"}}, {Key: "at", Value: when}},
		{{Key: "_id", Value: 2}, {Key: "name", Value: "banana"}, {Key: "qty", Value: 12.5}, {Key: "tags", Value: bson.A{"yellow", "fruit"}}, {Key: "at", Value: when.Add(time.Hour)}},
		{{Key: "_id", Value: 3}, {Key: "name", Value: "Carrot"}, {Key: "qty", Value: int64(0)}, {Key: "meta", Value: bson.D{{Key: "origin", Value: "fr"}}}},
		{{Key: "_id", Value: 4}, {Key: "name", Value: "date"}, {Key: "qty", Value: nil}},
	}
	for _, doc := range docs {
		_, err := driver.InsertOne(ctx, items, mustRaw(t, doc))
		require.NoError(t, err)
	}
}

func ids(t *testing.T, cursor core.Cursor) []int32 {
	t.Helper()
	var list []int32
	for cursor.Next(context.Background()) {
		list = append(list, cursor.Raw().Lookup("_id").Int32())
	}
	require.NoError(t, cursor.Err())
	require.NoError(t, cursor.Close(context.Background()))
	return list
}

func TestFindFilters(t *testing.T) {
	ctx := context.Background()
	driver := NewMemoryDriver("test")
	seed(t, driver)

	cases := []struct {
		name   string
		filter bson.D
		want   []int32
	}{
		{"all", bson.D{}, []int32{1, 2, 3, 4}},
		{"equality", bson.D{{Key: "name", Value: "apple"}}, []int32{1}},
		{"equality across number types", bson.D{{Key: "qty", Value: 0}}, []int32{3}},
		{"array contains", bson.D{{Key: "tags", Value: "fruit"}}, []int32{1, 2}},
		{"gt mixes int and double", bson.D{{Key: "qty", Value: bson.D{{Key: "$gt", Value: 4}}}}, []int32{1, 2}},
		{"range merged", bson.D{{Key: "qty", Value: bson.D{{Key: "$gte", Value: 0}, {Key: "$lt", Value: 6}}}}, []int32{1, 3}},
		{"ne matches missing", bson.D{{Key: "meta.origin", Value: bson.D{{Key: "$ne", Value: "fr"}}}}, []int32{1, 2, 4}},
		{"null matches null and missing", bson.D{{Key: "meta", Value: bson.D{{Key: "$eq", Value: nil}}}}, []int32{1, 2, 4}},
		{"null field", bson.D{{Key: "qty", Value: nil}}, []int32{4}},
		{"exists", bson.D{{Key: "tags", Value: bson.D{{Key: "$exists", Value: true}}}}, []int32{1, 2}},
		{"not exists", bson.D{{Key: "tags", Value: bson.D{{Key: "$exists", Value: false}}}}, []int32{3, 4}},
		{"in", bson.D{{Key: "name", Value: bson.D{{Key: "$in", Value: bson.A{"date", "apple", "zzz"}}}}}, []int32{1, 4}},
		{"regex", bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: "^[ab]"}}}}, []int32{1, 2}},
		{"regex options", bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: "^c"}, {Key: "$options", Value: "i"}}}}, []int32{3}},
		{"regex value", bson.D{{Key: "name", Value: primitive.Regex{Pattern: "^C", Options: ""}}}, []int32{3}},
		{"dotted path", bson.D{{Key: "meta.origin", Value: "fr"}}, []int32{3}},
		{"dates", bson.D{{Key: "at", Value: bson.D{{Key: "$gt", Value: time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC)}}}}, []int32{2}},
		{"or", bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "name", Value: "apple"}},
			bson.D{{Key: "qty", Value: 0}},
		}}}, []int32{1, 3}},
		{"and", bson.D{{Key: "$and", Value: bson.A{
			bson.D{{Key: "tags", Value: "fruit"}},
			bson.D{{Key: "qty", Value: bson.D{{Key: "$lt", Value: 10}}}},
		}}}, []int32{1}},
		{"nor", bson.D{{Key: "$nor", Value: bson.A{
			bson.D{{Key: "tags", Value: "fruit"}},
		}}}, []int32{3, 4}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cursor, err := driver.Find(ctx, items, tc.filter, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ids(t, cursor))

			count, err := driver.Count(ctx, items, tc.filter)
			require.NoError(t, err)
			assert.EqualValues(t, len(tc.want), count)
		})
	}
}

func TestFindUnsupportedOperator(t *testing.T) {
	driver := NewMemoryDriver("test")
	seed(t, driver)

	_, err := driver.Find(context.Background(), items, bson.D{{Key: "qty", Value: bson.D{{Key: "$mod", Value: bson.A{2, 0}}}}}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedOperator)
}

func TestFindOptions(t *testing.T) {
	ctx := context.Background()
	driver := NewMemoryDriver("test")
	seed(t, driver)

	cursor, err := driver.Find(ctx, items, bson.D{}, &core.FindOptions{Sort: bson.D{{Key: "qty", Value: 1}}})
	require.NoError(t, err)
	assert.Equal(t, []int32{4, 3, 1, 2}, ids(t, cursor), "null sorts first")

	cursor, err = driver.Find(ctx, items, bson.D{}, &core.FindOptions{Sort: bson.D{{Key: "qty", Value: -1}}, Skip: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 3}, ids(t, cursor))

	cursor, err = driver.Find(ctx, items, bson.D{}, &core.FindOptions{Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, ids(t, cursor))

	cursor, err = driver.Find(ctx, items, bson.D{{Key: "_id", Value: 3}}, &core.FindOptions{
		Projection: bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 0}},
	})
	require.NoError(t, err)
	require.True(t, cursor.Next(ctx))
	var projected bson.D
	require.NoError(t, bson.Unmarshal(cursor.Raw(), &projected))
	assert.Equal(t, bson.D{{Key: "name", Value: "Carrot"}}, projected)
}

func TestWrites(t *testing.T) {
	ctx := context.Background()
	driver := NewMemoryDriver("test")

	id, err := driver.InsertOne(ctx, items, mustRaw(t, bson.D{{Key: "name", Value: "generated"}}))
	require.NoError(t, err)
	objectID, ok := id.(primitive.ObjectID)
	require.True(t, ok)
	assert.False(t, objectID.IsZero())

	_, err = driver.InsertOne(ctx, items, mustRaw(t, bson.D{{Key: "_id", Value: objectID}}))
	assert.ErrorIs(t, err, ErrDuplicateKey)

	matched, err := driver.ReplaceOne(ctx, items, objectID, mustRaw(t, bson.D{{Key: "_id", Value: objectID}, {Key: "name", Value: "replaced"}}))
	require.NoError(t, err)
	assert.EqualValues(t, 1, matched)

	matched, err = driver.ReplaceOne(ctx, items, primitive.NewObjectID(), mustRaw(t, bson.D{{Key: "name", Value: "ghost"}}))
	require.NoError(t, err)
	assert.Zero(t, matched)

	require.NoError(t, driver.Upsert(ctx, items, "key", mustRaw(t, bson.D{{Key: "_id", Value: "key"}, {Key: "v", Value: 1}})))
	require.NoError(t, driver.Upsert(ctx, items, "key", mustRaw(t, bson.D{{Key: "_id", Value: "key"}, {Key: "v", Value: 2}})))

	count, err := driver.Count(ctx, items, bson.D{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	cursor, err := driver.Find(ctx, items, bson.D{{Key: "_id", Value: "key"}}, nil)
	require.NoError(t, err)
	require.True(t, cursor.Next(ctx))
	assert.EqualValues(t, 2, cursor.Raw().Lookup("v").Int32())

	deleted, err := driver.Delete(ctx, items, bson.D{{Key: "name", Value: "replaced"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	deleted, err = driver.Delete(ctx, items, bson.D{{Key: "name", Value: "replaced"}})
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestDatabasesAreIsolated(t *testing.T) {
	ctx := context.Background()
	driver := NewMemoryDriver("test")
	other := &core.SchemaCore{Database: "other", Collection: "items"}

	_, err := driver.InsertOne(ctx, items, mustRaw(t, bson.D{{Key: "_id", Value: 1}}))
	require.NoError(t, err)

	count, err := driver.Count(ctx, other, bson.D{})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	driver := NewMemoryDriver("test")
	seed(t, driver)

	require.NoError(t, driver.Close(ctx))
	assert.ErrorIs(t, driver.Ping(ctx), ErrClosed)
	_, err := driver.Count(ctx, items, bson.D{})
	assert.ErrorIs(t, err, ErrClosed)

	require.NoError(t, driver.Connect(ctx))
	count, err := driver.Count(ctx, items, bson.D{})
	require.NoError(t, err)
	assert.EqualValues(t, 4, count)
}

func TestStoredDocumentsAreCopies(t *testing.T) {
	ctx := context.Background()
	driver := NewMemoryDriver("test")

	raw := mustRaw(t, bson.D{{Key: "_id", Value: 1}, {Key: "name", Value: "a"}})
	_, err := driver.InsertOne(ctx, items, raw)
	require.NoError(t, err)
	for i := range raw {
		raw[i] = 0
	}

	cursor, err := driver.Find(ctx, items, bson.D{}, nil)
	require.NoError(t, err)
	require.True(t, cursor.Next(ctx))
	assert.Equal(t, "a", cursor.Raw().Lookup("name").StringValue())
}
