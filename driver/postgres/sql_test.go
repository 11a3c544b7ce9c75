package postgres

import (
	"testing"

	"github.com/leandroluk/docorm/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const table = `"test"."people"`

func TestBuildSelect(t *testing.T) {
	cases := []struct {
		name    string
		filter  bson.D
		options *core.FindOptions
		sql     string
		args    []any
	}{
		{
			name: "empty filter",
			sql:  `SELECT doc::text FROM "test"."people" WHERE TRUE`,
		},
		{
			name:   "equality",
			filter: bson.D{{Key: "status", Value: "Alive"}},
			sql:    `SELECT doc::text FROM "test"."people" WHERE doc #> $1::text[] = $2::jsonb`,
			args:   []any{[]string{"status"}, `"Alive"`},
		},
		{
			name:   "null equality",
			filter: bson.D{{Key: "meta.origin", Value: nil}},
			sql:    `SELECT doc::text FROM "test"."people" WHERE (doc #> $1::text[] IS NULL OR doc #> $1::text[] = 'null'::jsonb)`,
			args:   []any{[]string{"meta", "origin"}},
		},
		{
			name:   "merged range",
			filter: bson.D{{Key: "age", Value: bson.D{{Key: "$gte", Value: 18}, {Key: "$lt", Value: 65}}}},
			sql: `SELECT doc::text FROM "test"."people" WHERE ` +
				`(jsonb_typeof(doc #> $1::text[]) = jsonb_typeof($2::jsonb) AND doc #> $1::text[] >= $2::jsonb) AND ` +
				`(jsonb_typeof(doc #> $3::text[]) = jsonb_typeof($4::jsonb) AND doc #> $3::text[] < $4::jsonb)`,
			args: []any{[]string{"age"}, "18", []string{"age"}, "65"},
		},
		{
			name:   "ne",
			filter: bson.D{{Key: "name", Value: bson.D{{Key: "$ne", Value: "x"}}}},
			sql:    `SELECT doc::text FROM "test"."people" WHERE (doc #> $1::text[] IS NULL OR doc #> $1::text[] <> $2::jsonb)`,
			args:   []any{[]string{"name"}, `"x"`},
		},
		{
			name:   "in",
			filter: bson.D{{Key: "name", Value: bson.D{{Key: "$in", Value: bson.A{"a", "b"}}}}},
			sql:    `SELECT doc::text FROM "test"."people" WHERE doc #> $1::text[] = ANY($2::jsonb[])`,
			args:   []any{[]string{"name"}, []string{`"a"`, `"b"`}},
		},
		{
			name:   "exists",
			filter: bson.D{{Key: "lastname", Value: bson.D{{Key: "$exists", Value: false}}}},
			sql:    `SELECT doc::text FROM "test"."people" WHERE doc #> $1::text[] IS NULL`,
			args:   []any{[]string{"lastname"}},
		},
		{
			name:   "case-insensitive regex",
			filter: bson.D{{Key: "name", Value: primitive.Regex{Pattern: "^a", Options: "i"}}},
			sql:    `SELECT doc::text FROM "test"."people" WHERE doc #>> $1::text[] ~* $2`,
			args:   []any{[]string{"name"}, "^a"},
		},
		{
			name: "or",
			filter: bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "a", Value: 1}},
				bson.D{{Key: "b", Value: 2}},
			}}},
			sql:  `SELECT doc::text FROM "test"."people" WHERE ((doc #> $1::text[] = $2::jsonb) OR (doc #> $3::text[] = $4::jsonb))`,
			args: []any{[]string{"a"}, "1", []string{"b"}, "2"},
		},
		{
			name:   "nor",
			filter: bson.D{{Key: "$nor", Value: bson.A{bson.D{{Key: "a", Value: 1}}}}},
			sql:    `SELECT doc::text FROM "test"."people" WHERE NOT ((doc #> $1::text[] = $2::jsonb))`,
			args:   []any{[]string{"a"}, "1"},
		},
		{
			name:   "sort and window",
			filter: bson.D{{Key: "status", Value: "Alive"}},
			options: &core.FindOptions{
				Sort:  bson.D{{Key: "lastname", Value: 1}, {Key: "age", Value: core.Descending}},
				Skip:  20,
				Limit: 10,
			},
			sql: `SELECT doc::text FROM "test"."people" WHERE doc #> $1::text[] = $2::jsonb ` +
				`ORDER BY doc #> $3::text[] ASC NULLS FIRST, doc #> $4::text[] DESC NULLS LAST LIMIT 10 OFFSET 20`,
			args: []any{[]string{"status"}, `"Alive"`, []string{"lastname"}, []string{"age"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sql, args, err := buildSelect(table, tc.filter, tc.options)
			require.NoError(t, err)
			assert.Equal(t, tc.sql, sql)
			assert.Equal(t, tc.args, args)
		})
	}
}

func TestBuildCountAndDelete(t *testing.T) {
	filter := bson.D{{Key: "status", Value: "Deceased"}}

	sql, args, err := buildCount(table, filter)
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "test"."people" WHERE doc #> $1::text[] = $2::jsonb`, sql)
	assert.Equal(t, []any{[]string{"status"}, `"Deceased"`}, args)

	sql, args, err = buildDelete(table, nil)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "test"."people" WHERE TRUE`, sql)
	assert.Empty(t, args)
}

func TestUnsupportedOperators(t *testing.T) {
	for _, filter := range []bson.D{
		{{Key: "age", Value: bson.D{{Key: "$mod", Value: bson.A{2, 0}}}}},
		{{Key: "$where", Value: "this.age > 1"}},
	} {
		_, _, err := buildSelect(table, filter, nil)
		assert.ErrorIs(t, err, ErrUnsupportedOperator)
	}

	_, _, err := buildCount(table, bson.D{{Key: "$or", Value: bson.A{}}})
	assert.Error(t, err)
}

func TestJSONValue(t *testing.T) {
	id, err := primitive.ObjectIDFromHex("5f1b2c3d4e5f6a7b8c9d0e1f")
	require.NoError(t, err)

	cases := map[string]any{
		`"text"`: "text",
		`42`:     int64(42),
		`true`:   true,
		`null`:   nil,
		`{"$oid":"5f1b2c3d4e5f6a7b8c9d0e1f"}`: id,
	}
	for want, value := range cases {
		got, err := jsonValue(value)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestRowRoundTrip(t *testing.T) {
	document, err := bson.Marshal(bson.D{
		{Key: "_id", Value: "k-1"},
		{Key: "name", Value: "Ada"},
		{Key: "amount", Value: int64(7)},
	})
	require.NoError(t, err)

	key, text, err := encodeRow("k-1", document)
	require.NoError(t, err)
	assert.Equal(t, `"k-1"`, key)

	decoded, err := decodeDocument(text)
	require.NoError(t, err)
	assert.Equal(t, "Ada", decoded.Lookup("name").StringValue())

	projected, err := project(decoded, bson.D{{Key: "name", Value: 1}})
	require.NoError(t, err)
	var fields bson.D
	require.NoError(t, bson.Unmarshal(projected, &fields))
	assert.Equal(t, bson.D{{Key: "_id", Value: "k-1"}, {Key: "name", Value: "Ada"}}, fields)
}

func TestEnsureID(t *testing.T) {
	document, err := bson.Marshal(bson.D{{Key: "name", Value: "Ada"}})
	require.NoError(t, err)

	withID, id, err := ensureID(document)
	require.NoError(t, err)
	objectID, ok := id.(primitive.ObjectID)
	require.True(t, ok)
	assert.Equal(t, objectID, withID.Lookup("_id").ObjectID())

	again, sameID, err := ensureID(withID)
	require.NoError(t, err)
	assert.Equal(t, id, sameID)
	assert.Equal(t, withID, again)
}
