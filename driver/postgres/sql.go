// Package postgres implements core.Driver over PostgreSQL, storing each
// document as JSONB.
// This file translates native filter documents into SQL.
package postgres

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/leandroluk/docorm/core"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrUnsupportedOperator reports a filter operator the SQL translation does
// not handle.
var ErrUnsupportedOperator = errors.New("operator not supported by the postgres driver")

// statement accumulates SQL text and its positional arguments.
type statement struct {
	sql  strings.Builder
	args []any
}

func (s *statement) arg(value any) string {
	s.args = append(s.args, value)
	return fmt.Sprintf("$%d", len(s.args))
}

// jsonValue encodes a native value as relaxed extended JSON text, the same
// representation documents are stored with.
func jsonValue(value any) (string, error) {
	data, err := bson.MarshalExtJSON(bson.D{{Key: "v", Value: value}}, false, false)
	if err != nil {
		return "", errors.Wrap(err, "encode value")
	}
	var envelope struct {
		V json.RawMessage `json:"v"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", errors.Wrap(err, "read value envelope")
	}
	return string(envelope.V), nil
}

// path converts a dotted field name into a text[] path argument.
func (s *statement) path(field string) string {
	return s.arg(strings.Split(field, ".")) + "::text[]"
}

// where writes the SQL condition of a filter document. An empty filter is TRUE.
func (s *statement) where(filter bson.D) error {
	if len(filter) == 0 {
		s.sql.WriteString("TRUE")
		return nil
	}
	for i, elem := range filter {
		if i > 0 {
			s.sql.WriteString(" AND ")
		}
		if err := s.element(elem); err != nil {
			return err
		}
	}
	return nil
}

func (s *statement) element(elem bson.E) error {
	switch elem.Key {
	case "$and", "$or", "$nor":
		return s.logical(elem.Key, elem.Value)
	}
	if strings.HasPrefix(elem.Key, "$") {
		return errors.Wrapf(ErrUnsupportedOperator, "%s", elem.Key)
	}
	if operators, ok := operatorDoc(elem.Value); ok {
		for i, op := range operators {
			if i > 0 {
				s.sql.WriteString(" AND ")
			}
			if err := s.operator(elem.Key, op.Key, op.Value); err != nil {
				return err
			}
		}
		return nil
	}
	if regex, ok := elem.Value.(primitive.Regex); ok {
		return s.regex(elem.Key, regex.Pattern, regex.Options)
	}
	return s.operator(elem.Key, "$eq", elem.Value)
}

func (s *statement) logical(key string, value any) error {
	list, ok := value.(bson.A)
	if !ok || len(list) == 0 {
		return errors.Errorf("%s needs a non-empty array", key)
	}
	joiner := " AND "
	if key == "$or" || key == "$nor" {
		joiner = " OR "
	}
	if key == "$nor" {
		s.sql.WriteString("NOT ")
	}
	s.sql.WriteString("(")
	for i, item := range list {
		if i > 0 {
			s.sql.WriteString(joiner)
		}
		doc, ok := item.(bson.D)
		if !ok {
			return errors.Errorf("%s item %d is not a document", key, i)
		}
		s.sql.WriteString("(")
		if err := s.where(doc); err != nil {
			return err
		}
		s.sql.WriteString(")")
	}
	s.sql.WriteString(")")
	return nil
}

var comparisons = map[string]string{
	"$gt":  ">",
	"$gte": ">=",
	"$lt":  "<",
	"$lte": "<=",
}

func (s *statement) operator(field, op string, value any) error {
	switch op {
	case "$eq":
		if value == nil {
			p := s.path(field)
			fmt.Fprintf(&s.sql, "(doc #> %s IS NULL OR doc #> %s = 'null'::jsonb)", p, p)
			return nil
		}
		encoded, err := jsonValue(value)
		if err != nil {
			return err
		}
		fmt.Fprintf(&s.sql, "doc #> %s = %s::jsonb", s.path(field), s.arg(encoded))
	case "$ne":
		encoded, err := jsonValue(value)
		if err != nil {
			return err
		}
		p := s.path(field)
		fmt.Fprintf(&s.sql, "(doc #> %s IS NULL OR doc #> %s <> %s::jsonb)", p, p, s.arg(encoded))
	case "$gt", "$gte", "$lt", "$lte":
		encoded, err := jsonValue(value)
		if err != nil {
			return err
		}
		p, v := s.path(field), s.arg(encoded)
		fmt.Fprintf(&s.sql, "(jsonb_typeof(doc #> %s) = jsonb_typeof(%s::jsonb) AND doc #> %s %s %s::jsonb)",
			p, v, p, comparisons[op], v)
	case "$in":
		list, ok := value.(bson.A)
		if !ok {
			return errors.Errorf("$in on %q needs an array", field)
		}
		encodedList := make([]string, 0, len(list))
		for _, item := range list {
			encoded, err := jsonValue(item)
			if err != nil {
				return err
			}
			encodedList = append(encodedList, encoded)
		}
		fmt.Fprintf(&s.sql, "doc #> %s = ANY(%s::jsonb[])", s.path(field), s.arg(encodedList))
	case "$exists":
		exists, _ := value.(bool)
		if exists {
			fmt.Fprintf(&s.sql, "doc #> %s IS NOT NULL", s.path(field))
		} else {
			fmt.Fprintf(&s.sql, "doc #> %s IS NULL", s.path(field))
		}
	case "$regex":
		switch pattern := value.(type) {
		case string:
			return s.regex(field, pattern, "")
		case primitive.Regex:
			return s.regex(field, pattern.Pattern, pattern.Options)
		}
		return errors.Errorf("$regex on %q needs a string pattern", field)
	default:
		return errors.Wrapf(ErrUnsupportedOperator, "%s on %q", op, field)
	}
	return nil
}

func (s *statement) regex(field, pattern, options string) error {
	match := "~"
	if strings.Contains(options, "i") {
		match = "~*"
	}
	fmt.Fprintf(&s.sql, "doc #>> %s %s %s", s.path(field), match, s.arg(pattern))
	return nil
}

// operatorDoc reports whether value is a document of $-prefixed keys.
func operatorDoc(value any) (bson.D, bool) {
	doc, ok := value.(bson.D)
	if !ok || len(doc) == 0 {
		return nil, false
	}
	for _, elem := range doc {
		if !strings.HasPrefix(elem.Key, "$") {
			return nil, false
		}
	}
	return doc, true
}

// buildSelect returns the SELECT statement of a Find call.
func buildSelect(table string, filter bson.D, options *core.FindOptions) (string, []any, error) {
	s := &statement{}
	fmt.Fprintf(&s.sql, "SELECT doc::text FROM %s WHERE ", table)
	if err := s.where(filter); err != nil {
		return "", nil, err
	}
	if options == nil {
		return s.sql.String(), s.args, nil
	}
	if len(options.Sort) > 0 {
		s.sql.WriteString(" ORDER BY ")
		for i, key := range options.Sort {
			if i > 0 {
				s.sql.WriteString(", ")
			}
			order := "ASC NULLS FIRST"
			if direction(key.Value) < 0 {
				order = "DESC NULLS LAST"
			}
			fmt.Fprintf(&s.sql, "doc #> %s %s", s.path(key.Key), order)
		}
	}
	if options.Limit > 0 {
		fmt.Fprintf(&s.sql, " LIMIT %d", options.Limit)
	}
	if options.Skip > 0 {
		fmt.Fprintf(&s.sql, " OFFSET %d", options.Skip)
	}
	return s.sql.String(), s.args, nil
}

// direction reads a sort direction of any integer type.
func direction(value any) int64 {
	switch v := value.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case core.SortOrder:
		return int64(v)
	}
	return 1
}

// buildCount returns the COUNT statement of a filter.
func buildCount(table string, filter bson.D) (string, []any, error) {
	s := &statement{}
	fmt.Fprintf(&s.sql, "SELECT COUNT(*) FROM %s WHERE ", table)
	if err := s.where(filter); err != nil {
		return "", nil, err
	}
	return s.sql.String(), s.args, nil
}

// buildDelete returns the DELETE statement of a filter.
func buildDelete(table string, filter bson.D) (string, []any, error) {
	s := &statement{}
	fmt.Fprintf(&s.sql, "DELETE FROM %s WHERE ", table)
	if err := s.where(filter); err != nil {
		return "", nil, err
	}
	return s.sql.String(), s.args, nil
}
