// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines sort specifications.
package core

import "go.mongodb.org/mongo-driver/bson"

// SortField is one key of a sort specification.
//
// FieldName is a domain field name; Order is Ascending or Descending.
type SortField struct {
	FieldName string
	Order     SortOrder
}

// Sort is an ordered list of sort keys. Ties on a key are broken by the next
// key; order after the last key is unspecified.
//
// Example:
//
//	core.SortBy("lastname").And("age", core.Descending)
type Sort struct {
	Fields []SortField
}

// SortBy starts a sort specification. The order defaults to Ascending.
func SortBy(field string, order ...SortOrder) *Sort {
	return (&Sort{}).And(field, order...)
}

// And appends a sort key. The order defaults to Ascending.
func (s *Sort) And(field string, order ...SortOrder) *Sort {
	direction := Ascending
	if len(order) > 0 && order[0] == Descending {
		direction = Descending
	}
	s.Fields = append(s.Fields, SortField{FieldName: field, Order: direction})
	return s
}

// Descending flips every key of the specification to descending order.
func (s *Sort) Descending() *Sort {
	for i := range s.Fields {
		s.Fields[i].Order = Descending
	}
	return s
}

// native resolves the sort keys and builds the native sort document.
func (s *Sort) native(resolver FieldResolver) (bson.D, error) {
	if s == nil || len(s.Fields) == 0 {
		return nil, nil
	}
	doc := make(bson.D, 0, len(s.Fields))
	for _, field := range s.Fields {
		name, err := resolveField(resolver, field.FieldName, "order by "+field.FieldName)
		if err != nil {
			return nil, err
		}
		doc = append(doc, bson.E{Key: name, Value: int(field.Order)})
	}
	return doc, nil
}
