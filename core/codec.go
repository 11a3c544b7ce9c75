// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines the codec boundary between Go values and documents.
package core

import (
	"fmt"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// Codec converts domain objects to documents and back.
//
// Implementations must agree with the field names reported by the schema:
// the translator resolves query fields through the schema, not the codec.
type Codec interface {
	Encode(value any) (bson.Raw, error)
	Decode(document bson.Raw, out any) error
}

// BSONCodec is the default codec, backed by the mongo-driver struct codec and
// its bson struct tags.
type BSONCodec struct{}

// Encode marshals value into a BSON document.
func (BSONCodec) Encode(value any) (bson.Raw, error) {
	data, err := bson.Marshal(value)
	if err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	return bson.Raw(data), nil
}

// Decode unmarshals a BSON document into out.
func (BSONCodec) Decode(document bson.Raw, out any) error {
	if err := bson.Unmarshal(document, out); err != nil {
		return errors.Wrap(err, "decode document")
	}
	return nil
}

// withoutField returns a copy of document without the named top-level field.
func withoutField(document bson.Raw, name string) (bson.Raw, error) {
	elements, err := document.Elements()
	if err != nil {
		return nil, errors.Wrap(err, "read document")
	}
	copied := bson.D{}
	for _, element := range elements {
		if element.Key() == name {
			continue
		}
		copied = append(copied, bson.E{Key: element.Key(), Value: element.Value()})
	}
	data, err := bson.Marshal(copied)
	if err != nil {
		return nil, errors.Wrap(err, "encode document")
	}
	return data, nil
}

// documentStringer prints a document as relaxed extended JSON.
type documentStringer bson.D

func (d documentStringer) String() string {
	if d == nil {
		return "{}"
	}
	data, err := bson.MarshalExtJSON(bson.D(d), false, false)
	if err != nil {
		return fmt.Sprint(bson.D(d))
	}
	return string(data)
}
