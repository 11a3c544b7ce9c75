// Package core provides the fundamental building blocks of the docorm ODM.
// This file converts condition trees into native filter documents and
// normalises values into their native representation.
package core

import (
	"reflect"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// BuildFilter converts a condition tree into a native filter document.
//
// AND children are flattened into a single document when their fields do not
// collide; operator documents on the same field are merged
// ({"age": {"$gt": 1, "$lt": 9}}). Anything else falls back to "$and".
func BuildFilter(condition *Condition) (bson.D, error) {
	if condition == nil || condition.Operator == nil {
		return bson.D{}, nil
	}
	if len(condition.Children) > 0 || *condition.Operator == OpAnd || *condition.Operator == OpOr {
		childFilterList := make([]bson.D, 0, len(condition.Children))
		for _, child := range condition.Children {
			childFilter, err := BuildFilter(child)
			if err != nil {
				return nil, err
			}
			childFilterList = append(childFilterList, childFilter)
		}
		switch *condition.Operator {
		case OpAnd:
			return mergeAnd(childFilterList), nil
		case OpOr:
			return bson.D{{Key: "$or", Value: toArray(childFilterList)}}, nil
		case OpNot:
			return bson.D{{Key: "$nor", Value: toArray(childFilterList)}}, nil
		default:
			return nil, errors.Errorf("operator %s does not take child conditions", *condition.Operator)
		}
	}

	fieldName := condition.FieldName
	switch *condition.Operator {
	case OpNil:
		return bson.D{{Key: fieldName, Value: bson.D{{Key: "$eq", Value: nil}}}}, nil
	case OpNotNil:
		return bson.D{{Key: fieldName, Value: bson.D{{Key: "$exists", Value: true}}}}, nil
	case OpEq:
		value, err := NormalizeValue(condition.Value)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: fieldName, Value: value}}, nil
	case OpNe, OpGt, OpGte, OpLt, OpLte:
		value, err := NormalizeValue(condition.Value)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: fieldName, Value: bson.D{{Key: nativeOperator[*condition.Operator], Value: value}}}}, nil
	case OpLike:
		pattern, ok := condition.Value.(string)
		if !ok {
			return nil, errors.Wrapf(ErrUnsupportedValue, "like on %q needs a string pattern, got %T", fieldName, condition.Value)
		}
		return bson.D{{Key: fieldName, Value: bson.D{{Key: "$regex", Value: pattern}}}}, nil
	case OpIn:
		list, err := normalizeList(condition.Value)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: fieldName, Value: bson.D{{Key: "$in", Value: list}}}}, nil
	default:
		return nil, errors.Errorf("unsupported operator %s", *condition.Operator)
	}
}

func toArray(list []bson.D) bson.A {
	array := make(bson.A, 0, len(list))
	for _, item := range list {
		array = append(array, item)
	}
	return array
}

// mergeAnd flattens AND children into one document, or returns {"$and": [...]}
// when two children cannot share a document.
func mergeAnd(list []bson.D) bson.D {
	merged := bson.D{}
	index := map[string]int{}
	for _, doc := range list {
		for _, elem := range doc {
			position, seen := index[elem.Key]
			if !seen {
				index[elem.Key] = len(merged)
				merged = append(merged, elem)
				continue
			}
			combined, ok := mergeOperatorDocs(merged[position].Value, elem.Value)
			if !ok {
				return bson.D{{Key: "$and", Value: toArray(list)}}
			}
			merged[position].Value = combined
		}
	}
	return merged
}

func mergeOperatorDocs(left, right any) (bson.D, bool) {
	leftDoc, ok := left.(bson.D)
	if !ok || !isOperatorDoc(leftDoc) {
		return nil, false
	}
	rightDoc, ok := right.(bson.D)
	if !ok || !isOperatorDoc(rightDoc) {
		return nil, false
	}
	combined := append(bson.D{}, leftDoc...)
	for _, elem := range rightDoc {
		for _, existing := range leftDoc {
			if existing.Key == elem.Key {
				return nil, false
			}
		}
		combined = append(combined, elem)
	}
	return combined, true
}

func isOperatorDoc(doc bson.D) bool {
	if len(doc) == 0 {
		return false
	}
	for _, elem := range doc {
		if !strings.HasPrefix(elem.Key, "$") {
			return false
		}
	}
	return true
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	monthType    = reflect.TypeOf(time.Month(0))
	weekdayType  = reflect.TypeOf(time.Weekday(0))
	locationType = reflect.TypeOf(time.Location{})
)

// NormalizeValue converts a query value into its canonical native form.
//
// Date/time values become UTC instants at millisecond precision, the
// resolution of the native date type. Date/time types without an instant
// representation (time.Duration, time.Month, time.Weekday, time.Location) are
// rejected with ErrUnsupportedValue. Slices are normalised element-wise.
func NormalizeValue(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Truncate(time.Millisecond), nil
	case *time.Time:
		if v == nil {
			return nil, nil
		}
		return v.UTC().Truncate(time.Millisecond), nil
	case []byte, bson.D, bson.M, bson.Raw:
		return value, nil
	}

	rv := reflect.ValueOf(value)
	typ := rv.Type()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	switch typ {
	case durationType, monthType, weekdayType, locationType:
		return nil, errors.Wrapf(ErrUnsupportedValue, "%s is not an instant", typ)
	case timeType:
		if rv.IsNil() {
			return nil, nil
		}
		return NormalizeValue(rv.Elem().Interface())
	}
	if rv.Kind() == reflect.Slice {
		return normalizeList(value)
	}
	return value, nil
}

// normalizeList turns any slice (or a single value) into a normalised bson.A.
func normalizeList(value any) (bson.A, error) {
	rv := reflect.ValueOf(value)
	if value == nil || rv.Kind() != reflect.Slice {
		single, err := NormalizeValue(value)
		if err != nil {
			return nil, err
		}
		return bson.A{single}, nil
	}
	if _, isBytes := value.([]byte); isBytes {
		return bson.A{value}, nil
	}
	list := make(bson.A, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		item, err := NormalizeValue(rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	return list, nil
}
