package memory

import (
	"bytes"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrUnsupportedOperator reports a filter operator the memory driver does
// not evaluate.
var ErrUnsupportedOperator = errors.New("operator not supported by the memory driver")

// missing marks a path that is absent from a document.
type missing struct{}

// lookup walks a dotted path through nested documents.
func lookup(document bson.D, path string) any {
	var current any = document
	for _, part := range strings.Split(path, ".") {
		doc, ok := current.(bson.D)
		if !ok {
			return missing{}
		}
		found := false
		for _, elem := range doc {
			if elem.Key == part {
				current, found = elem.Value, true
				break
			}
		}
		if !found {
			return missing{}
		}
	}
	return current
}

// normalize converts a filter value into the representation produced by
// decoding a stored document, so both sides compare alike.
func normalize(value any) (any, error) {
	data, err := bson.Marshal(bson.D{{Key: "v", Value: value}})
	if err != nil {
		return nil, errors.Wrap(err, "encode filter value")
	}
	var doc bson.D
	if err := bson.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode filter value")
	}
	return doc[0].Value, nil
}

// matches reports whether document satisfies filter.
func matches(document bson.D, filter bson.D) (bool, error) {
	for _, elem := range filter {
		ok, err := matchElement(document, elem)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchElement(document bson.D, elem bson.E) (bool, error) {
	switch elem.Key {
	case "$and", "$or", "$nor":
		return matchLogical(document, elem.Key, elem.Value)
	}
	if strings.HasPrefix(elem.Key, "$") {
		return false, errors.Wrapf(ErrUnsupportedOperator, "%s", elem.Key)
	}
	actual := lookup(document, elem.Key)
	if operators, ok := operatorDoc(elem.Value); ok {
		options := ""
		for _, op := range operators {
			if op.Key == "$options" {
				options, _ = op.Value.(string)
			}
		}
		for _, op := range operators {
			if op.Key == "$options" {
				continue
			}
			ok, err := matchOperator(actual, op.Key, op.Value, options)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
	if regex, ok := elem.Value.(primitive.Regex); ok {
		return matchRegex(actual, regex.Pattern, regex.Options)
	}
	return matchOperator(actual, "$eq", elem.Value, "")
}

func matchLogical(document bson.D, key string, value any) (bool, error) {
	list, ok := value.(bson.A)
	if !ok || len(list) == 0 {
		return false, errors.Errorf("%s needs a non-empty array", key)
	}
	for i, item := range list {
		doc, ok := item.(bson.D)
		if !ok {
			return false, errors.Errorf("%s item %d is not a document", key, i)
		}
		ok, err := matches(document, doc)
		if err != nil {
			return false, err
		}
		switch {
		case key == "$and" && !ok:
			return false, nil
		case key == "$or" && ok:
			return true, nil
		case key == "$nor" && ok:
			return false, nil
		}
	}
	return key != "$or", nil
}

func matchOperator(actual any, op string, value any, options string) (bool, error) {
	switch op {
	case "$eq":
		return equalMatch(actual, value)
	case "$ne":
		ok, err := equalMatch(actual, value)
		return !ok, err
	case "$gt", "$gte", "$lt", "$lte":
		expected, err := normalize(value)
		if err != nil {
			return false, err
		}
		return anyElement(actual, func(candidate any) bool {
			order, comparable := compareValues(candidate, expected)
			if !comparable {
				return false
			}
			switch op {
			case "$gt":
				return order > 0
			case "$gte":
				return order >= 0
			case "$lt":
				return order < 0
			}
			return order <= 0
		}), nil
	case "$in":
		list, ok := value.(bson.A)
		if !ok {
			return false, errors.Errorf("$in needs an array, got %T", value)
		}
		for _, item := range list {
			ok, err := equalMatch(actual, item)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case "$exists":
		exists, _ := value.(bool)
		_, absent := actual.(missing)
		return exists != absent, nil
	case "$regex":
		switch pattern := value.(type) {
		case string:
			return matchRegex(actual, pattern, options)
		case primitive.Regex:
			if options == "" {
				options = pattern.Options
			}
			return matchRegex(actual, pattern.Pattern, options)
		}
		return false, errors.Errorf("$regex needs a string pattern, got %T", value)
	}
	return false, errors.Wrapf(ErrUnsupportedOperator, "%s", op)
}

// equalMatch compares with equality semantics: a nil value matches null and
// absent fields, and an array field matches when one of its elements does.
func equalMatch(actual any, value any) (bool, error) {
	if value == nil {
		_, absent := actual.(missing)
		return absent || actual == nil, nil
	}
	expected, err := normalize(value)
	if err != nil {
		return false, err
	}
	if equalValues(actual, expected) {
		return true, nil
	}
	return anyElement(actual, func(candidate any) bool { return equalValues(candidate, expected) }), nil
}

// anyElement applies check to actual, or to each element when actual is an array.
func anyElement(actual any, check func(any) bool) bool {
	if list, ok := actual.(bson.A); ok {
		for _, item := range list {
			if check(item) {
				return true
			}
		}
		return false
	}
	return check(actual)
}

func equalValues(left, right any) bool {
	if order, ok := compareValues(left, right); ok {
		return order == 0
	}
	return reflect.DeepEqual(left, right)
}

var regexCache sync.Map // pattern + options -> *regexp.Regexp

func matchRegex(actual any, pattern, options string) (bool, error) {
	flags := ""
	for _, option := range options {
		switch option {
		case 'i', 'm', 's':
			flags += string(option)
		}
	}
	source := pattern
	if flags != "" {
		source = "(?" + flags + ")" + pattern
	}
	compiled, ok := regexCache.Load(source)
	if !ok {
		re, err := regexp.Compile(source)
		if err != nil {
			return false, errors.Wrapf(err, "compile pattern %q", pattern)
		}
		compiled, _ = regexCache.LoadOrStore(source, re)
	}
	re := compiled.(*regexp.Regexp)
	return anyElement(actual, func(candidate any) bool {
		text, ok := candidate.(string)
		return ok && re.MatchString(text)
	}), nil
}

// typeRank orders values of different kinds the way the document store does.
func typeRank(value any) int {
	switch value.(type) {
	case missing, nil, primitive.Null:
		return 0
	case int32, int64, float64, int, primitive.Decimal128:
		return 1
	case string, primitive.Symbol:
		return 2
	case bson.D, bson.M:
		return 3
	case bson.A:
		return 4
	case primitive.Binary:
		return 5
	case primitive.ObjectID:
		return 6
	case bool:
		return 7
	case primitive.DateTime:
		return 8
	case primitive.Timestamp:
		return 9
	case primitive.Regex:
		return 10
	}
	return 11
}

// compareValues orders two scalar values of the same kind; ok is false when
// the values do not share a kind or the kind has no order.
func compareValues(left, right any) (order int, ok bool) {
	if typeRank(left) != typeRank(right) {
		return 0, false
	}
	switch l := left.(type) {
	case missing, nil, primitive.Null:
		return 0, true
	case string:
		return strings.Compare(l, right.(string)), true
	case bool:
		r := right.(bool)
		switch {
		case l == r:
			return 0, true
		case !l:
			return -1, true
		}
		return 1, true
	case primitive.DateTime:
		return compareInt(int64(l), int64(right.(primitive.DateTime))), true
	case primitive.ObjectID:
		r := right.(primitive.ObjectID)
		return bytes.Compare(l[:], r[:]), true
	}
	if lf, lok := number(left); lok {
		if rf, rok := number(right); rok {
			li, lint := left.(int64)
			ri, rint := right.(int64)
			if lint && rint {
				return compareInt(li, ri), true
			}
			switch {
			case lf < rf:
				return -1, true
			case lf > rf:
				return 1, true
			}
			return 0, true
		}
	}
	return 0, false
}

func compareInt(left, right int64) int {
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	}
	return 0
}

func number(value any) (float64, bool) {
	switch v := value.(type) {
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// sortCompare orders documents for a sort key. Values of different kinds
// follow typeRank, so absent fields come first in ascending order.
func sortCompare(left, right any) int {
	if order, ok := compareValues(left, right); ok {
		return order
	}
	return compareInt(int64(typeRank(left)), int64(typeRank(right)))
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
