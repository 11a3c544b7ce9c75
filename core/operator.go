// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines the set of supported operators used in query conditions.
package core

// Operator represents a comparison or logical operator used in a query condition.
//
// Operators can be logical (AND, OR) or value-based (EQ, GT, IN, etc.).
type Operator string

const (
	// Logical operators
	opAnd Operator = "AND"
	opOr  Operator = "OR"
	opNot Operator = "NOT"

	// Value-based operators
	opNil    Operator = "NIL"     // field is null or missing
	opNotNil Operator = "NOT_NIL" // field exists
	opEq     Operator = "EQ"      // field = value
	opNe     Operator = "NE"      // field != value
	opGt     Operator = "GT"      // field > value
	opGte    Operator = "GTE"     // field >= value
	opLt     Operator = "LT"      // field < value
	opLte    Operator = "LTE"     // field <= value
	opLike   Operator = "LIKE"    // field matches a regular expression
	opIn     Operator = "IN"      // field IN (value list)
)

// Public operator aliases exposed to users of the ODM.
//
// Example:
//
//	cond := &core.Condition{FieldName: "age", Operator: &core.OpGt, Value: 18}
var (
	OpAnd    = opAnd
	OpOr     = opOr
	OpNot    = opNot
	OpNil    = opNil
	OpNotNil = opNotNil
	OpEq     = opEq
	OpNe     = opNe
	OpGt     = opGt
	OpGte    = opGte
	OpLt     = opLt
	OpLte    = opLte
	OpLike   = opLike
	OpIn     = opIn
)

// nativeOperator maps comparison operators to their native document operator.
var nativeOperator = map[Operator]string{
	opNe:  "$ne",
	opGt:  "$gt",
	opGte: "$gte",
	opLt:  "$lt",
	opLte: "$lte",
	opIn:  "$in",
}
