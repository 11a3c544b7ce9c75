// Package core provides the fundamental building blocks of the docorm ODM.
// This file defines the condition tree shared by the translator and the
// programmatic filter builder.
package core

// Condition represents a single clause in a query filter.
//
// A condition targets a persisted field name (FieldName) with a given operator
// and a comparison value. Conditions can also be nested using Children to
// compose AND, OR and NOT expressions.
//
// Example:
//
//	cond := (&Condition{FieldName: "age"}).Gt(18).
//		And((&Condition{FieldName: "status"}).Eq("active"))
//
// The above creates a condition equivalent to:
//
//	{"age": {"$gt": 18}, "status": "active"}
type Condition struct {
	FieldName string       // Persisted field name this condition applies to
	Operator  *Operator    // The comparison operator (Eq, Gt, Like, etc.)
	Value     any          // The comparison value
	Children  []*Condition // Nested conditions (for AND, OR, NOT expressions)
}

// And combines this condition with additional conditions using the logical AND operator.
func (c *Condition) And(conditions ...*Condition) *Condition {
	return &Condition{
		Operator: &OpAnd,
		Children: append([]*Condition{c}, conditions...),
	}
}

// Or combines this condition with additional conditions using the logical OR operator.
func (c *Condition) Or(conditions ...*Condition) *Condition {
	return &Condition{
		Operator: &OpOr,
		Children: append([]*Condition{c}, conditions...),
	}
}

// Not negates this condition.
func (c *Condition) Not() *Condition {
	return &Condition{
		Operator: &OpNot,
		Children: []*Condition{c},
	}
}

// Nil matches documents where the field is null or missing.
func (c *Condition) Nil() *Condition {
	c.Operator = &OpNil
	c.Value = nil
	return c
}

// NotNil matches documents where the field exists.
func (c *Condition) NotNil() *Condition {
	c.Operator = &OpNotNil
	c.Value = nil
	return c
}

// Eq sets this condition to check for equality (=).
func (c *Condition) Eq(v any) *Condition {
	c.Operator = &OpEq
	c.Value = v
	return c
}

// Ne sets this condition to check for inequality (!=).
func (c *Condition) Ne(v any) *Condition {
	c.Operator = &OpNe
	c.Value = v
	return c
}

// Gt sets this condition to check for "greater than" (>).
func (c *Condition) Gt(v any) *Condition {
	c.Operator = &OpGt
	c.Value = v
	return c
}

// Gte sets this condition to check for "greater than or equal" (>=).
func (c *Condition) Gte(v any) *Condition {
	c.Operator = &OpGte
	c.Value = v
	return c
}

// Lt sets this condition to check for "less than" (<).
func (c *Condition) Lt(v any) *Condition {
	c.Operator = &OpLt
	c.Value = v
	return c
}

// Lte sets this condition to check for "less than or equal" (<=).
func (c *Condition) Lte(v any) *Condition {
	c.Operator = &OpLte
	c.Value = v
	return c
}

// Like sets this condition to a regular expression match. The pattern uses
// regex semantics, not SQL wildcards: "Jo.*" rather than "Jo%".
func (c *Condition) Like(pattern string) *Condition {
	c.Operator = &OpLike
	c.Value = pattern
	return c
}

// In sets this condition to check whether the field value is contained in the provided list.
func (c *Condition) In(values ...any) *Condition {
	c.Operator = &OpIn
	c.Value = values
	return c
}

// foldConditionsAnd combines multiple conditions into a single condition
// using logical AND. Nil conditions are skipped; zero conditions yield nil.
func foldConditionsAnd(conds ...*Condition) *Condition {
	list := make([]*Condition, 0, len(conds))
	for _, cond := range conds {
		if cond != nil {
			list = append(list, cond)
		}
	}
	switch len(list) {
	case 0:
		return nil
	case 1:
		return list[0]
	default:
		return list[0].And(list[1:]...)
	}
}
