// Package operator defines the comparison operators a PatternPredicate
// can use against resolved state.
package operator

type Operator string

const (
	Eq       Operator = "eq"
	Neq      Operator = "neq"
	Gt       Operator = "gt"
	Gte      Operator = "gte"
	Lt       Operator = "lt"
	Lte      Operator = "lte"
	Contains Operator = "contains"
	Exists   Operator = "exists"
)
