// Package pattern tracks ordered predicate progress per Pattern across
// global per-source state and emits PatternMatch events when every
// predicate holds, in activation order.
package pattern

import (
	"github.com/bascanada/logium/internal/pattern/operator"
	"github.com/bascanada/logium/internal/state"
)

// OperandKind selects whether a predicate compares against a fixed value
// or another live state key.
type OperandKind int

const (
	OperandLiteral OperandKind = iota
	OperandStateRef
)

// Operand is either a Literal(StateValue) or a StateRef(source, key).
type Operand struct {
	Kind           OperandKind
	Literal        state.Value
	RefSourceName  string
	RefStateKey    string
}

// Predicate compares one source's state key against an operand.
type Predicate struct {
	SourceName string
	StateKey   string
	Operator   operator.Operator
	Operand    Operand
}

// Pattern is an ordered, non-empty list of predicates that must all hold,
// in activation order, to fire a match.
type Pattern struct {
	ID         string
	Name       string
	Predicates []Predicate
}

// Match is emitted when every predicate of a Pattern holds in order.
type Match struct {
	PatternID     string
	TimestampMs   int64
	StateSnapshot map[string]map[string]state.Entry
}
