package pattern

import (
	"sort"

	"github.com/bascanada/logium/internal/pattern/operator"
	"github.com/bascanada/logium/internal/state"
)

// Evaluator tracks one progress index per Pattern and evaluates the
// "all-must-hold, ordered activation" state machine after each state
// mutation. It only reads the Store it is given; it never mutates it.
type Evaluator struct {
	patterns []Pattern // sorted by ID, for tie-break
	progress map[string]int
}

// NewEvaluator compiles the pattern list, sorted by id so matches within
// one mutation batch are emitted in pattern-id order.
func NewEvaluator(patterns []Pattern) *Evaluator {
	sorted := make([]Pattern, len(patterns))
	copy(sorted, patterns)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	progress := make(map[string]int, len(sorted))
	for _, p := range sorted {
		progress[p.ID] = 0
	}

	return &Evaluator{patterns: sorted, progress: progress}
}

// Step advances or resets every pattern's progress against the store's
// current state and returns the matches that fired, in pattern-id order.
func (e *Evaluator) Step(store *state.Store, timestampMs int64) []Match {
	var matches []Match
	for idx := range e.patterns {
		p := &e.patterns[idx]
		if m := e.stepPattern(p, store, timestampMs); m != nil {
			matches = append(matches, *m)
		}
	}
	return matches
}

func (e *Evaluator) stepPattern(p *Pattern, store *state.Store, timestampMs int64) *Match {
	preds := p.Predicates
	i := e.progress[p.ID]

	if i < len(preds) && satisfied(preds[i], store) {
		for {
			if prefixHolds(preds, i, store) {
				i++
				break
			}
			i = 0
			if !(i < len(preds) && satisfied(preds[0], store)) {
				break
			}
		}
	}

	e.progress[p.ID] = i

	if i == len(preds) {
		snapshot := store.SnapshotAll()
		e.progress[p.ID] = 0
		return &Match{PatternID: p.ID, TimestampMs: timestampMs, StateSnapshot: snapshot}
	}

	if i > 0 && !prefixHolds(preds, i-1, store) {
		e.progress[p.ID] = 0
	}

	return nil
}

// prefixHolds reports whether predicates[0..upTo] (inclusive) all hold.
func prefixHolds(preds []Predicate, upTo int, store *state.Store) bool {
	for j := 0; j <= upTo; j++ {
		if !satisfied(preds[j], store) {
			return false
		}
	}
	return true
}

func satisfied(p Predicate, store *state.Store) bool {
	left, ok := store.Get(p.SourceName, p.StateKey)
	if p.Operator == operator.Exists {
		return ok
	}
	if !ok {
		return false
	}

	var right state.Value
	switch p.Operand.Kind {
	case OperandLiteral:
		right = p.Operand.Literal
	case OperandStateRef:
		r, rok := store.Get(p.Operand.RefSourceName, p.Operand.RefStateKey)
		if !rok {
			return false
		}
		right = r
	}

	switch p.Operator {
	case operator.Eq:
		return left.Equal(right)
	case operator.Neq:
		return !left.Equal(right)
	case operator.Gt:
		less, ok := right.Less(left)
		return ok && less
	case operator.Gte:
		less, ok := left.Less(right)
		return ok && !less
	case operator.Lt:
		less, ok := left.Less(right)
		return ok && less
	case operator.Lte:
		less, ok := right.Less(left)
		return ok && !less
	case operator.Contains:
		contains, ok := left.Contains(right)
		return ok && contains
	}
	return false
}
