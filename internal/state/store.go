package state

// WriteMode selects how a Set mutation combines with an existing value.
type WriteMode int

const (
	Replace WriteMode = iota
	Accumulate
)

// MutationKind distinguishes a Set from a Clear mutation.
type MutationKind int

const (
	MutationSet MutationKind = iota
	MutationClear
)

// Mutation is one write produced by a rule's extraction rules, destined for
// a single source's state map.
type Mutation struct {
	Kind      MutationKind
	Key       string
	Value     Value
	WriteMode WriteMode
}

// Change is the event emitted for each key actually affected by an apply
// call. OldValue/NewValue are nil when the key was absent/removed.
type Change struct {
	TimestampMs int64
	SourceID    string
	SourceName  string
	StateKey    string
	OldValue    *Value
	NewValue    *Value
	RuleID      string
}

// Entry is one (value, set-at) pair as seen through a read-only snapshot.
type Entry struct {
	Value Value
	SetAt int64
}

type sourceState struct {
	name   string
	values map[string]Entry
	order  []string // insertion order, for stable snapshot/event ordering
}

func newSourceState(name string) *sourceState {
	return &sourceState{name: name, values: make(map[string]Entry)}
}

// Store owns per-source key->value maps for the duration of one analysis
// run. It is exclusively owned by the driver; PatternEvaluator only reads
// it through snapshots.
type Store struct {
	sources map[string]*sourceState // keyed by source id
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{sources: make(map[string]*sourceState)}
}

func (s *Store) sourceFor(sourceID, sourceName string) *sourceState {
	st, ok := s.sources[sourceID]
	if !ok {
		st = newSourceState(sourceName)
		s.sources[sourceID] = st
	}
	return st
}

// Apply applies every mutation from one rule match atomically: all
// mutations are written to the map first, and the resulting change events
// are returned together, in the mutations' insertion order.
func (s *Store) Apply(sourceID, sourceName, ruleID string, timestampMs int64, mutations []Mutation) []Change {
	st := s.sourceFor(sourceID, sourceName)
	changes := make([]Change, 0, len(mutations))

	for _, m := range mutations {
		switch m.Kind {
		case MutationClear:
			existing, ok := st.values[m.Key]
			if !ok {
				continue
			}
			delete(st.values, m.Key)
			st.removeFromOrder(m.Key)
			old := existing.Value
			changes = append(changes, Change{
				TimestampMs: timestampMs,
				SourceID:    sourceID,
				SourceName:  sourceName,
				StateKey:    m.Key,
				OldValue:    &old,
				NewValue:    nil,
				RuleID:      ruleID,
			})

		case MutationSet:
			existing, had := st.values[m.Key]
			newVal := m.Value

			if had && m.WriteMode == Accumulate {
				if combined, ok := existing.Value.AccumulateWith(m.Value); ok {
					newVal = combined
				}
				// type clash: newVal stays m.Value, i.e. Replace policy.
			}

			st.values[m.Key] = Entry{Value: newVal, SetAt: timestampMs}
			if !had {
				st.order = append(st.order, m.Key)
			}

			var oldPtr *Value
			if had {
				o := existing.Value
				oldPtr = &o
			}
			newCopy := newVal
			changes = append(changes, Change{
				TimestampMs: timestampMs,
				SourceID:    sourceID,
				SourceName:  sourceName,
				StateKey:    m.Key,
				OldValue:    oldPtr,
				NewValue:    &newCopy,
				RuleID:      ruleID,
			})
		}
	}

	return changes
}

func (st *sourceState) removeFromOrder(key string) {
	for i, k := range st.order {
		if k == key {
			st.order = append(st.order[:i], st.order[i+1:]...)
			return
		}
	}
}

// KeyedEntry pairs a state key with its value and set-at timestamp.
type KeyedEntry struct {
	Key   string
	Entry Entry
}

// Snapshot returns a deep, read-only copy of one source's state, in key
// insertion order.
func (s *Store) Snapshot(sourceID string) []KeyedEntry {
	st, ok := s.sources[sourceID]
	if !ok {
		return nil
	}
	out := make([]KeyedEntry, 0, len(st.order))
	for _, k := range st.order {
		out = append(out, KeyedEntry{Key: k, Entry: st.values[k]})
	}
	return out
}

// Get resolves source_name.state_key against the current state. The bool
// result is false when the source or key is absent.
func (s *Store) Get(sourceName, key string) (Value, bool) {
	for _, st := range s.sources {
		if st.name != sourceName {
			continue
		}
		e, ok := st.values[key]
		if !ok {
			return Value{}, false
		}
		return e.Value, true
	}
	return Value{}, false
}

// SnapshotAll returns a deep copy of every source's state keyed by source
// name, suitable for embedding in a PatternMatch event.
func (s *Store) SnapshotAll() map[string]map[string]Entry {
	out := make(map[string]map[string]Entry, len(s.sources))
	for _, st := range s.sources {
		m := make(map[string]Entry, len(st.values))
		for k, v := range st.values {
			m[k] = v
		}
		out[st.name] = m
	}
	return out
}
