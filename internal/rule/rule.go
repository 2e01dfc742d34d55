// Package rule compiles LogRules bound to SourceTemplates via Rulesets
// into a RuleMatcher that evaluates a log entry's content against them.
package rule

import (
	"github.com/bascanada/logium/internal/state"
)

// MatchMode selects whether a rule's match patterns must all match (All)
// or at least one must match (Any).
type MatchMode int

const (
	Any MatchMode = iota
	All
)

// ExtractionKind selects how an ExtractionRule derives its value.
type ExtractionKind int

const (
	Parsed ExtractionKind = iota
	Static
	Clear
)

// ExtractionRule is one state mutation a LogRule produces when it matches.
type ExtractionRule struct {
	StateKey  string
	Kind      ExtractionKind
	Pattern   string        // Parsed
	Value     state.Value   // Static
	WriteMode state.WriteMode
}

// LogRule is a named set of match patterns plus the extraction rules to
// run when the match-mode is satisfied.
type LogRule struct {
	ID          string
	Name        string
	MatchMode   MatchMode
	MatchRules  []string // regex patterns
	Extractions []ExtractionRule
}

// Ruleset binds a set of LogRule ids to a SourceTemplate; every Source
// using that template evaluates these rules against its entries.
type Ruleset struct {
	ID         string
	TemplateID string
	RuleIDs    []string
}

// Match is the per-entry, per-rule result RuleMatcher produces.
type Match struct {
	RuleID         string
	ExtractedState map[string]state.Value
	Mutations      []state.Mutation
}
