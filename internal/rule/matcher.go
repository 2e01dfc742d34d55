package rule

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/bascanada/logium/internal/ty"
	"github.com/bascanada/logium/internal/state"
)

type compiledExtraction struct {
	def   ExtractionRule
	regex *regexp.Regexp // set for Parsed
}

type compiledRule struct {
	rule         LogRule
	matchRegexes []*regexp.Regexp
	extractions  []compiledExtraction
}

// Matcher holds, per SourceTemplate id, the rules a Ruleset bound to it —
// each compiled once at snapshot load and shared read-only across the
// run. A combined automaton would ordinarily mean a single multi-pattern
// regex; Go's regexp package has no multi-pattern "set" API (that exists
// only in RE2's C++ bindings), so each rule's match patterns are compiled
// individually and each one is run separately against the entry's content.
type Matcher struct {
	byTemplate map[string][]*compiledRule
}

// NewMatcher compiles every rule reachable from the given rulesets. A
// compile failure for any rule's regex is a ConfigError for the whole
// snapshot.
func NewMatcher(rulesets []Ruleset, rulesByID map[string]LogRule) (*Matcher, error) {
	m := &Matcher{byTemplate: make(map[string][]*compiledRule)}

	for _, rs := range rulesets {
		var compiled []*compiledRule
		for _, ruleID := range rs.RuleIDs {
			r, ok := rulesByID[ruleID]
			if !ok {
				return nil, fmt.Errorf("ruleset %s: unknown rule id %s", rs.ID, ruleID)
			}
			if len(r.MatchRules) == 0 {
				return nil, fmt.Errorf("rule %s: match_rules must be non-empty", r.ID)
			}

			cr := &compiledRule{rule: r}
			for _, pattern := range r.MatchRules {
				re, err := ty.CompileRegex(pattern)
				if err != nil {
					return nil, fmt.Errorf("rule %s: invalid match pattern %q: %w", r.ID, pattern, err)
				}
				cr.matchRegexes = append(cr.matchRegexes, re)
			}

			for _, ext := range r.Extractions {
				ce := compiledExtraction{def: ext}
				if ext.Kind == Parsed {
					re, err := ty.CompileRegex(ext.Pattern)
					if err != nil {
						return nil, fmt.Errorf("rule %s: invalid extraction pattern %q: %w", r.ID, ext.Pattern, err)
					}
					ce.regex = re
				}
				cr.extractions = append(cr.extractions, ce)
			}

			compiled = append(compiled, cr)
		}

		sort.Slice(compiled, func(i, j int) bool { return compiled[i].rule.ID < compiled[j].rule.ID })
		m.byTemplate[rs.TemplateID] = compiled
	}

	return m, nil
}

// Evaluate runs every rule bound to templateID against content, returning
// matches ordered stably by rule id.
func (m *Matcher) Evaluate(templateID, content string) []Match {
	rules := m.byTemplate[templateID]
	if len(rules) == 0 {
		return nil
	}

	var matches []Match
	for _, cr := range rules {
		if !cr.isSatisfied(content) {
			continue
		}
		matches = append(matches, cr.extract(content))
	}
	return matches
}

func (cr *compiledRule) isSatisfied(content string) bool {
	switch cr.rule.MatchMode {
	case Any:
		for _, re := range cr.matchRegexes {
			if re.MatchString(content) {
				return true
			}
		}
		return false
	case All:
		for _, re := range cr.matchRegexes {
			if !re.MatchString(content) {
				return false
			}
		}
		return true
	}
	return false
}

func (cr *compiledRule) extract(content string) Match {
	match := Match{
		RuleID:         cr.rule.ID,
		ExtractedState: make(map[string]state.Value),
	}

	for _, ce := range cr.extractions {
		switch ce.def.Kind {
		case Parsed:
			val, ok := extractParsed(ce, content)
			if !ok {
				continue
			}
			match.ExtractedState[ce.def.StateKey] = val
			match.Mutations = append(match.Mutations, state.Mutation{
				Kind: state.MutationSet, Key: ce.def.StateKey, Value: val, WriteMode: ce.def.WriteMode,
			})

		case Static:
			match.ExtractedState[ce.def.StateKey] = ce.def.Value
			match.Mutations = append(match.Mutations, state.Mutation{
				Kind: state.MutationSet, Key: ce.def.StateKey, Value: ce.def.Value, WriteMode: ce.def.WriteMode,
			})

		case Clear:
			match.Mutations = append(match.Mutations, state.Mutation{
				Kind: state.MutationClear, Key: ce.def.StateKey,
			})
		}
	}

	return match
}

// extractParsed runs the extraction regex and auto-types the captured
// substring: a named group matching state_key takes priority, else group 1.
func extractParsed(ce compiledExtraction, content string) (state.Value, bool) {
	m := ce.regex.FindStringSubmatch(content)
	if m == nil {
		return state.Value{}, false
	}

	names := ce.regex.SubexpNames()
	for i, name := range names {
		if name == ce.def.StateKey && i < len(m) {
			return state.AutoType(m[i]), true
		}
	}

	if len(m) > 1 {
		return state.AutoType(m[1]), true
	}
	return state.Value{}, false
}
