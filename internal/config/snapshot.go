// Package config loads and validates the immutable snapshot an analysis
// run is executed against: timestamp specs, source templates, rules,
// rulesets, patterns and sources.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bascanada/logium/internal/pattern"
	"github.com/bascanada/logium/internal/pattern/operator"
	"github.com/bascanada/logium/internal/rule"
	"github.com/bascanada/logium/internal/source"
	"github.com/bascanada/logium/internal/state"
	"github.com/bascanada/logium/internal/ty"
)

// Sentinel errors returned by Load so callers can classify failures with
// errors.Is; all of them are ConfigError per the fatal-before-run taxonomy.
var (
	ErrConfigParse        = errors.New("invalid config content")
	ErrNoSnapshot         = errors.New("no config files produced a snapshot")
	ErrUnknownTemplateRef = errors.New("reference to unknown template id")
	ErrUnknownTimestampRef = errors.New("reference to unknown timestamp spec id")
	ErrUnknownRuleRef     = errors.New("reference to unknown rule id")
	ErrDuplicateID        = errors.New("duplicate id")
	ErrEmptyPattern       = errors.New("pattern has no predicates")
	ErrInvalidRegex       = errors.New("invalid regular expression")
)

// Snapshot is the fully compiled, immutable configuration one analysis run
// executes against.
type Snapshot struct {
	TimestampSpecs map[string]*source.TimestampSpec
	Templates      map[string]*source.SourceTemplate
	Rules          map[string]rule.LogRule
	Rulesets       []rule.Ruleset
	Patterns       []pattern.Pattern
	Sources        []source.Source
}

type rawValue struct {
	String  *string  `yaml:"string,omitempty" json:"string,omitempty"`
	Integer *int64   `yaml:"integer,omitempty" json:"integer,omitempty"`
	Float   *float64 `yaml:"float,omitempty" json:"float,omitempty"`
	Boolean *bool    `yaml:"boolean,omitempty" json:"boolean,omitempty"`
}

func (r rawValue) toValue() (state.Value, error) {
	switch {
	case r.String != nil:
		return state.String(*r.String), nil
	case r.Integer != nil:
		return state.Integer(*r.Integer), nil
	case r.Float != nil:
		return state.Float(*r.Float), nil
	case r.Boolean != nil:
		return state.Boolean(*r.Boolean), nil
	default:
		return state.Value{}, fmt.Errorf("value has no string/integer/float/boolean field set")
	}
}

type rawTimestampSpec struct {
	Format          string     `yaml:"format" json:"format"`
	ExtractionRegex ty.Opt[string] `yaml:"extraction_regex" json:"extraction_regex"`
	DefaultYear     ty.Opt[int]    `yaml:"default_year" json:"default_year"`
}

type rawTemplate struct {
	TimestampSpecID    string      `yaml:"timestamp_spec_id" json:"timestamp_spec_id"`
	LineDelimiter      string      `yaml:"line_delimiter" json:"line_delimiter"`
	ContentRegex       ty.Opt[string] `yaml:"content_regex" json:"content_regex"`
	ContinuationRegex  ty.Opt[string] `yaml:"continuation_regex" json:"continuation_regex"`
	JSONTimestampField ty.Opt[string] `yaml:"json_timestamp_field" json:"json_timestamp_field"`
}

type rawExtraction struct {
	Key       string   `yaml:"key" json:"key"`
	Kind      string   `yaml:"kind" json:"kind"`
	Pattern   string   `yaml:"pattern" json:"pattern"`
	Value     rawValue `yaml:"value" json:"value"`
	WriteMode string   `yaml:"write_mode" json:"write_mode"`
}

type rawRule struct {
	MatchMode       string          `yaml:"match_mode" json:"match_mode"`
	MatchRules      []string        `yaml:"match_rules" json:"match_rules"`
	ExtractionRules []rawExtraction `yaml:"extraction_rules" json:"extraction_rules"`
}

type rawRuleset struct {
	TemplateID string   `yaml:"template_id" json:"template_id"`
	RuleIDs    []string `yaml:"rule_ids" json:"rule_ids"`
}

type rawStateRef struct {
	Source string `yaml:"source" json:"source"`
	Key    string `yaml:"key" json:"key"`
}

type rawOperand struct {
	Literal  *rawValue    `yaml:"literal,omitempty" json:"literal,omitempty"`
	StateRef *rawStateRef `yaml:"state_ref,omitempty" json:"state_ref,omitempty"`
}

type rawPredicate struct {
	Source  string     `yaml:"source" json:"source"`
	Key     string     `yaml:"key" json:"key"`
	Op      string     `yaml:"op" json:"op"`
	Operand rawOperand `yaml:"operand" json:"operand"`
}

type rawPattern struct {
	Predicates []rawPredicate `yaml:"predicates" json:"predicates"`
}

type rawSource struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	TemplateID string `yaml:"template_id" json:"template_id"`
	FilePath   string `yaml:"file_path" json:"file_path"`
}

type fileDoc struct {
	TimestampSpecs map[string]rawTimestampSpec `yaml:"timestamp_specs" json:"timestamp_specs"`
	Templates      map[string]rawTemplate      `yaml:"templates" json:"templates"`
	Rules          map[string]rawRule          `yaml:"rules" json:"rules"`
	Rulesets       map[string]rawRuleset       `yaml:"rulesets" json:"rulesets"`
	Patterns       map[string]rawPattern       `yaml:"patterns" json:"patterns"`
	Sources        []rawSource                 `yaml:"sources" json:"sources"`
}

// Load reads one or more config files, merges them (last file wins on a
// colliding id, mirroring the teacher's multi-file merge), and compiles the
// result into a Snapshot. Every failure is a ConfigError: wrap with
// errors.Is against the sentinels in this package to classify it.
func Load(paths []string) (*Snapshot, error) {
	if len(paths) == 0 {
		return nil, ErrNoSnapshot
	}

	merged := fileDoc{
		TimestampSpecs: map[string]rawTimestampSpec{},
		Templates:      map[string]rawTemplate{},
		Rules:          map[string]rawRule{},
		Rulesets:       map[string]rawRuleset{},
		Patterns:       map[string]rawPattern{},
	}

	for _, p := range paths {
		doc, err := loadSingleFile(p)
		if err != nil {
			return nil, err
		}
		for k, v := range doc.TimestampSpecs {
			merged.TimestampSpecs[k] = v
		}
		for k, v := range doc.Templates {
			merged.Templates[k] = v
		}
		for k, v := range doc.Rules {
			merged.Rules[k] = v
		}
		for k, v := range doc.Rulesets {
			merged.Rulesets[k] = v
		}
		for k, v := range doc.Patterns {
			merged.Patterns[k] = v
		}
		merged.Sources = append(merged.Sources, doc.Sources...)
	}

	return compile(merged)
}

func loadSingleFile(path string) (*fileDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var doc fileDoc
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: parsing JSON %s: %v", ErrConfigParse, path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: parsing YAML %s: %v", ErrConfigParse, path, err)
		}
	default:
		if err := json.Unmarshal(data, &doc); err == nil {
			break
		}
		if err := yaml.Unmarshal(data, &doc); err == nil {
			break
		}
		return nil, fmt.Errorf("%w: unsupported or invalid config format for file %s", ErrConfigParse, path)
	}
	return &doc, nil
}

func compile(doc fileDoc) (*Snapshot, error) {
	snap := &Snapshot{
		TimestampSpecs: map[string]*source.TimestampSpec{},
		Templates:      map[string]*source.SourceTemplate{},
		Rules:          map[string]rule.LogRule{},
	}

	for id, raw := range doc.TimestampSpecs {
		ts := &source.TimestampSpec{
			ID:              id,
			Format:          raw.Format,
			ExtractionRegex: raw.ExtractionRegex,
			DefaultYear:     raw.DefaultYear,
		}
		if err := ts.Compile(); err != nil {
			return nil, fmt.Errorf("%w: timestamp spec %s: %v", ErrInvalidRegex, id, err)
		}
		snap.TimestampSpecs[id] = ts
	}

	for id, raw := range doc.Templates {
		ts, ok := snap.TimestampSpecs[raw.TimestampSpecID]
		if !ok {
			return nil, fmt.Errorf("%w: template %s references timestamp spec %s", ErrUnknownTimestampRef, id, raw.TimestampSpecID)
		}
		tpl := &source.SourceTemplate{
			ID:                 id,
			TimestampSpecID:    raw.TimestampSpecID,
			LineDelimiter:      raw.LineDelimiter,
			ContentRegex:       raw.ContentRegex,
			ContinuationRegex:  raw.ContinuationRegex,
			JSONTimestampField: raw.JSONTimestampField,
			TimestampSpec:      ts,
		}
		if err := tpl.Compile(); err != nil {
			return nil, fmt.Errorf("%w: template %s: %v", ErrInvalidRegex, id, err)
		}
		snap.Templates[id] = tpl
	}

	for id, raw := range doc.Rules {
		lr := rule.LogRule{ID: id, MatchMode: parseMatchMode(raw.MatchMode), MatchRules: raw.MatchRules}
		for _, re := range raw.ExtractionRules {
			er := rule.ExtractionRule{
				StateKey:  re.Key,
				Kind:      parseExtractionKind(re.Kind),
				Pattern:   re.Pattern,
				WriteMode: parseWriteMode(re.WriteMode),
			}
			if er.Kind == rule.Static {
				v, err := re.Value.toValue()
				if err != nil {
					return nil, fmt.Errorf("rule %s: static extraction for %s: %w", id, re.Key, err)
				}
				er.Value = v
			}
			lr.Extractions = append(lr.Extractions, er)
		}
		snap.Rules[id] = lr
	}

	for id, raw := range doc.Rulesets {
		if _, ok := snap.Templates[raw.TemplateID]; !ok {
			return nil, fmt.Errorf("%w: ruleset %s references template %s", ErrUnknownTemplateRef, id, raw.TemplateID)
		}
		for _, rid := range raw.RuleIDs {
			if _, ok := snap.Rules[rid]; !ok {
				return nil, fmt.Errorf("%w: ruleset %s references rule %s", ErrUnknownRuleRef, id, rid)
			}
		}
		snap.Rulesets = append(snap.Rulesets, rule.Ruleset{ID: id, TemplateID: raw.TemplateID, RuleIDs: raw.RuleIDs})
	}

	for id, raw := range doc.Patterns {
		if len(raw.Predicates) == 0 {
			return nil, fmt.Errorf("%w: pattern %s", ErrEmptyPattern, id)
		}
		p := pattern.Pattern{ID: id}
		for _, rp := range raw.Predicates {
			pred := pattern.Predicate{SourceName: rp.Source, StateKey: rp.Key, Operator: operator.Operator(rp.Op)}
			operand, err := toOperand(rp.Operand)
			if err != nil {
				return nil, fmt.Errorf("pattern %s: predicate %s.%s: %w", id, rp.Source, rp.Key, err)
			}
			pred.Operand = operand
			p.Predicates = append(p.Predicates, pred)
		}
		snap.Patterns = append(snap.Patterns, p)
	}

	seenSourceID := map[string]bool{}
	for _, raw := range doc.Sources {
		if seenSourceID[raw.ID] {
			return nil, fmt.Errorf("%w: source %s", ErrDuplicateID, raw.ID)
		}
		seenSourceID[raw.ID] = true

		if _, ok := snap.Templates[raw.TemplateID]; !ok {
			return nil, fmt.Errorf("%w: source %s references template %s", ErrUnknownTemplateRef, raw.ID, raw.TemplateID)
		}
		snap.Sources = append(snap.Sources, source.Source{ID: raw.ID, Name: raw.Name, TemplateID: raw.TemplateID, FilePath: ResolveEnv(raw.FilePath)})
	}

	return snap, nil
}

func toOperand(raw rawOperand) (pattern.Operand, error) {
	switch {
	case raw.Literal != nil:
		v, err := raw.Literal.toValue()
		if err != nil {
			return pattern.Operand{}, err
		}
		return pattern.Operand{Kind: pattern.OperandLiteral, Literal: v}, nil
	case raw.StateRef != nil:
		return pattern.Operand{Kind: pattern.OperandStateRef, RefSourceName: raw.StateRef.Source, RefStateKey: raw.StateRef.Key}, nil
	default:
		return pattern.Operand{}, fmt.Errorf("operand has neither literal nor state_ref set")
	}
}

func parseMatchMode(s string) rule.MatchMode {
	if strings.EqualFold(s, "all") {
		return rule.All
	}
	return rule.Any
}

func parseExtractionKind(s string) rule.ExtractionKind {
	switch strings.ToLower(s) {
	case "static":
		return rule.Static
	case "clear":
		return rule.Clear
	default:
		return rule.Parsed
	}
}

func parseWriteMode(s string) state.WriteMode {
	if strings.EqualFold(s, "accumulate") {
		return state.Accumulate
	}
	return state.Replace
}
