// Package events defines the wire event taxonomy emitted by an analysis
// run and the Sink interface that decouples the engine from delivery.
package events

import (
	"time"

	"github.com/bascanada/logium/internal/iterator"
	"github.com/bascanada/logium/internal/state"
)

// Type identifies one of the six wire event kinds.
type Type string

const (
	TypeRuleMatch    Type = "rule_match"
	TypeStateChange  Type = "state_change"
	TypePatternMatch Type = "pattern_match"
	TypeProgress     Type = "progress"
	TypeComplete     Type = "complete"
	TypeError        Type = "error"
)

// Event is the envelope delivered to a Sink; Data is marshaled as-is.
type Event struct {
	Type Type                   `json:"type"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// Sink receives events in the order the engine produces them. A Sink may
// back-pressure by blocking in Emit; the engine does not buffer beyond
// what an individual Sink implementation chooses to.
type Sink interface {
	Emit(Event) error
}

// FormatTimestamp renders milliseconds-since-epoch as the wire's
// ISO-8601-without-timezone, millisecond-precision format.
func FormatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000")
}

// RuleMatch builds the rule_match event for one matched rule against one
// log entry.
func RuleMatch(ruleID string, entry *iterator.Entry, extracted map[string]state.Value) Event {
	extractedData := make(map[string]interface{}, len(extracted))
	for k, v := range extracted {
		extractedData[k] = v
	}

	return Event{
		Type: TypeRuleMatch,
		Data: map[string]interface{}{
			"rule_id":   ruleID,
			"source_id": entry.SourceID,
			"log_line": map[string]interface{}{
				"timestamp": FormatTimestamp(entry.TimestampMs),
				"source_id": entry.SourceID,
				"raw":       entry.Raw,
				"content":   entry.Content,
			},
			"extracted_state": extractedData,
		},
	}
}

// StateChange builds the state_change event for one StateStore.Change.
func StateChange(c state.Change) Event {
	data := map[string]interface{}{
		"timestamp":   FormatTimestamp(c.TimestampMs),
		"source_id":   c.SourceID,
		"source_name": c.SourceName,
		"state_key":   c.StateKey,
		"rule_id":     c.RuleID,
	}
	if c.OldValue != nil {
		data["old_value"] = *c.OldValue
	}
	if c.NewValue != nil {
		data["new_value"] = *c.NewValue
	}
	return Event{Type: TypeStateChange, Data: data}
}

// PatternMatch builds the pattern_match event for one fired Pattern.
func PatternMatch(patternID string, timestampMs int64, snapshot map[string]map[string]state.Entry) Event {
	wire := make(map[string]interface{}, len(snapshot))
	for sourceName, keys := range snapshot {
		keyed := make(map[string]interface{}, len(keys))
		for key, entry := range keys {
			keyed[key] = map[string]interface{}{
				"value":  entry.Value,
				"set_at": FormatTimestamp(entry.SetAt),
			}
		}
		wire[sourceName] = keyed
	}

	return Event{
		Type: TypePatternMatch,
		Data: map[string]interface{}{
			"pattern_id":     patternID,
			"timestamp":      FormatTimestamp(timestampMs),
			"state_snapshot": wire,
		},
	}
}

// Progress builds the progress event emitted at ~100ms wall-clock
// intervals while a run is in flight.
func Progress(linesProcessed int64) Event {
	return Event{Type: TypeProgress, Data: map[string]interface{}{"lines_processed": linesProcessed}}
}

// Complete builds the terminal complete event summarizing a finished run.
func Complete(totalLines, totalRuleMatches, totalPatternMatches, totalStateChanges int64) Event {
	return Event{
		Type: TypeComplete,
		Data: map[string]interface{}{
			"total_lines":           totalLines,
			"total_rule_matches":    totalRuleMatches,
			"total_pattern_matches": totalPatternMatches,
			"total_state_changes":   totalStateChanges,
		},
	}
}

// Error builds an error event. A fatal ConfigError, a recoverable
// SourceError and the first per-source ParseErrors all use this shape,
// distinguished only by their message and when they occur in a run.
func Error(message string) Event {
	return Event{Type: TypeError, Data: map[string]interface{}{"message": message}}
}
