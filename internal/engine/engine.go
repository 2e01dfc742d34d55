// Package engine composes LineIterator, MergedStream, RuleMatcher,
// StateStore and PatternEvaluator into one analysis run.
package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bascanada/logium/internal/config"
	"github.com/bascanada/logium/internal/events"
	"github.com/bascanada/logium/internal/iterator"
	"github.com/bascanada/logium/internal/merge"
	"github.com/bascanada/logium/internal/pattern"
	"github.com/bascanada/logium/internal/rule"
	"github.com/bascanada/logium/internal/state"
)

// maxDiagnosticsPerSource bounds how many per-entry ParseError diagnostics
// are surfaced as error events for a single source, to avoid flooding the
// sink on a pathologically malformed file.
const maxDiagnosticsPerSource = 5

// progressInterval is the wall-clock cadence for progress events.
const progressInterval = 100 * time.Millisecond

// RunOptions configures one analysis run.
type RunOptions struct {
	// TimeRangeStart/TimeRangeEnd bound the inclusive window; nil means
	// unbounded on that side. Entries outside the window are still pulled
	// from the merge (to preserve ordering) but skipped before matching.
	TimeRangeStart *int64
	TimeRangeEnd   *int64
}

// Completion summarizes a finished run.
type Completion struct {
	LinesProcessed  int64
	RuleMatches     int64
	PatternMatches  int64
	StateChanges    int64
	ParseErrorCount int64
}

// RunAnalysis drives one analysis run to completion or cancellation. On
// cancellation the run ends without a complete event, per the ordering
// guarantees. Compiled rules and the snapshot are read-only and shared;
// the StateStore and PatternEvaluator created here are exclusive to this
// run, so concurrent calls for independent runs are safe.
func RunAnalysis(ctx context.Context, snapshot *config.Snapshot, opts RunOptions, sink events.Sink) (Completion, error) {
	matcher, err := rule.NewMatcher(snapshot.Rulesets, snapshot.Rules)
	if err != nil {
		sink.Emit(events.Error(fmt.Sprintf("config error: %v", err)))
		return Completion{}, fmt.Errorf("compiling rule matcher: %w", err)
	}

	sourceIterators, meta, openDiags := openSources(snapshot)
	defer closeAll(sourceIterators)
	for _, d := range openDiags {
		sink.Emit(events.Error(fmt.Sprintf("source %s: %v", d.SourceID, d.Err)))
	}

	merged := merge.New(sourceIterators)
	store := state.NewStore()
	evaluator := pattern.NewEvaluator(snapshot.Patterns)

	var completion Completion
	diagCounts := make(map[string]int64)
	lastProgress := time.Time{}

	for {
		entry, diags, more := merged.Next(ctx)
		reportDiagnostics(sink, diags, diagCounts, &completion.ParseErrorCount)

		if !more {
			if ctx.Err() != nil {
				return completion, nil
			}
			break
		}

		completion.LinesProcessed++

		if lastProgress.IsZero() || time.Since(lastProgress) >= progressInterval {
			sink.Emit(events.Progress(completion.LinesProcessed))
			lastProgress = time.Now()
		}

		if !inRange(entry.TimestampMs, opts) {
			continue
		}

		m, ok := meta[entry.SourceID]
		if !ok {
			continue
		}

		for _, rm := range matcher.Evaluate(m.TemplateID, entry.Content) {
			completion.RuleMatches++
			sink.Emit(events.RuleMatch(rm.RuleID, entry, rm.ExtractedState))

			changes := store.Apply(entry.SourceID, m.Name, rm.RuleID, entry.TimestampMs, rm.Mutations)
			for _, c := range changes {
				completion.StateChanges++
				sink.Emit(events.StateChange(c))
			}

			for _, pm := range evaluator.Step(store, entry.TimestampMs) {
				completion.PatternMatches++
				sink.Emit(events.PatternMatch(pm.PatternID, pm.TimestampMs, pm.StateSnapshot))
			}
		}
	}

	sink.Emit(events.Complete(completion.LinesProcessed, completion.RuleMatches, completion.PatternMatches, completion.StateChanges))
	return completion, nil
}

// reportDiagnostics classifies each per-entry diagnostic: an I/O failure is
// a SourceError and always surfaced; anything else is a ParseError, counted
// and only surfaced for the first maxDiagnosticsPerSource occurrences per
// source.
func reportDiagnostics(sink events.Sink, diags []merge.Diagnostic, diagCounts map[string]int64, parseErrorCount *int64) {
	for _, d := range diags {
		pe, ok := d.Err.(*iterator.ParseError)
		if ok && pe.Kind == iterator.ErrIO {
			sink.Emit(events.Error(fmt.Sprintf("source %s: i/o error: %v", d.SourceID, pe.Err)))
			continue
		}

		*parseErrorCount++
		diagCounts[d.SourceID]++
		if diagCounts[d.SourceID] <= maxDiagnosticsPerSource {
			sink.Emit(events.Error(fmt.Sprintf("source %s: parse error: %v", d.SourceID, d.Err)))
		}
	}
}

func inRange(ts int64, opts RunOptions) bool {
	if opts.TimeRangeStart != nil && ts < *opts.TimeRangeStart {
		return false
	}
	if opts.TimeRangeEnd != nil && ts > *opts.TimeRangeEnd {
		return false
	}
	return true
}

type sourceMetadata struct {
	Name       string
	TemplateID string
}

// openSources opens every configured source's file. A source that fails to
// open is reported as a diagnostic and excluded from the run rather than
// aborting it, matching the SourceError recoverable-mid-run policy.
func openSources(snapshot *config.Snapshot) ([]merge.SourceIterator, map[string]sourceMetadata, []merge.Diagnostic) {
	var iters []merge.SourceIterator
	var diags []merge.Diagnostic
	meta := make(map[string]sourceMetadata, len(snapshot.Sources))

	for _, src := range snapshot.Sources {
		tpl, ok := snapshot.Templates[src.TemplateID]
		if !ok {
			diags = append(diags, merge.Diagnostic{SourceID: src.ID, Err: fmt.Errorf("unknown template %s", src.TemplateID)})
			continue
		}

		f, err := os.Open(src.FilePath)
		if err != nil {
			diags = append(diags, merge.Diagnostic{SourceID: src.ID, Err: err})
			continue
		}

		it := iterator.New(src.ID, tpl, tpl.TimestampSpec, f, f, 0)
		iters = append(iters, merge.SourceIterator{SourceID: src.ID, Iter: it})
		meta[src.ID] = sourceMetadata{Name: src.Name, TemplateID: src.TemplateID}
	}

	return iters, meta, diags
}

func closeAll(sources []merge.SourceIterator) {
	for _, s := range sources {
		_ = s.Iter.Close()
	}
}
