package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/bascanada/logium/internal/config"
	"github.com/bascanada/logium/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const snapshotTemplate = `
timestamp_specs:
  syslog:
    format: "2006-01-02 15:04:05"
    extraction_regex: '^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})'
templates:
  server_tpl:
    timestamp_spec_id: syslog
    line_delimiter: "\n"
  client_tpl:
    timestamp_spec_id: syslog
    line_delimiter: "\n"
rules:
  player_count:
    match_mode: all
    match_rules: ['Players: \d+']
    extraction_rules:
      - {key: player_count, kind: parsed, pattern: 'Players: (\d+)', write_mode: replace}
  client_status:
    match_mode: any
    match_rules: ['status=\w+']
    extraction_rules:
      - {key: status, kind: parsed, pattern: 'status=(\w+)', write_mode: replace}
  tag_rule:
    match_mode: any
    match_rules: ['TAG']
    extraction_rules:
      - {key: tag, kind: static, value: {string: alpha}, write_mode: accumulate}
rulesets:
  server_rs:
    template_id: server_tpl
    rule_ids: [player_count, tag_rule]
  client_rs:
    template_id: client_tpl
    rule_ids: [client_status]
patterns:
  server_full_then_client:
    predicates:
      - {source: server, key: player_count, op: gte, operand: {literal: {integer: 64}}}
      - {source: client, key: status, op: eq, operand: {literal: {string: connecting}}}
sources:
  - {id: server, name: server, template_id: server_tpl, file_path: %q}
  - {id: client, name: client, template_id: client_tpl, file_path: %q}
`

func buildSnapshot(t *testing.T, serverLog, clientLog string) *config.Snapshot {
	t.Helper()
	dir := t.TempDir()
	path := writeFile(t, dir, "snapshot.yaml", fmt.Sprintf(snapshotTemplate, serverLog, clientLog))
	snap, err := config.Load([]string{path})
	require.NoError(t, err)
	return snap
}

// Scenario A/E: k-way merge ordering feeds the pattern evaluator correctly
// and the pattern fires exactly once, at the timestamp of the triggering
// entry.
func TestRunAnalysisFiresPatternAcrossSources(t *testing.T) {
	dir := t.TempDir()
	serverLog := writeFile(t, dir, "server.log", ""+
		"2024-01-01 10:00:00 Players: 50\n"+
		"2024-01-01 10:00:02 Players: 64\n")
	clientLog := writeFile(t, dir, "client.log", ""+
		"2024-01-01 10:00:01 status=waiting\n"+
		"2024-01-01 10:00:03 status=connecting\n")

	snap := buildSnapshot(t, serverLog, clientLog)
	collector := events.NewCollector()

	completion, err := RunAnalysis(context.Background(), snap, RunOptions{}, collector)
	require.NoError(t, err)

	assert.EqualValues(t, 4, completion.LinesProcessed)
	assert.EqualValues(t, 1, completion.PatternMatches)

	patternEvents := collector.ByType(events.TypePatternMatch)
	require.Len(t, patternEvents, 1)
	assert.Equal(t, "server_full_then_client", patternEvents[0].Data["pattern_id"])

	completeEvents := collector.ByType(events.TypeComplete)
	require.Len(t, completeEvents, 1)
}

// Scenario D: Accumulate on strings concatenates across two matches.
func TestRunAnalysisAccumulatesStringState(t *testing.T) {
	dir := t.TempDir()
	serverLog := writeFile(t, dir, "server.log", ""+
		"2024-01-01 10:00:00 TAG\n"+
		"2024-01-01 10:00:01 TAG\n")
	clientLog := writeFile(t, dir, "client.log", "")

	snap := buildSnapshot(t, serverLog, clientLog)
	collector := events.NewCollector()

	_, err := RunAnalysis(context.Background(), snap, RunOptions{}, collector)
	require.NoError(t, err)

	changes := collector.ByType(events.TypeStateChange)
	require.Len(t, changes, 2)
	assert.Nil(t, changes[0].Data["old_value"])
	second := changes[1].Data["new_value"]
	require.NotNil(t, second)
}

func TestRunAnalysisTimeRangeFiltersButStillConsumes(t *testing.T) {
	dir := t.TempDir()
	serverLog := writeFile(t, dir, "server.log", ""+
		"2024-01-01 09:00:00 Players: 10\n"+
		"2024-01-01 10:00:00 Players: 64\n")
	clientLog := writeFile(t, dir, "client.log", "")

	snap := buildSnapshot(t, serverLog, clientLog)
	collector := events.NewCollector()

	start := int64(1704103200000) // 2024-01-01T10:00:00Z in ms
	completion, err := RunAnalysis(context.Background(), snap, RunOptions{TimeRangeStart: &start}, collector)
	require.NoError(t, err)

	assert.EqualValues(t, 2, completion.LinesProcessed)
	assert.EqualValues(t, 1, completion.RuleMatches)
}

func TestRunAnalysisCancellationEndsWithoutComplete(t *testing.T) {
	dir := t.TempDir()
	serverLog := writeFile(t, dir, "server.log", "2024-01-01 10:00:00 Players: 1\n")
	clientLog := writeFile(t, dir, "client.log", "")

	snap := buildSnapshot(t, serverLog, clientLog)
	collector := events.NewCollector()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunAnalysis(ctx, snap, RunOptions{}, collector)
	require.NoError(t, err)

	assert.Empty(t, collector.ByType(events.TypeComplete))
}

func TestRunAnalysisMissingSourceFileIsRecoverable(t *testing.T) {
	dir := t.TempDir()
	clientLog := writeFile(t, dir, "client.log", "2024-01-01 10:00:00 status=connecting\n")

	snap := buildSnapshot(t, filepath.Join(dir, "does-not-exist.log"), clientLog)
	collector := events.NewCollector()

	completion, err := RunAnalysis(context.Background(), snap, RunOptions{}, collector)
	require.NoError(t, err)
	assert.EqualValues(t, 1, completion.LinesProcessed)

	errs := collector.ByType(events.TypeError)
	require.Len(t, errs, 1)
}
