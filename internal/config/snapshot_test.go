package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/bascanada/logium/internal/pattern/operator"
	"github.com/bascanada/logium/internal/rule"
	"github.com/bascanada/logium/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
timestamp_specs:
  syslog:
    format: "2006-01-02 15:04:05"
    extraction_regex: '^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})'
templates:
  server_tpl:
    timestamp_spec_id: syslog
    line_delimiter: "\n"
rules:
  player_count:
    match_mode: all
    match_rules: ['Players: \d+']
    extraction_rules:
      - key: player_count
        kind: parsed
        pattern: 'Players: (\d+)'
        write_mode: replace
rulesets:
  server_ruleset:
    template_id: server_tpl
    rule_ids: [player_count]
patterns:
  server_full:
    predicates:
      - {source: server, key: player_count, op: gte, operand: {literal: {integer: 64}}}
sources:
  - {id: server, name: server, template_id: server_tpl, file_path: /var/log/server.log}
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCompilesFullSnapshot(t *testing.T) {
	path := writeTemp(t, "snapshot.yaml", sampleYAML)
	snap, err := Load([]string{path})
	require.NoError(t, err)

	require.Contains(t, snap.TimestampSpecs, "syslog")
	require.Contains(t, snap.Templates, "server_tpl")
	require.Contains(t, snap.Rules, "player_count")
	require.Len(t, snap.Rulesets, 1)
	require.Len(t, snap.Patterns, 1)
	require.Len(t, snap.Sources, 1)

	lr := snap.Rules["player_count"]
	assert.Equal(t, rule.All, lr.MatchMode)
	assert.Equal(t, state.Replace, lr.Extractions[0].WriteMode)

	p := snap.Patterns[0]
	assert.Equal(t, operator.Gte, p.Predicates[0].Operator)
}

func TestLoadRejectsUnknownTimestampSpecRef(t *testing.T) {
	bad := `
templates:
  tpl:
    timestamp_spec_id: missing
`
	path := writeTemp(t, "bad.yaml", bad)
	_, err := Load([]string{path})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownTimestampRef))
}

func TestLoadRejectsEmptyPattern(t *testing.T) {
	bad := `
patterns:
  p1: {}
`
	path := writeTemp(t, "bad.yaml", bad)
	_, err := Load([]string{path})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyPattern))
}

func TestLoadMergesMultipleFilesLastWins(t *testing.T) {
	base := `
timestamp_specs:
  ts1:
    format: "2006-01-02T15:04:05"
`
	override := `
timestamp_specs:
  ts1:
    format: "02/01/2006 15:04:05"
`
	p1 := writeTemp(t, "a.yaml", base)
	p2 := writeTemp(t, "b.yaml", override)

	snap, err := Load([]string{p1, p2})
	require.NoError(t, err)
	assert.Equal(t, "02/01/2006 15:04:05", snap.TimestampSpecs["ts1"].Format)
}

func TestLoadNoPathsIsConfigError(t *testing.T) {
	_, err := Load(nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSnapshot))
}

func TestLoadRejectsDuplicateSourceID(t *testing.T) {
	bad := `
timestamp_specs:
  syslog:
    format: "2006-01-02 15:04:05"
templates:
  tpl:
    timestamp_spec_id: syslog
sources:
  - {id: server, name: server-a, template_id: tpl, file_path: /var/log/a.log}
  - {id: server, name: server-b, template_id: tpl, file_path: /var/log/b.log}
`
	path := writeTemp(t, "bad.yaml", bad)
	_, err := Load([]string{path})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateID))
}
