package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCommandRejectsBadFromTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validSnapshotYAML), 0o644))

	configPaths = []string{path}
	timeRangeFrom = "not-a-timestamp"
	timeRangeTo = ""
	jsonEvents = true
	watchSourceDir = ""
	defer func() { timeRangeFrom = "" }()

	err := runCmd.RunE(runCmd, nil)
	assert.Error(t, err)
}

func TestRunCommandRunsAgainstEmptySource(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "server.log")
	require.NoError(t, os.WriteFile(logPath, []byte(""), 0o644))

	cfgPath := filepath.Join(dir, "snapshot.yaml")
	cfgYAML := `
timestamp_specs:
  syslog:
    format: "2006-01-02 15:04:05"
templates:
  tpl:
    timestamp_spec_id: syslog
    line_delimiter: "\n"
sources:
  - {id: server, name: server, template_id: tpl, file_path: ` + logPath + `}
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o644))

	configPaths = []string{cfgPath}
	timeRangeFrom = ""
	timeRangeTo = ""
	jsonEvents = true
	watchSourceDir = ""

	err := runCmd.RunE(runCmd, nil)
	assert.NoError(t, err)
}
