package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	s := &Server{router: http.NewServeMux(), logger: logger}
	s.routes()
	return s
}

func TestHealthHandlerReturnsOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestAnalysisRunRejectsEmptyConfigPaths(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/analysis/run", strings.NewReader(`{"configPaths":[]}`))
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalysisRunRejectsUnknownConfigPath(t *testing.T) {
	s := newTestServer(t)
	body := `{"configPaths":["/does/not/exist.yaml"]}`
	req := httptest.NewRequest(http.MethodPost, "/analysis/run", strings.NewReader(body))
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalysisRunStreamsNDJSONEvents(t *testing.T) {
	s := newTestServer(t)

	dir := t.TempDir()
	logPath := filepath.Join(dir, "server.log")
	require.NoError(t, os.WriteFile(logPath, []byte("2024-01-01 10:00:00 Players: 10\n"), 0o644))

	cfgPath := filepath.Join(dir, "snapshot.yaml")
	cfgYAML := `
timestamp_specs:
  syslog:
    format: "2006-01-02 15:04:05"
    extraction_regex: '^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})'
templates:
  tpl:
    timestamp_spec_id: syslog
    line_delimiter: "\n"
rules:
  player_count:
    match_mode: all
    match_rules: ['Players: \d+']
    extraction_rules:
      - {key: player_count, kind: parsed, pattern: 'Players: (\d+)', write_mode: replace}
rulesets:
  server_rs:
    template_id: tpl
    rule_ids: [player_count]
sources:
  - {id: server, name: server, template_id: tpl, file_path: ` + jsonQuote(logPath) + `}
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgYAML), 0o644))

	reqBody := `{"configPaths":[` + jsonQuote(cfgPath) + `]}`
	req := httptest.NewRequest(http.MethodPost, "/analysis/run", strings.NewReader(reqBody))
	rec := httptest.NewRecorder()

	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	scanner := bufio.NewScanner(bytes.NewReader(rec.Body.Bytes()))
	var sawRuleMatch, sawComplete bool
	for scanner.Scan() {
		var evt struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &evt))
		switch evt.Type {
		case "rule_match":
			sawRuleMatch = true
		case "complete":
			sawComplete = true
		}
	}
	assert.True(t, sawRuleMatch)
	assert.True(t, sawComplete)
}

func jsonQuote(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
