package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/bascanada/logium/internal/config"
	"github.com/bascanada/logium/internal/engine"
	"github.com/bascanada/logium/internal/events"
	"github.com/google/uuid"
)

// AnalysisRunRequest is the POST /analysis/run body: a config snapshot
// (one or more files, merged last-file-wins) plus an optional time range.
type AnalysisRunRequest struct {
	ConfigPaths    []string `json:"configPaths"`
	TimeRangeStart *int64   `json:"timeRangeStart,omitempty"`
	TimeRangeEnd   *int64   `json:"timeRangeEnd,omitempty"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// analysisRunHandler loads the requested config snapshot, runs the engine
// against it, and streams the resulting event taxonomy back to the caller
// as it is produced: NDJSON by default, or SSE when the client asks for
// text/event-stream, mirroring the teacher's eventsHandler SSE-loop shape.
func (s *Server) analysisRunHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Only POST is allowed")
		return
	}

	var req AnalysisRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid request body")
		return
	}
	if len(req.ConfigPaths) == 0 {
		s.writeError(w, http.StatusBadRequest, ErrCodeValidation, "configPaths must be non-empty")
		return
	}

	snapshot, err := config.Load(req.ConfigPaths)
	if err != nil {
		s.logger.Error("failed to load config snapshot", "err", err)
		s.writeError(w, http.StatusBadRequest, ErrCodeConfig, err.Error())
		return
	}

	runID := uuid.New().String()
	requestID, _ := r.Context().Value(requestIDKey).(string)
	s.logger.Info("starting analysis run", "runID", runID, "requestID", requestID, "sources", len(snapshot.Sources))

	useSSE := strings.Contains(r.Header.Get("Accept"), "text/event-stream")

	var sink events.Sink
	if useSSE {
		sink = newSSESink(w, s.logger)
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
	} else {
		sink = newNDJSONSink(w)
		w.Header().Set("Content-Type", "application/x-ndjson")
	}
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	opts := engine.RunOptions{TimeRangeStart: req.TimeRangeStart, TimeRangeEnd: req.TimeRangeEnd}
	completion, err := engine.RunAnalysis(r.Context(), snapshot, opts, sink)
	if err != nil {
		s.logger.Error("analysis run failed", "runID", runID, "err", err)
		return
	}

	s.logger.Info("analysis run finished", "runID", runID,
		"linesProcessed", completion.LinesProcessed,
		"ruleMatches", completion.RuleMatches,
		"patternMatches", completion.PatternMatches)
}

// ndjsonSink writes one JSON-encoded event per line, flushing after each so
// a streaming client sees events as they are produced.
type ndjsonSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newNDJSONSink(w http.ResponseWriter) *ndjsonSink {
	f, _ := w.(http.Flusher)
	return &ndjsonSink{w: w, flusher: f}
}

func (s *ndjsonSink) Emit(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "%s\n", data); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

// sseSink writes each event as a server-sent event, tagging the SSE "event"
// field with the taxonomy type so clients can filter with addEventListener.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
	logger  interface {
		Error(msg string, args ...interface{})
	}
}

func newSSESink(w http.ResponseWriter, logger interface {
	Error(msg string, args ...interface{})
}) *sseSink {
	f, _ := w.(http.Flusher)
	return &sseSink{w: w, flusher: f, logger: logger}
}

func (s *sseSink) Emit(e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("failed to marshal event", "err", err)
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", e.Type, data); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
