// Package iterator implements LineIterator: a lazy, non-restartable,
// per-source parser that reconstructs logical log entries (single- or
// multi-line) from raw bytes and yields typed entries with a parsed
// timestamp.
package iterator

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/bascanada/logium/internal/source"
)

// ErrKind identifies the category of a per-entry parse error.
type ErrKind int

const (
	ErrIO ErrKind = iota
	ErrTimestampParse
	ErrUTF8
)

// ParseError is returned for (b) in the LineIterator contract: the
// iterator continues after reporting it.
type ParseError struct {
	Kind ErrKind
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("%s", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// DefaultMaxEntryBytes bounds a logical entry's accumulated size; excess
// bytes are truncated rather than growing the buffer unboundedly.
const DefaultMaxEntryBytes = 1 << 20 // 1 MiB

// splitOnDelimiter is bufio.ScanLines generalized to an arbitrary,
// possibly multi-byte line_delimiter. A "\n" delimiter keeps ScanLines'
// trailing-\r trimming for CRLF-terminated input; any other delimiter is
// split on verbatim. An empty delimiter falls back to "\n" rather than
// looping forever on a zero-width separator.
func splitOnDelimiter(delim string) bufio.SplitFunc {
	if delim == "" {
		delim = "\n"
	}
	delimBytes := []byte(delim)
	trimCR := delim == "\n"

	return func(data []byte, atEOF bool) (advance int, token []byte, err error) {
		if atEOF && len(data) == 0 {
			return 0, nil, nil
		}
		if i := bytes.Index(data, delimBytes); i >= 0 {
			token = data[:i]
			if trimCR {
				token = dropCR(token)
			}
			return i + len(delimBytes), token, nil
		}
		if atEOF {
			token = data
			if trimCR {
				token = dropCR(token)
			}
			return len(data), token, nil
		}
		return 0, nil, nil
	}
}

// dropCR drops a trailing carriage return, mirroring bufio.ScanLines.
func dropCR(data []byte) []byte {
	if len(data) > 0 && data[len(data)-1] == '\r' {
		return data[:len(data)-1]
	}
	return data
}

// Entry is the internal, typed log record LineIterator yields.
type Entry struct {
	SourceID    string
	TimestampMs int64
	Raw         string
	Content     string
	JSON        map[string]interface{}
	Truncated   bool
}

// LineIterator exclusively owns its underlying byte stream and read
// buffer. It is not safe for concurrent use and is not restartable.
type LineIterator struct {
	sourceID      string
	template      *source.SourceTemplate
	timestampSpec *source.TimestampSpec
	scanner       *bufio.Scanner
	closer        io.Closer
	maxEntryBytes int

	havePending bool
	pendingRaw  strings.Builder
	broken      bool
	closed      bool
}

// New wraps an io.Reader for one source. closer is released when the
// iterator reaches end-of-stream or Close is called explicitly.
func New(sourceID string, tpl *source.SourceTemplate, ts *source.TimestampSpec, r io.Reader, closer io.Closer, maxEntryBytes int) *LineIterator {
	if maxEntryBytes <= 0 {
		maxEntryBytes = DefaultMaxEntryBytes
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEntryBytes)
	scanner.Split(splitOnDelimiter(tpl.LineDelimiter))

	return &LineIterator{
		sourceID:      sourceID,
		template:      tpl,
		timestampSpec: ts,
		scanner:       scanner,
		closer:        closer,
		maxEntryBytes: maxEntryBytes,
	}
}

// Close releases the underlying byte stream. Safe to call more than once.
func (it *LineIterator) Close() error {
	if it.closed || it.closer == nil {
		it.closed = true
		return nil
	}
	it.closed = true
	return it.closer.Close()
}

// Next pulls the next logical entry. Contract: (entry, nil, true) on
// success, (nil, err, true) on a per-entry error (continue pulling), or
// (nil, nil, false) at end-of-stream.
func (it *LineIterator) Next() (*Entry, error, bool) {
	if it.broken {
		return nil, nil, false
	}
	if it.template.IsJSON() {
		return it.nextJSON()
	}
	return it.nextText()
}

func (it *LineIterator) nextText() (*Entry, error, bool) {
	for {
		line, eof := it.readPhysicalLine()
		if it.broken {
			_ = it.Close()
			return nil, &ParseError{Kind: ErrIO, Err: it.scanner.Err()}, true
		}
		if eof {
			if it.havePending {
				raw := it.pendingRaw.String()
				it.havePending = false
				it.pendingRaw.Reset()
				_ = it.Close()
				entry, err := it.finalizeText(raw)
				return entry, err, true
			}
			_ = it.Close()
			return nil, nil, false
		}

		if !utf8.ValidString(line) {
			return nil, &ParseError{Kind: ErrUTF8, Err: fmt.Errorf("invalid utf-8 in physical line")}, true
		}

		if it.havePending && it.template.ContinuationMatches(line) {
			it.appendPending(line)
			continue
		}

		if it.havePending {
			raw := it.pendingRaw.String()
			it.pendingRaw.Reset()
			it.pendingRaw.WriteString(line)
			entry, err := it.finalizeText(raw)
			return entry, err, true
		}

		it.havePending = true
		it.pendingRaw.WriteString(line)
	}
}

func (it *LineIterator) appendPending(line string) {
	if it.pendingRaw.Len()+len(it.template.LineDelimiter)+len(line) > it.maxEntryBytes {
		return // truncate: drop excess continuation bytes, keep what's accumulated
	}
	it.pendingRaw.WriteString(it.template.LineDelimiter)
	it.pendingRaw.WriteString(line)
}

func (it *LineIterator) readPhysicalLine() (string, bool) {
	if !it.scanner.Scan() {
		if err := it.scanner.Err(); err != nil {
			it.broken = true
			return "", false
		}
		return "", true
	}
	return it.scanner.Text(), false
}

func (it *LineIterator) finalizeText(raw string) (*Entry, error) {
	substr, ok := it.timestampSpec.Extract(raw)
	if !ok {
		return nil, &ParseError{Kind: ErrTimestampParse, Err: fmt.Errorf("no timestamp substring found in %q", raw)}
	}
	t, err := it.timestampSpec.Parse(substr)
	if err != nil {
		return nil, &ParseError{Kind: ErrTimestampParse, Err: err}
	}

	return &Entry{
		SourceID:    it.sourceID,
		TimestampMs: t.UnixMilli(),
		Raw:         raw,
		Content:     it.template.ExtractContent(raw),
	}, nil
}

func (it *LineIterator) nextJSON() (*Entry, error, bool) {
	line, eof := it.readPhysicalLine()
	if it.broken {
		_ = it.Close()
		return nil, &ParseError{Kind: ErrIO, Err: it.scanner.Err()}, true
	}
	if eof {
		_ = it.Close()
		return nil, nil, false
	}
	if !utf8.ValidString(line) {
		return nil, &ParseError{Kind: ErrUTF8, Err: fmt.Errorf("invalid utf-8 in physical line")}, true
	}

	var doc map[string]interface{}
	if err := json.Unmarshal([]byte(line), &doc); err != nil {
		return nil, &ParseError{Kind: ErrTimestampParse, Err: fmt.Errorf("malformed json line: %w", err)}, true
	}

	field := it.template.JSONTimestampField.Value
	raw, ok := doc[field]
	if !ok {
		return nil, &ParseError{Kind: ErrTimestampParse, Err: fmt.Errorf("json line missing timestamp field %q", field)}, true
	}

	ms, err := jsonTimestampToMillis(raw, it.timestampSpec)
	if err != nil {
		return nil, &ParseError{Kind: ErrTimestampParse, Err: err}, true
	}

	return &Entry{
		SourceID:    it.sourceID,
		TimestampMs: ms,
		Raw:         line,
		Content:     line,
		JSON:        doc,
	}, nil
}

// jsonTimestampToMillis reads a timestamp field that is either an
// ISO-8601/format-specified string or a numeric epoch.
func jsonTimestampToMillis(raw interface{}, ts *source.TimestampSpec) (int64, error) {
	switch v := raw.(type) {
	case string:
		t, err := ts.Parse(v)
		if err != nil {
			return 0, err
		}
		return t.UnixMilli(), nil
	case float64:
		return int64(v * 1000), nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, err
		}
		return int64(f * 1000), nil
	default:
		return 0, fmt.Errorf("unsupported json timestamp type %T", raw)
	}
}
