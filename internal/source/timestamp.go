// Package source defines the immutable description of where log entries
// come from and how their timestamps are parsed: TimestampSpec,
// SourceTemplate and Source.
package source

import (
	"fmt"
	"regexp"
	"time"

	"github.com/bascanada/logium/internal/ty"
)

// TimestampParseError reports a substring that could not be parsed per a
// TimestampSpec's format.
type TimestampParseError struct {
	Substring string
	Format    string
	Cause     error
}

func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("timestamp parse error: %q against format %q: %v", e.Substring, e.Format, e.Cause)
}

func (e *TimestampParseError) Unwrap() error { return e.Cause }

// TimestampSpec describes how to extract and parse a timestamp substring
// from raw log text.
type TimestampSpec struct {
	ID               string
	Format           string
	ExtractionRegex  ty.Opt[string]
	DefaultYear      ty.Opt[int]
	compiledRegex    *regexp.Regexp
	formatHasYear    bool
}

// Compile validates and pre-compiles the extraction regex. Must be called
// once at snapshot load; a failure here is a ConfigError.
func (s *TimestampSpec) Compile() error {
	s.formatHasYear = formatHasYearField(s.Format)

	if !s.ExtractionRegex.Set || s.ExtractionRegex.Value == "" {
		return nil
	}
	re, err := ty.CompileRegex(s.ExtractionRegex.Value)
	if err != nil {
		return fmt.Errorf("timestamp spec %s: invalid extraction_regex: %w", s.ID, err)
	}
	if re.NumSubexp() != 1 {
		return fmt.Errorf("timestamp spec %s: extraction_regex must have exactly one capture group", s.ID)
	}
	s.compiledRegex = re
	return nil
}

// yearFields are the layout reference tokens that indicate a year is
// already present in the format string.
var yearFields = []string{"2006", "06"}

func formatHasYearField(format string) bool {
	for _, f := range yearFields {
		if containsToken(format, f) {
			return true
		}
	}
	return false
}

func containsToken(s, tok string) bool {
	for i := 0; i+len(tok) <= len(s); i++ {
		if s[i:i+len(tok)] == tok {
			return true
		}
	}
	return false
}

// Extract pulls the timestamp substring out of raw text, either via the
// compiled extraction regex's first capture group or, absent a regex, a
// leading prefix matching the format's length.
func (s *TimestampSpec) Extract(raw string) (string, bool) {
	if s.compiledRegex != nil {
		m := s.compiledRegex.FindStringSubmatch(raw)
		if len(m) < 2 {
			return "", false
		}
		return m[1], true
	}
	if len(raw) < len(s.Format) {
		return "", false
	}
	return raw[:len(s.Format)], true
}

// Parse parses a substring into an instant with millisecond precision,
// prepending the default year to both substring and format when the
// format lacks a year field and a default year is configured.
func (s *TimestampSpec) Parse(substring string) (time.Time, error) {
	format := s.Format
	value := substring

	if !s.formatHasYear && s.DefaultYear.Set {
		format = "2006 " + format
		value = fmt.Sprintf("%d %s", s.DefaultYear.Value, value)
	}

	t, err := time.Parse(format, value)
	if err != nil {
		return time.Time{}, &TimestampParseError{Substring: substring, Format: s.Format, Cause: err}
	}
	return t, nil
}

// ParseFromRaw extracts and parses a timestamp from a raw line in one step.
func (s *TimestampSpec) ParseFromRaw(raw string) (time.Time, error) {
	substr, ok := s.Extract(raw)
	if !ok {
		return time.Time{}, &TimestampParseError{Substring: raw, Format: s.Format, Cause: fmt.Errorf("no timestamp substring found")}
	}
	return s.Parse(substr)
}
