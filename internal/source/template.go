package source

import (
	"fmt"
	"regexp"

	"github.com/bascanada/logium/internal/ty"
)

// SourceTemplate binds a TimestampSpec to a line-splitting and extraction
// strategy shared by every Source that uses it.
type SourceTemplate struct {
	ID                string
	TimestampSpecID   string
	LineDelimiter     string
	ContentRegex      ty.Opt[string]
	ContinuationRegex ty.Opt[string]
	JSONTimestampField ty.Opt[string]

	TimestampSpec *TimestampSpec

	contentRegex      *regexp.Regexp
	continuationRegex *regexp.Regexp
}

// Compile validates the disjointness invariant and pre-compiles regexes.
func (t *SourceTemplate) Compile() error {
	if t.ContinuationRegex.Set && t.JSONTimestampField.Set {
		return fmt.Errorf("template %s: continuation_regex and json_timestamp_field are mutually exclusive", t.ID)
	}
	if t.LineDelimiter == "" {
		t.LineDelimiter = "\n"
	}

	if t.ContentRegex.Set && t.ContentRegex.Value != "" {
		re, err := ty.CompileRegex(t.ContentRegex.Value)
		if err != nil {
			return fmt.Errorf("template %s: invalid content_regex: %w", t.ID, err)
		}
		t.contentRegex = re
	}

	if t.ContinuationRegex.Set && t.ContinuationRegex.Value != "" {
		re, err := ty.CompileRegex(t.ContinuationRegex.Value)
		if err != nil {
			return fmt.Errorf("template %s: invalid continuation_regex: %w", t.ID, err)
		}
		t.continuationRegex = re
	}

	return nil
}

// IsJSON reports whether this template's sources are parsed as JSON Lines.
func (t *SourceTemplate) IsJSON() bool {
	return t.JSONTimestampField.Set && t.JSONTimestampField.Value != ""
}

// ContinuationMatches reports whether a physical line is a continuation of
// the pending logical entry.
func (t *SourceTemplate) ContinuationMatches(line string) bool {
	return t.continuationRegex != nil && t.continuationRegex.MatchString(line)
}

// ExtractContent returns content_regex's first capture group (or its whole
// match when it has no group), or the whole raw text if no content_regex is
// configured or it does not match.
func (t *SourceTemplate) ExtractContent(raw string) string {
	if t.contentRegex == nil {
		return raw
	}
	m := t.contentRegex.FindStringSubmatch(raw)
	if len(m) == 0 {
		return raw
	}
	if len(m) > 1 {
		return m[1]
	}
	return m[0]
}

// Source owns a read-only byte stream over a file on disk for the
// duration of an analysis run.
type Source struct {
	ID         string
	Name       string
	TemplateID string
	FilePath   string
}
