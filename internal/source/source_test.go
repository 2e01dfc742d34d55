package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bascanada/logium/internal/ty"
)

func TestTimestampSpecParseFromRawNoExtractionRegex(t *testing.T) {
	spec := &TimestampSpec{ID: "syslog", Format: "2006-01-02 15:04:05"}
	require.NoError(t, spec.Compile())

	ts, err := spec.ParseFromRaw("2024-01-01 10:00:00 player joined")
	require.NoError(t, err)
	assert.Equal(t, 2024, ts.Year())
}

func TestTimestampSpecDefaultYearPrependedWhenFormatLacksYear(t *testing.T) {
	spec := &TimestampSpec{
		ID:          "no-year",
		Format:      "Jan 2 15:04:05",
		DefaultYear: ty.Opt[int]{Set: true, Value: 2023},
	}
	require.NoError(t, spec.Compile())

	ts, err := spec.ParseFromRaw("Mar 4 01:02:03 boot")
	require.NoError(t, err)
	assert.Equal(t, 2023, ts.Year())
}

func TestTimestampSpecExtractionRegexRequiresCaptureGroup(t *testing.T) {
	spec := &TimestampSpec{
		ID:              "bad",
		Format:          "2006-01-02",
		ExtractionRegex: ty.Opt[string]{Set: true, Value: `^\d{4}-\d{2}-\d{2}`},
	}
	err := spec.Compile()
	assert.Error(t, err)
}

func TestTimestampSpecExtractUsesCaptureGroup(t *testing.T) {
	spec := &TimestampSpec{
		ID:              "bracketed",
		Format:          "2006-01-02 15:04:05",
		ExtractionRegex: ty.Opt[string]{Set: true, Value: `^\[(.+?)\]`},
	}
	require.NoError(t, spec.Compile())

	ts, err := spec.ParseFromRaw("[2024-06-01 08:30:00] connected")
	require.NoError(t, err)
	assert.Equal(t, 6, int(ts.Month()))
}

func TestTimestampSpecParseFromRawFailsWithoutMatch(t *testing.T) {
	spec := &TimestampSpec{
		ID:              "bracketed",
		Format:          "2006-01-02 15:04:05",
		ExtractionRegex: ty.Opt[string]{Set: true, Value: `^\[(.+?)\]`},
	}
	require.NoError(t, spec.Compile())

	_, err := spec.ParseFromRaw("no brackets here")
	assert.Error(t, err)
	var parseErr *TimestampParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestSourceTemplateRejectsContinuationAndJSONTogether(t *testing.T) {
	tpl := &SourceTemplate{
		ID:                 "bad",
		ContinuationRegex:  ty.Opt[string]{Set: true, Value: `^\s+`},
		JSONTimestampField: ty.Opt[string]{Set: true, Value: "ts"},
	}
	err := tpl.Compile()
	assert.Error(t, err)
}

func TestSourceTemplateDefaultsLineDelimiter(t *testing.T) {
	tpl := &SourceTemplate{ID: "plain"}
	require.NoError(t, tpl.Compile())
	assert.Equal(t, "\n", tpl.LineDelimiter)
}

func TestSourceTemplateIsJSON(t *testing.T) {
	tpl := &SourceTemplate{ID: "json", JSONTimestampField: ty.Opt[string]{Set: true, Value: "ts"}}
	require.NoError(t, tpl.Compile())
	assert.True(t, tpl.IsJSON())

	plain := &SourceTemplate{ID: "plain"}
	require.NoError(t, plain.Compile())
	assert.False(t, plain.IsJSON())
}

func TestSourceTemplateContinuationMatches(t *testing.T) {
	tpl := &SourceTemplate{ID: "stacktrace", ContinuationRegex: ty.Opt[string]{Set: true, Value: `^\s+at `}}
	require.NoError(t, tpl.Compile())

	assert.True(t, tpl.ContinuationMatches("    at com.example.Foo.bar"))
	assert.False(t, tpl.ContinuationMatches("2024-01-01 fresh entry"))
}

func TestSourceTemplateExtractContentWithAndWithoutRegex(t *testing.T) {
	withRegex := &SourceTemplate{ID: "with", ContentRegex: ty.Opt[string]{Set: true, Value: `^\S+ \S+ (.*)$`}}
	require.NoError(t, withRegex.Compile())
	assert.Equal(t, "player joined", withRegex.ExtractContent("2024-01-01 10:00:00 player joined"))

	noRegex := &SourceTemplate{ID: "without"}
	require.NoError(t, noRegex.Compile())
	assert.Equal(t, "raw text", noRegex.ExtractContent("raw text"))
}
