package ty

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestOptJSONRoundTrip(t *testing.T) {
	set := OptWrap(42)
	data, err := json.Marshal(set)
	require.NoError(t, err)
	assert.Equal(t, "42", string(data))

	var decoded Opt[int]
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.Set)
	assert.Equal(t, 42, decoded.Value)

	var unset Opt[int]
	require.NoError(t, json.Unmarshal([]byte("null"), &unset))
	assert.False(t, unset.Set)
}

func TestOptYAMLUnset(t *testing.T) {
	var o Opt[string]
	require.NoError(t, yaml.Unmarshal([]byte("null"), &o))
	assert.False(t, o.Set)

	require.NoError(t, yaml.Unmarshal([]byte("hello"), &o))
	assert.True(t, o.Set)
	assert.Equal(t, "hello", o.Value)
}

func TestCompileRegexNormalizesNamedGroups(t *testing.T) {
	re, err := CompileRegex(`(?<year>\d{4})-(?<month>\d{2})`)
	require.NoError(t, err)
	m := re.FindStringSubmatch("2024-01")
	require.Len(t, m, 3)
	assert.Equal(t, "2024", m[1])
	assert.Equal(t, "01", m[2])
}
