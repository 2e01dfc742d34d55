package ty

import (
	"regexp"
)

// namedGroupPattern matches the `(?<name>` named-capture syntax so it can be
// normalized to Go's RE2 `(?P<name>` form before compilation.
var namedGroupPattern = regexp.MustCompile(`\(\?<([a-zA-Z_][a-zA-Z0-9_]*)>`)

// NormalizeNamedGroups rewrites `(?<name>...)` into `(?P<name>...)` so both
// named-capture syntaxes are accepted interchangeably, as RE2 only natively
// understands the latter.
func NormalizeNamedGroups(pattern string) string {
	return namedGroupPattern.ReplaceAllString(pattern, "(?P<$1>")
}

// CompileRegex compiles a pattern after named-group normalization. Used by
// every component that compiles a user-supplied regex (timestamps, match
// rules, extraction rules, continuation/content regexes).
func CompileRegex(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(NormalizeNamedGroups(pattern))
}

// MustCompileRegex is CompileRegex for call sites that already validated the
// pattern at snapshot-load time.
func MustCompileRegex(pattern string) *regexp.Regexp {
	re, err := CompileRegex(pattern)
	if err != nil {
		panic(err)
	}
	return re
}
