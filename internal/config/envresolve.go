package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches shell-style ${VAR}, ${VAR:-default} and $VAR tokens.
var envVarPattern = regexp.MustCompile(`\$(\{([a-zA-Z_][a-zA-Z0-9_]*)(:-(.*?)?)?\}|([a-zA-Z_][a-zA-Z0-9_]*))`)

// ResolveEnv expands shell-style variable references in a source file path
// or other config string, so a snapshot can be written once and reused
// across environments (e.g. file_path: "${LOG_DIR:-/var/log}/server.log").
func ResolveEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(tok string) string {
		body := tok[1:]
		body = strings.TrimPrefix(body, "{")
		body = strings.TrimSuffix(body, "}")

		name := body
		var def string
		hasDefault := false
		if idx := strings.Index(body, ":-"); idx != -1 {
			name = body[:idx]
			def = body[idx+2:]
			hasDefault = true
		}

		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		if hasDefault {
			return def
		}
		return tok
	})
}
