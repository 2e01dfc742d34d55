// Package cliprinter renders the analysis event taxonomy to a terminal,
// colorized the way the teacher's pkg/log/printer colors log output.
package cliprinter

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/bascanada/logium/internal/events"
)

// InitColorState mirrors the teacher's priority order: an explicit flag
// wins, then NO_COLOR, then TTY auto-detection, defaulting to off for
// writers that aren't a terminal.
func InitColorState(explicitSetting *bool, writer io.Writer) {
	if explicitSetting != nil {
		color.NoColor = !*explicitSetting
		return
	}
	if os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
		return
	}
	if f, ok := writer.(*os.File); ok {
		color.NoColor = !isatty.IsTerminal(f.Fd())
		return
	}
	color.NoColor = true
}

var (
	ruleMatchColor    = color.New(color.FgGreen, color.Bold)
	stateChangeColor  = color.New(color.FgCyan)
	patternMatchColor = color.New(color.FgMagenta, color.Bold)
	errorColor        = color.New(color.FgRed, color.Bold)
	progressColor     = color.New(color.FgYellow)
	completeColor     = color.New(color.FgGreen, color.Bold)
)

// Print writes one human-readable line per event to w.
func Print(w io.Writer, e events.Event) {
	switch e.Type {
	case events.TypeRuleMatch:
		ruleMatchColor.Fprintf(w, "[rule_match] ")
		fmt.Fprintf(w, "rule=%v source=%v\n", e.Data["rule_id"], e.Data["source_id"])

	case events.TypeStateChange:
		stateChangeColor.Fprintf(w, "[state_change] ")
		fmt.Fprintf(w, "%v.%v: %v -> %v\n", e.Data["source_name"], e.Data["state_key"], valueOrDash(e.Data["old_value"]), valueOrDash(e.Data["new_value"]))

	case events.TypePatternMatch:
		patternMatchColor.Fprintf(w, "[pattern_match] ")
		fmt.Fprintf(w, "pattern=%v at=%v\n", e.Data["pattern_id"], e.Data["timestamp"])

	case events.TypeProgress:
		progressColor.Fprintf(w, "[progress] lines=%v\n", e.Data["lines_processed"])

	case events.TypeComplete:
		completeColor.Fprintf(w, "[complete] ")
		fmt.Fprintf(w, "%s\n", formatComplete(e.Data))

	case events.TypeError:
		errorColor.Fprintf(w, "[error] %v\n", e.Data["message"])

	default:
		fmt.Fprintf(w, "[%s] %v\n", e.Type, e.Data)
	}
}

func valueOrDash(v interface{}) interface{} {
	if v == nil {
		return "-"
	}
	return v
}

func formatComplete(data map[string]interface{}) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%v", k, data[k])
	}
	return out
}
