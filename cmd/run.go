package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/bascanada/logium/internal/cliprinter"
	"github.com/bascanada/logium/internal/config"
	"github.com/bascanada/logium/internal/engine"
	"github.com/bascanada/logium/internal/events"
)

var (
	configPaths    []string
	timeRangeFrom  string
	timeRangeTo    string
	jsonEvents     bool
	colorFlag      bool
	watchSourceDir string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an analysis against a config snapshot",
	Long:  `Loads one or more config snapshot files, runs the correlation engine over their configured sources, and prints the resulting event stream.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := buildLogger()
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}

		logger.Info("loading config snapshot", "paths", configPaths)
		snapshot, err := config.Load(configPaths)
		if err != nil {
			return fmt.Errorf("failed to load config snapshot: %w", err)
		}

		opts, err := parseTimeRange(timeRangeFrom, timeRangeTo)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			logger.Info("interrupt received, cancelling run")
			cancel()
		}()

		var colorOverride *bool
		if cmd.Flags().Changed("color") {
			colorOverride = &colorFlag
		}
		cliprinter.InitColorState(colorOverride, os.Stdout)

		var sink events.Sink
		if jsonEvents {
			sink = jsonStdoutSink{enc: json.NewEncoder(os.Stdout)}
		} else {
			sink = printerSink{}
		}

		if watchSourceDir != "" {
			go watchAndLog(ctx, logger, watchSourceDir)
		}

		completion, err := engine.RunAnalysis(ctx, snapshot, opts, sink)
		if err != nil {
			return fmt.Errorf("analysis run failed: %w", err)
		}

		logger.Info("analysis run finished",
			"linesProcessed", completion.LinesProcessed,
			"ruleMatches", completion.RuleMatches,
			"patternMatches", completion.PatternMatches,
			"stateChanges", completion.StateChanges,
			"parseErrors", completion.ParseErrorCount,
		)
		return nil
	},
}

type printerSink struct{}

func (printerSink) Emit(e events.Event) error {
	cliprinter.Print(os.Stdout, e)
	return nil
}

type jsonStdoutSink struct {
	enc *json.Encoder
}

func (s jsonStdoutSink) Emit(e events.Event) error {
	return s.enc.Encode(e)
}

// parseTimeRange converts optional RFC3339 --from/--to flags into the
// millisecond-epoch bounds engine.RunOptions expects.
func parseTimeRange(from, to string) (engine.RunOptions, error) {
	var opts engine.RunOptions
	if from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return opts, fmt.Errorf("invalid --from timestamp %q: %w", from, err)
		}
		ms := t.UnixMilli()
		opts.TimeRangeStart = &ms
	}
	if to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return opts, fmt.Errorf("invalid --to timestamp %q: %w", to, err)
		}
		ms := t.UnixMilli()
		opts.TimeRangeEnd = &ms
	}
	return opts, nil
}

// watchAndLog watches a sources directory for new files and logs their
// arrival; a created file is picked up by the next run rather than hot-
// added to this one, since sources are bound at snapshot-load time.
func watchAndLog(ctx context.Context, logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
}, dir string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warn("failed to start source directory watcher", "err", err)
		return
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		logger.Warn("failed to watch source directory", "dir", dir, "err", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Create == fsnotify.Create {
				logger.Info("new file detected in source directory", "path", filepath.Clean(ev.Name))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("source directory watcher error", "err", err)
		}
	}
}

func init() {
	runCmd.Flags().StringArrayVarP(&configPaths, "config", "c", nil, "config snapshot file(s), merged last-file-wins")
	runCmd.Flags().StringVar(&timeRangeFrom, "from", "", "only match entries at or after this RFC3339 timestamp")
	runCmd.Flags().StringVar(&timeRangeTo, "to", "", "only match entries at or before this RFC3339 timestamp")
	runCmd.Flags().BoolVar(&jsonEvents, "json", false, "emit NDJSON events instead of colorized text")
	runCmd.Flags().StringVar(&watchSourceDir, "watch", "", "watch this directory for newly created source files while running")
	runCmd.Flags().BoolVar(&colorFlag, "color", false, "force colorized output on or off (default: auto-detect terminal)")
}
