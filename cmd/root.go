package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bascanada/logium/internal/logging"
)

var (
	loggingLevel  string
	loggingPath   string
	loggingStdout bool
	loggingJSON   bool
)

var rootCmd = &cobra.Command{
	Use:   "logium",
	Short: "Streaming, multi-source log correlation and pattern matching engine",
	Long:  ``,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// buildLogger constructs the process-wide logger from the persistent
// logging flags, matching the teacher's --logging-* flag names.
func buildLogger() (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  loggingLevel,
		Path:   loggingPath,
		Stdout: loggingStdout,
		JSON:   loggingJSON,
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&loggingPath, "logging-path", "", "file to output logs of the application")
	rootCmd.PersistentFlags().StringVar(&loggingLevel, "logging-level", "", "logging level to output TRACE DEBUG INFO WARN ERROR")
	rootCmd.PersistentFlags().BoolVar(&loggingStdout, "logging-stdout", false, "output application log to stdout")
	rootCmd.PersistentFlags().BoolVar(&loggingJSON, "logging-json", false, "output application log as JSON lines")

	_ = rootCmd.RegisterFlagCompletionFunc("logging-level", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveCmd)
}
