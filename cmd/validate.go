package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bascanada/logium/internal/config"
)

var validateConfigPaths []string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config snapshot without running it",
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshot, err := config.Load(validateConfigPaths)
		if err != nil {
			return fmt.Errorf("config snapshot is invalid: %w", err)
		}

		fmt.Printf("config snapshot is valid: %d timestamp spec(s), %d template(s), %d rule(s), %d ruleset(s), %d pattern(s), %d source(s)\n",
			len(snapshot.TimestampSpecs), len(snapshot.Templates), len(snapshot.Rules),
			len(snapshot.Rulesets), len(snapshot.Patterns), len(snapshot.Sources))
		return nil
	},
}

func init() {
	validateCmd.Flags().StringArrayVarP(&validateConfigPaths, "config", "c", nil, "config snapshot file(s), merged last-file-wins")
}
