package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bascanada/logium/internal/server"
)

var (
	servePort int
	serveHost string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the logium HTTP server",
	Long:  `Starts an HTTP server exposing POST /analysis/run and GET /health.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := buildLogger()
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}

		s := server.NewServer(serveHost, strconv.Itoa(servePort), logger)
		return s.Start()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "port to listen on")
	serveCmd.Flags().StringVarP(&serveHost, "host", "H", "0.0.0.0", "host to bind to")
}
