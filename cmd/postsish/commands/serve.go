package commands

import (
	"posts-backend/internal/app"

	"github.com/spf13/cobra"
)

var noWorkers bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and task workers",
	Long: `Run the HTTP API. Unless --no-workers is given, the same process also
consumes the mail and image deletion queues and prunes expired blacklisted tokens.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return app.Run(cfg, logger, app.Options{Workers: !noWorkers})
	},
}

func init() {
	serveCmd.Flags().BoolVar(&noWorkers, "no-workers", false, "Do not start the task consumers")
	rootCmd.AddCommand(serveCmd)
}
