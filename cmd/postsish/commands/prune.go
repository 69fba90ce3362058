package commands

import (
	"posts-backend/internal/app"
	"posts-backend/internal/services"

	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune-tokens",
	Short: "Delete blacklisted tokens that have expired",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := app.OpenStorage(cmd.Context(), cfg, logger, false)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := services.NewBlacklistService(store, logger).Prune(cmd.Context())
		if err != nil {
			return err
		}
		logger.Info("Prune finished", "deleted", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pruneCmd)
}
