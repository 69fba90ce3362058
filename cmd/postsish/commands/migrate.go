package commands

import (
	"posts-backend/internal/db"

	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run the embedded database migrations.

Subcommands:
  up      - Apply pending migrations
  down    - Roll back the last migration
  status  - Show migration status`,
}

func newMigrateSubcommand(command, short string) *cobra.Command {
	return &cobra.Command{
		Use:   command,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := db.Connect(cmd.Context(), cfg.DatabaseURL, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.Migrate(cmd.Context(), pool, command); err != nil {
				return err
			}
			logger.Info("Migration finished", "command", command)
			return nil
		},
	}
}

func init() {
	migrateCmd.AddCommand(
		newMigrateSubcommand("up", "Apply pending migrations"),
		newMigrateSubcommand("down", "Roll back the last migration"),
		newMigrateSubcommand("status", "Show migration status"),
	)
	rootCmd.AddCommand(migrateCmd)
}
