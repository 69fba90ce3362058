package commands

import (
	"fmt"
	"log/slog"
	"os"

	"posts-backend/internal/config"
	"posts-backend/internal/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	envFile string

	cfg    *config.Config
	logger *slog.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "postsish",
	Short: "Posts-ish blogging API",
	Long: `Posts-ish serves the blogging API: accounts, posts with image
attachments, and the background workers that send mail and clean up images.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
		cfg = config.Load()
		logger = utils.NewLogger(cfg.Env, cfg.LogLevel)
		return cfg.Validate()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Load environment from this file before .env")
}
