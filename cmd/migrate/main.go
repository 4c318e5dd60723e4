package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"fintrack/internal/config"
	"fintrack/internal/database"
	"fintrack/internal/logger"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := newRootCommand().Execute(); err != nil {
		logger.Get().Errorf("Migration error: %v", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var source string

	rootCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back fintrack schema migrations",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&source, "source", database.DefaultMigrationsSource, "migrations source URL")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				url, err := databaseURL()
				if err != nil {
					return err
				}
				return database.MigrateUp(source, url)
			},
		},
		&cobra.Command{
			Use:   "down [N]",
			Short: "Roll back N migrations (default 1)",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) > 0 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n <= 0 {
						return fmt.Errorf("invalid step count: %q", args[0])
					}
					steps = n
				}
				url, err := databaseURL()
				if err != nil {
					return err
				}
				return database.MigrateDown(source, url, steps)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				url, err := databaseURL()
				if err != nil {
					return err
				}
				version, dirty, err := database.MigrationVersion(source, url)
				if err != nil {
					return fmt.Errorf("failed to get version: %w", err)
				}
				logger.Get().Infof("Version: %d, Dirty: %v", version, dirty)
				return nil
			},
		},
	)

	return rootCmd
}

func databaseURL() (string, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	return database.NewConfig(cfg).URL(), nil
}
