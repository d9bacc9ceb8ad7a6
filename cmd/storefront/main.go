package main

import (
	"log"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatalf("storefront: %v", err)
	}
}

func newRootCommand() *cobra.Command {
	cfg := loadConfig()

	cmd := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront with a synchronized shopping cart",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
	cfg.bindFlags(cmd)

	cmd.AddCommand(newServeCommand(cfg))
	cmd.AddCommand(newMigrateCommand(cfg))
	return cmd
}

func newServeCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}
	cfg.bindFlags(cmd)
	return cmd
}

func newMigrateCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cfg)
		},
	}
	cmd.Flags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to SQLite database")
	cmd.Flags().StringVar(&cfg.MigrationsPath, "migrations", cfg.MigrationsPath, "path to migration files")
	return cmd
}
