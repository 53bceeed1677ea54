package main

import (
	"github.com/spf13/cobra"

	auth "github.com/goliatone/go-authgate"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending user store migrations to the configured database.`,
	}

	bindFlags(cmd.Flags(), DefaultAppConfig())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		cfg, err := LoadConfig(configFile, cmd.Flags())
		if err != nil {
			return err
		}

		db, err := auth.OpenDB(cfg.DSN)
		if err != nil {
			return err
		}
		defer db.Close()

		repo := auth.NewRepositoryManager(db, nil, cfg.Auth)
		repo.SetLogger(auth.NewSlogLogger(newLogger(cfg)).With("component", "migrate"))

		return repo.Migrate(cmd.Context())
	}

	return cmd
}
