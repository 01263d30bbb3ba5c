package main

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/spf13/cobra"

	"github.com/itamops/assetman/migrations"
	"github.com/itamops/assetman/pkg/configuration"
)

func newMigrateCmd() *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := configuration.Use()
			defer conf.Unload()

			src, err := iofs.New(migrations.FS, ".")
			if err != nil {
				return fmt.Errorf("load migrations: %w", err)
			}
			m, err := migrate.NewWithSourceInstance("iofs", src, conf.Database.MigrateURL())
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() {
				if _, dbErr := m.Close(); dbErr != nil {
					conf.Logger().WithError(dbErr).Warn("failed to close migrate instance")
				}
			}()

			if down {
				err = m.Down()
			} else {
				err = m.Up()
			}
			if errors.Is(err, migrate.ErrNoChange) {
				conf.Logger().Info("schema already up to date")
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&down, "down", false, "roll the schema back instead of forward")
	return cmd
}
