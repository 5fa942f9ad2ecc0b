package main

import (
	"context"

	"github.com/lawoffice/billinghub/db"
	"github.com/lawoffice/billinghub/lib"
	"github.com/lawoffice/billinghub/lib/service"
	"github.com/spf13/cobra"
)

func newMigrateCommand(load func() (*service.Config, error)) *cobra.Command {
	var rollback bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := load()
			if err != nil {
				return err
			}
			logger := lib.Logger(c.LogFilePath)

			dbConn, err := db.Open(c)
			if err != nil {
				return err
			}
			defer dbConn.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if rollback {
				group, err := db.Rollback(ctx, dbConn)
				if err != nil {
					return err
				}
				if group.IsZero() {
					logger.Info("No migration group to roll back")
					return nil
				}
				logger.Infof("Rolled back %s", group)
				return nil
			}

			group, err := db.Migrate(ctx, dbConn)
			if err != nil {
				return err
			}
			if group.IsZero() {
				logger.Info("No new migrations to run, database is up to date")
				return nil
			}
			logger.Infof("Migrated to %s", group)
			return nil
		},
	}
	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll back the last migration group")
	return cmd
}
