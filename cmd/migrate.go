package cmd

import (
	"context"

	"github.com/campusjobs/jobboard-auth/database"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

func newMigrateSubcommand(command, short string) *cobra.Command {
	return &cobra.Command{
		Use:   command,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			db, err := openDatabaseFromEnv(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			return database.Migrate(ctx, db, command)
		},
	}
}

func init() {
	migrateCmd.AddCommand(newMigrateSubcommand("up", "Apply all pending migrations"))
	migrateCmd.AddCommand(newMigrateSubcommand("down", "Roll back the most recent migration"))
	migrateCmd.AddCommand(newMigrateSubcommand("status", "Print the status of every migration"))
	rootCmd.AddCommand(migrateCmd)
}
