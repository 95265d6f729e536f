package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sebasr/bpmetrics/internal/database"
)

func (a *app) newMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to the library store",
		Long: `Apply schema migrations to the library store.

Without --version the schema is brought to the latest version.
--version 0 rolls every migration back; a positive version migrates up or down to it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, _ := cmd.Flags().GetInt("version")

			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := database.Migrate(db, target, a.logger(cmd)); err != nil {
				return err
			}

			version, dirty, err := database.SchemaVersion(db)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Schema version %d (dirty: %t)\n", version, dirty)
			return err
		},
	}
	migrateCmd.Flags().Int("version", database.LatestVersion, "Target schema version (-1 = latest, 0 = empty)")
	return migrateCmd
}
