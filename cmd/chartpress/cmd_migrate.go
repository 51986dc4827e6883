package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chartpress/internal/store"
)

var migrateFlags struct {
	dir string
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateFlags.dir, "dir", "", "Migrations directory (default CHARTPRESS_MIGRATIONS_DIR)")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	rt, err := setup()
	if err != nil {
		return err
	}
	defer rt.close()
	ctx := cmd.Context()

	db, err := rt.openDB(ctx)
	if err != nil {
		return err
	}
	dir := firstNonEmpty(migrateFlags.dir, rt.cfg.MigrationsDir)
	applied, err := store.ApplyMigrations(ctx, db, dir, rt.logger.Named("migrate"))
	if err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(applied) == 0 {
		fmt.Fprintln(out, "Database is up to date")
		return nil
	}
	for _, version := range applied {
		fmt.Fprintf(out, "applied %s\n", version)
	}
	return nil
}
