package main

import (
	"context"
	"fmt"

	"github.com/jingkaihe/skillet/pkg/db"
	"github.com/jingkaihe/skillet/pkg/db/migrations"
	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
	Long:  `Commands for managing the history database (migrations and status).`,
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database migration status",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrationRunner(cmd.Context(), func(ctx context.Context, path string, runner *db.MigrationRunner) error {
			applied, err := runner.GetAppliedVersions(ctx)
			if err != nil {
				return err
			}

			presenter.Section("Database Migration Status")
			presenter.Info("Database: " + path)
			presenter.Table([]string{"VERSION", "DESCRIPTION", "STATUS"}, migrationRows(migrations.All(), applied))
			presenter.Info(fmt.Sprintf("Applied: %d/%d migrations", countApplied(migrations.All(), applied), len(migrations.All())))
			return nil
		})
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrationRunner(cmd.Context(), func(ctx context.Context, _ string, runner *db.MigrationRunner) error {
			pending, err := runner.Pending(ctx, migrations.All())
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				presenter.Info("Database is up to date")
				return nil
			}
			if err := runner.Run(ctx, migrations.All()); err != nil {
				return errors.Wrap(err, "failed to apply migrations")
			}
			for _, m := range pending {
				presenter.Success(fmt.Sprintf("Applied migration %d: %s", m.Version, m.Description))
			}
			return nil
		})
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back the last database migration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withMigrationRunner(cmd.Context(), func(ctx context.Context, _ string, runner *db.MigrationRunner) error {
			applied, err := runner.GetAppliedVersions(ctx)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				presenter.Warning("No migrations to roll back")
				return nil
			}

			last := applied[len(applied)-1]
			if err := runner.Rollback(ctx, migrations.All()); err != nil {
				return errors.Wrap(err, "failed to roll back migration")
			}
			presenter.Success(fmt.Sprintf("Rolled back migration %d", last))
			return nil
		})
	},
}

func init() {
	dbCmd.AddCommand(dbStatusCmd, dbMigrateCmd, dbRollbackCmd)
	rootCmd.AddCommand(dbCmd)
}

// withMigrationRunner opens the history database without migrating it.
func withMigrationRunner(ctx context.Context, fn func(context.Context, string, *db.MigrationRunner) error) error {
	path, err := db.ResolvePath(viper.GetString("history.db_path"))
	if err != nil {
		return err
	}

	sqlDB, err := db.Open(ctx, path)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return fn(ctx, path, db.NewMigrationRunner(sqlDB))
}

func migrationRows(all []db.Migration, applied []int64) [][]string {
	done := make(map[int64]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	rows := make([][]string, 0, len(all))
	for _, m := range all {
		status := "pending"
		if done[m.Version] {
			status = "applied"
		}
		rows = append(rows, []string{fmt.Sprintf("%d", m.Version), m.Description, status})
	}
	return rows
}

func countApplied(all []db.Migration, applied []int64) int {
	var n int
	for _, row := range migrationRows(all, applied) {
		if row[2] == "applied" {
			n++
		}
	}
	return n
}
