package migrations

import (
	"database/sql"

	"github.com/jingkaihe/skillet/pkg/db"
	"github.com/pkg/errors"
)

// Migration20261018090001AddSelectionIndexes indexes selections for listing
// and per-skill statistics.
func Migration20261018090001AddSelectionIndexes() db.Migration {
	return db.Migration{
		Version:     20261018090001,
		Description: "Add selection indexes",
		Up: func(tx *sql.Tx) error {
			for _, idx := range []string{
				"CREATE INDEX IF NOT EXISTS idx_selections_created_at ON selections(created_at DESC)",
				"CREATE INDEX IF NOT EXISTS idx_selections_skill ON selections(skill)",
			} {
				if _, err := tx.Exec(idx); err != nil {
					return errors.Wrap(err, "failed to create index")
				}
			}
			return nil
		},
		Down: func(tx *sql.Tx) error {
			for _, drop := range []string{
				"DROP INDEX IF EXISTS idx_selections_skill",
				"DROP INDEX IF EXISTS idx_selections_created_at",
			} {
				if _, err := tx.Exec(drop); err != nil {
					return errors.Wrap(err, "failed to drop index")
				}
			}
			return nil
		},
	}
}
