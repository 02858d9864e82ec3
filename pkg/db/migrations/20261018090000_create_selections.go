package migrations

import (
	"database/sql"

	"github.com/jingkaihe/skillet/pkg/db"
	"github.com/pkg/errors"
)

// Migration20261018090000CreateSelections creates the selection history table.
func Migration20261018090000CreateSelections() db.Migration {
	return db.Migration{
		Version:     20261018090000,
		Description: "Create selections table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS selections (
					id TEXT PRIMARY KEY,
					text TEXT NOT NULL,
					skill TEXT NOT NULL DEFAULT '',
					score REAL NOT NULL DEFAULT 0,
					reasons TEXT NOT NULL DEFAULT '[]',
					surface TEXT NOT NULL DEFAULT 'cli',
					created_at DATETIME NOT NULL
				)
			`)
			return errors.Wrap(err, "failed to create selections table")
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec("DROP TABLE IF EXISTS selections")
			return errors.Wrap(err, "failed to drop selections table")
		},
	}
}
