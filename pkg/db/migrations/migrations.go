// Package migrations contains the database migrations for skillet, versioned
// by YYYYMMDDHHmmss timestamps.
package migrations

import (
	"github.com/jingkaihe/skillet/pkg/db"
)

// All returns every registered migration. New migrations are appended here.
func All() []db.Migration {
	return []db.Migration{
		Migration20261018090000CreateSelections(),
		Migration20261018090001AddSelectionIndexes(),
	}
}
