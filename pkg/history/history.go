// Package history records which skill was selected for which utterance, in
// the shared SQLite storage database.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jingkaihe/skillet/pkg/db"
	"github.com/jingkaihe/skillet/pkg/db/migrations"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/selector"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// Surface is the interface a selection was made through.
type Surface string

const (
	SurfaceCLI  Surface = "cli"
	SurfaceHTTP Surface = "http"
	SurfaceMCP  Surface = "mcp"
)

// Entry is one recorded selection. Skill is empty when nothing matched.
type Entry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Skill     string    `json:"skill"`
	Score     float64   `json:"score"`
	Reasons   []string  `json:"reasons"`
	Surface   Surface   `json:"surface"`
	CreatedAt time.Time `json:"created_at"`
}

// SkillStat aggregates the selections of one skill.
type SkillStat struct {
	Skill        string    `json:"skill"`
	Count        int       `json:"count"`
	AvgScore     float64   `json:"avg_score"`
	LastSelected time.Time `json:"last_selected"`
}

// Stats summarizes the history.
type Stats struct {
	Total     int         `json:"total"`
	Unmatched int         `json:"unmatched"`
	Skills    []SkillStat `json:"skills"`
}

// ListOptions filters List.
type ListOptions struct {
	// Limit caps the number of entries; zero means 50.
	Limit int
	// Skill keeps only the entries of one skill.
	Skill string
}

// Store persists selections.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens the database at path (the default location when empty) and
// applies pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	resolved, err := db.ResolvePath(path)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.OpenAndMigrate(ctx, resolved, migrations.All())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open history database")
	}

	logger.G(ctx).WithField("path", resolved).Debug("history database opened")
	return NewStore(sqlDB), nil
}

// NewStore wraps an already migrated database.
func NewStore(sqlDB *sqlx.DB) *Store {
	return &Store{db: sqlDB, now: time.Now}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores the outcome of a selection. sel is nil when nothing matched.
func (s *Store) Record(ctx context.Context, text string, sel *selector.Selection, surface Surface) (Entry, error) {
	entry := Entry{
		ID:        uuid.NewString(),
		Text:      text,
		Reasons:   []string{},
		Surface:   surface,
		CreatedAt: s.now().UTC(),
	}
	if sel != nil {
		entry.Skill = sel.Skill.Name
		entry.Score = sel.Score
		if sel.Reasons != nil {
			entry.Reasons = sel.Reasons
		}
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO selections (id, text, skill, score, reasons, surface, created_at)
		VALUES (:id, :text, :skill, :score, :reasons, :surface, :created_at)
	`, dbSelection{
		ID:        entry.ID,
		Text:      entry.Text,
		Skill:     entry.Skill,
		Score:     entry.Score,
		Reasons:   JSONField[[]string]{Data: entry.Reasons},
		Surface:   string(entry.Surface),
		CreatedAt: entry.CreatedAt.Format(timeFormat),
	})
	if err != nil {
		return Entry{}, errors.Wrap(err, "failed to record selection")
	}
	return entry, nil
}

// List returns recorded selections, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}

	query := `SELECT id, text, skill, score, reasons, surface, created_at FROM selections`
	args := []any{}
	if opts.Skill != "" {
		query += ` WHERE skill = ?`
		args = append(args, opts.Skill)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, opts.Limit)

	var rows []dbSelection
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to list selections")
	}

	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toEntry()
		if err != nil {
			logger.G(ctx).WithError(err).Debug("skipping corrupted selection")
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Stats aggregates selections per skill, most selected first.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM selections`)
	if err != nil {
		return stats, errors.Wrap(err, "failed to count selections")
	}
	err = s.db.GetContext(ctx, &stats.Unmatched, `SELECT COUNT(*) FROM selections WHERE skill = ''`)
	if err != nil {
		return stats, errors.Wrap(err, "failed to count unmatched selections")
	}

	var rows []dbSkillStat
	err = s.db.SelectContext(ctx, &rows, `
		SELECT skill, COUNT(*) AS count, AVG(score) AS avg_score, MAX(created_at) AS last_selected
		FROM selections
		WHERE skill != ''
		GROUP BY skill
		ORDER BY count DESC, skill ASC
	`)
	if err != nil {
		return stats, errors.Wrap(err, "failed to aggregate selections")
	}

	stats.Skills = make([]SkillStat, 0, len(rows))
	for _, row := range rows {
		last, err := time.Parse(timeFormat, row.LastSelected)
		if err != nil {
			return stats, errors.Wrapf(err, "invalid timestamp for skill %s", row.Skill)
		}
		stats.Skills = append(stats.Skills, SkillStat{
			Skill:        row.Skill,
			Count:        row.Count,
			AvgScore:     row.AvgScore,
			LastSelected: last,
		})
	}
	return stats, nil
}
