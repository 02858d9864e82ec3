package history

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// timeFormat is fixed width so that timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// JSONField stores T as a JSON text column.
type JSONField[T any] struct {
	Data T
}

// Scan implements sql.Scanner.
func (j *JSONField[T]) Scan(value any) error {
	if value == nil {
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return errors.Errorf("cannot scan %T into JSONField", value)
		}
		b = []byte(s)
	}
	return json.Unmarshal(b, &j.Data)
}

// Value implements driver.Valuer.
func (j JSONField[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

type dbSelection struct {
	ID        string              `db:"id"`
	Text      string              `db:"text"`
	Skill     string              `db:"skill"`
	Score     float64             `db:"score"`
	Reasons   JSONField[[]string] `db:"reasons"`
	Surface   string              `db:"surface"`
	CreatedAt string              `db:"created_at"`
}

func (d dbSelection) toEntry() (Entry, error) {
	created, err := time.Parse(timeFormat, d.CreatedAt)
	if err != nil {
		return Entry{}, errors.Wrapf(err, "invalid timestamp for selection %s", d.ID)
	}
	return Entry{
		ID:        d.ID,
		Text:      d.Text,
		Skill:     d.Skill,
		Score:     d.Score,
		Reasons:   d.Reasons.Data,
		Surface:   Surface(d.Surface),
		CreatedAt: created,
	}, nil
}

type dbSkillStat struct {
	Skill        string  `db:"skill"`
	Count        int     `db:"count"`
	AvgScore     float64 `db:"avg_score"`
	LastSelected string  `db:"last_selected"`
}
