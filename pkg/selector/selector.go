// Package selector picks the skill that fits a free-form utterance. Each
// skill contributes a rule built from its trigger phrases, regular expression
// patterns and the keywords of its name and description. Selection is
// deterministic: the highest score wins, ties go to the higher priority and
// then to the lexically smaller name.
package selector

import (
	"context"
	"sort"
	"strings"

	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/skills"
	"github.com/jingkaihe/skillet/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMinScore is the score below which no skill is selected. A single
// trigger phrase clears it, a single keyword does not.
const DefaultMinScore = 2.0

// Selection is a skill chosen for an utterance.
type Selection struct {
	Skill   *skills.Skill `json:"skill"`
	Score   float64       `json:"score"`
	Reasons []string      `json:"reasons"`
}

// Selector evaluates rules against utterances. It is safe for concurrent use.
type Selector struct {
	rules    []*Rule
	minScore float64
}

// Option configures a Selector.
type Option func(*Selector)

// WithMinScore overrides DefaultMinScore. Non-positive values are ignored.
func WithMinScore(score float64) Option {
	return func(s *Selector) {
		if score > 0 {
			s.minScore = score
		}
	}
}

// New compiles a rule per skill. Invalid triggers or patterns are logged and
// skipped.
func New(ctx context.Context, list []*skills.Skill, opts ...Option) *Selector {
	s := &Selector{minScore: DefaultMinScore}
	for _, opt := range opts {
		opt(s)
	}

	for _, skill := range list {
		if skill == nil {
			continue
		}
		rule, err := Compile(skill)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("skill", skill.Name).Warn("ignoring invalid triggers")
		}
		s.rules = append(s.rules, rule)
	}
	sort.Slice(s.rules, func(i, j int) bool { return s.rules[i].Skill.Name < s.rules[j].Skill.Name })
	return s
}

// FromMap is New over a discovery result.
func FromMap(ctx context.Context, m map[string]*skills.Skill, opts ...Option) *Selector {
	list := make([]*skills.Skill, 0, len(m))
	for _, skill := range m {
		list = append(list, skill)
	}
	return New(ctx, list, opts...)
}

// MinScore returns the configured threshold.
func (s *Selector) MinScore() float64 {
	return s.minScore
}

// Rank scores every skill against text and returns the ones with a positive
// score, best first. The threshold is not applied.
func (s *Selector) Rank(ctx context.Context, text string) []Selection {
	normalized := normalize(text)
	if normalized == "" {
		return nil
	}

	var out []Selection
	for _, r := range s.rules {
		m := r.Evaluate(text, normalized)
		if m.Score <= 0 {
			continue
		}
		out = append(out, Selection{Skill: r.Skill, Score: m.Score, Reasons: m.Reasons})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Skill.Priority != b.Skill.Priority {
			return a.Skill.Priority > b.Skill.Priority
		}
		return a.Skill.Name < b.Skill.Name
	})

	logger.G(ctx).WithField("candidates", len(out)).Debug("ranked skills")
	return out
}

// Select returns the best skill for text, or false when nothing scores at
// least the minimum. Empty text never selects a skill.
func (s *Selector) Select(ctx context.Context, text string) (*Selection, bool) {
	var (
		best *Selection
		ok   bool
	)
	_ = telemetry.WithSpan(ctx, "selector.select", func(ctx context.Context) error {
		ranked := s.Rank(ctx, text)
		if len(ranked) == 0 || ranked[0].Score < s.minScore {
			telemetry.SetAttributes(ctx, attribute.Bool("selected", false))
			return nil
		}

		best, ok = &ranked[0], true
		telemetry.SetAttributes(ctx,
			attribute.Bool("selected", true),
			attribute.String("skill", best.Skill.Name),
			attribute.Float64("score", best.Score),
		)
		logger.G(ctx).WithField("skill", best.Skill.Name).
			WithField("score", best.Score).
			WithField("reasons", strings.Join(best.Reasons, ", ")).
			Debug("skill selected")
		return nil
	}, attribute.Int("text.length", len(text)))

	return best, ok
}
