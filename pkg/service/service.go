// Package service ties the skill catalog, the selector, the template
// renderer and the selection history together for the long-running surfaces
// and the CLI.
package service

import (
	"context"
	"sync"

	"github.com/jingkaihe/skillet/pkg/history"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/selector"
	"github.com/jingkaihe/skillet/pkg/skills"
	"github.com/jingkaihe/skillet/pkg/telemetry"
	"github.com/jingkaihe/skillet/pkg/templates"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// ErrSkillNotFound is returned when a named skill is not in the catalog.
var ErrSkillNotFound = errors.New("skill not found")

// Recorder persists selection outcomes. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, text string, sel *selector.Selection, surface history.Surface) (history.Entry, error)
}

// Summary is the listing view of a skill.
type Summary struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
	Path        string   `json:"path"`
	Sections    []string `json:"sections"`
}

// Summarize returns the listing view of s.
func Summarize(s *skills.Skill) Summary {
	return Summary{
		Name:        s.Name,
		Description: s.Description,
		Source:      string(s.Source),
		Path:        s.Path,
		Sections:    s.Template.Names(),
	}
}

// Option configures a Service.
type Option func(*Service)

// WithMinScore sets the selector threshold.
func WithMinScore(score float64) Option {
	return func(s *Service) {
		s.selectorOpts = append(s.selectorOpts, selector.WithMinScore(score))
	}
}

// WithRecorder records every selection made through Select.
func WithRecorder(r Recorder) Option {
	return func(s *Service) {
		s.recorder = r
	}
}

// Service answers selection and render requests against a catalog. The
// selector is rebuilt whenever the catalog reloads.
type Service struct {
	catalog      *skills.Catalog
	recorder     Recorder
	selectorOpts []selector.Option

	mu  sync.RWMutex
	sel *selector.Selector
}

// New builds a service over catalog and subscribes to its reloads.
func New(ctx context.Context, catalog *skills.Catalog, opts ...Option) *Service {
	s := &Service{catalog: catalog}
	for _, opt := range opts {
		opt(s)
	}

	s.rebuild(ctx, catalog.Snapshot())
	catalog.OnReload(func(found map[string]*skills.Skill) {
		s.rebuild(context.WithoutCancel(ctx), found)
	})
	return s
}

func (s *Service) rebuild(ctx context.Context, found map[string]*skills.Skill) {
	sel := selector.FromMap(ctx, found, s.selectorOpts...)

	s.mu.Lock()
	s.sel = sel
	s.mu.Unlock()

	logger.G(ctx).WithField("skills", len(found)).Debug("selector rebuilt")
}

func (s *Service) current() *selector.Selector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sel
}

// Catalog returns the underlying catalog.
func (s *Service) Catalog() *skills.Catalog {
	return s.catalog
}

// List returns summaries of every skill, sorted by name.
func (s *Service) List() []Summary {
	list := s.catalog.List()
	out := make([]Summary, 0, len(list))
	for _, sk := range list {
		out = append(out, Summarize(sk))
	}
	return out
}

// Get returns the named skill or ErrSkillNotFound.
func (s *Service) Get(name string) (*skills.Skill, error) {
	sk, ok := s.catalog.Get(name)
	if !ok {
		return nil, errors.Wrapf(ErrSkillNotFound, "%q", name)
	}
	return sk, nil
}

// Select picks the skill for text. The outcome is recorded when a recorder
// is attached; a failed write is logged and does not fail the selection.
func (s *Service) Select(ctx context.Context, text string, surface history.Surface) (*selector.Selection, bool) {
	sel, ok := s.current().Select(ctx, text)

	if s.recorder != nil {
		if _, err := s.recorder.Record(ctx, text, sel, surface); err != nil {
			logger.G(ctx).WithError(err).Warn("failed to record selection")
			telemetry.RecordError(ctx, err)
		}
	}
	return sel, ok
}

// Rank scores every skill against text.
func (s *Service) Rank(ctx context.Context, text string) []selector.Selection {
	return s.current().Rank(ctx, text)
}

// Render fills the named skill's template with content.
func (s *Service) Render(ctx context.Context, name string, content templates.Content, opts ...templates.RenderOption) (string, error) {
	sk, err := s.Get(name)
	if err != nil {
		return "", err
	}

	return telemetry.WithSpanValue(ctx, "service.render", func(ctx context.Context) (string, error) {
		return templates.Render(ctx, sk.Template, content, opts...)
	}, attribute.String("skill", name))
}
