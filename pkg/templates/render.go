package templates

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"text/template"

	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/pkg/errors"
)

// DefaultPlaceholder stands in for sections without content.
const DefaultPlaceholder = "_No details provided._"

// Content is the material a template is filled with. Section keys are
// matched against section names with Key. When several keys match the same
// section, the one spelled exactly like the section wins, and otherwise the
// last in sorted order.
type Content struct {
	Title    string            `json:"title,omitempty" yaml:"title,omitempty"`
	Sections map[string]string `json:"sections,omitempty" yaml:"sections,omitempty"`
}

// RenderOption configures Render.
type RenderOption func(*renderConfig)

type renderConfig struct {
	placeholder string
	level       int
}

// WithPlaceholder replaces DefaultPlaceholder.
func WithPlaceholder(placeholder string) RenderOption {
	return func(c *renderConfig) {
		c.placeholder = placeholder
	}
}

// WithHeadingLevel renders every section at level instead of the level it
// was declared with.
func WithHeadingLevel(level int) RenderOption {
	return func(c *renderConfig) {
		if level >= 1 && level <= 6 {
			c.level = level
		}
	}
}

type renderedSection struct {
	Level int
	Name  string
	Body  string
}

type renderData struct {
	Title      string
	TitleLevel int
	Sections   []renderedSection
}

var outputTemplate = template.Must(template.New("skill").Funcs(template.FuncMap{
	"heading": func(level int) string { return strings.Repeat("#", level) },
}).Parse(`{{- if .Title}}{{heading .TitleLevel}} {{.Title}}

{{end}}
{{- range $i, $s := .Sections}}
{{- if $i}}

{{end}}
{{- heading $s.Level}} {{$s.Name}}

{{$s.Body}}
{{- end}}
`))

// Render fills tmpl with content. Every section of the template is emitted
// in template order; sections without content get the placeholder. Content
// keys that match no section are ignored.
func Render(ctx context.Context, tmpl Template, content Content, opts ...RenderOption) (string, error) {
	cfg := renderConfig{placeholder: DefaultPlaceholder}
	for _, opt := range opts {
		opt(&cfg)
	}

	bodies := sectionBodies(ctx, tmpl, content.Sections)

	data := renderData{Title: strings.TrimSpace(content.Title)}
	minLevel := 0
	for _, s := range tmpl.Sections {
		level := s.Level
		if cfg.level > 0 {
			level = cfg.level
		}
		if level <= 0 {
			level = DefaultSectionLevel
		}
		if minLevel == 0 || level < minLevel {
			minLevel = level
		}

		body := bodies[Key(s.Name)]
		if body == "" {
			body = cfg.placeholder
		}
		data.Sections = append(data.Sections, renderedSection{Level: level, Name: s.Name, Body: body})
	}

	data.TitleLevel = minLevel - 1
	if data.TitleLevel < 1 {
		data.TitleLevel = 1
	}

	var buf bytes.Buffer
	if err := outputTemplate.Execute(&buf, data); err != nil {
		return "", errors.Wrap(err, "failed to render template")
	}
	return strings.TrimRight(buf.String(), "\n") + "\n", nil
}

// sectionBodies maps section keys to trimmed bodies.
func sectionBodies(ctx context.Context, tmpl Template, sections map[string]string) map[string]string {
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	bodies := make(map[string]string, len(names))
	exact := make(map[string]bool, len(names))
	for _, name := range names {
		i := tmpl.Index(name)
		if i < 0 {
			logger.G(ctx).WithField("section", name).Debug("ignoring content for undeclared section")
			continue
		}

		k := Key(name)
		if exact[k] {
			logger.G(ctx).WithField("section", name).Debug("ignoring duplicate content for section")
			continue
		}
		exact[k] = name == tmpl.Sections[i].Name
		bodies[k] = strings.TrimSpace(sections[name])
	}
	return bodies
}
