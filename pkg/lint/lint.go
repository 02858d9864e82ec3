// Package lint checks skill files for documentation consistency: required
// front-matter, canonical forms that round-trip, canonical formatting, unique
// names and template sections reproduced in the same order in READMEs.
package lint

import (
	"bytes"
	"context"
	"io/fs"
	"regexp"
	"sort"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/jingkaihe/skillet/pkg/frontmatter"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/selector"
	"github.com/jingkaihe/skillet/pkg/skills"
	"github.com/jingkaihe/skillet/pkg/telemetry"
	"github.com/jingkaihe/skillet/pkg/templates"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// ReadmeFileName is checked next to each skill and in its parent directory.
const ReadmeFileName = "README.md"

var kebabCase = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Linter runs the lint rules over skill files.
type Linter struct {
	fs fileSystem
}

// Option configures a Linter.
type Option func(*Linter)

// WithFS lints files inside fsys instead of the working tree.
func WithFS(fsys fs.FS) Option {
	return func(l *Linter) {
		l.fs = ioFS{fsys: fsys}
	}
}

// New creates a Linter over the working tree.
func New(opts ...Option) *Linter {
	l := &Linter{fs: osFS{}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lint expands patterns into skill files and checks each of them.
func (l *Linter) Lint(ctx context.Context, patterns ...string) (*Report, error) {
	return telemetry.WithSpanValue(ctx, "lint.run", func(ctx context.Context) (*Report, error) {
		files, err := l.Expand(patterns...)
		if err != nil {
			return nil, err
		}

		report := &Report{Files: files}
		names := make(map[string]string)
		readmes := make(map[string][]byte)

		for _, path := range files {
			content, err := l.fs.ReadFile(path)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to read %s", path)
			}

			skill := l.checkFile(report, path, content)
			if skill == nil {
				continue
			}

			if first, ok := names[skill.Name]; ok {
				report.add(path, RuleDuplicateName, SeverityError, "name %q is already declared in %s", skill.Name, first)
			} else {
				names[skill.Name] = path
			}

			l.checkReadmes(report, path, skill, readmes)
		}

		report.sort()
		errs, warnings := report.Count()
		telemetry.SetAttributes(ctx,
			attribute.Int("lint.files", len(files)),
			attribute.Int("lint.errors", errs),
			attribute.Int("lint.warnings", warnings),
		)
		logger.G(ctx).WithField("files", len(files)).
			WithField("errors", errs).
			WithField("warnings", warnings).
			Debug("lint finished")
		return report, nil
	})
}

// CheckContent runs the single-file rules over content.
func CheckContent(path string, content []byte) []Issue {
	report := &Report{}
	New().checkFile(report, path, content)
	return report.Issues
}

// checkFile runs the single-file rules. It returns the parsed skill when the
// front-matter is usable.
func (l *Linter) checkFile(report *Report, path string, content []byte) *skills.Skill {
	doc, err := frontmatter.Parse(content)
	if err != nil {
		report.add(path, RuleFrontMatterSyntax, SeverityError, "%s", err.Error())
		return nil
	}

	meta, err := skills.DecodeMetadata(doc.Map())
	if err != nil {
		report.add(path, RuleFrontMatterSyntax, SeverityError, "%s", errors.Cause(err).Error())
		return nil
	}

	missing := false
	if meta.Name == "" {
		report.add(path, RuleFrontMatterRequired, SeverityError, "name must not be empty")
		missing = true
	}
	if meta.Description == "" {
		report.add(path, RuleFrontMatterRequired, SeverityError, "description must not be empty")
		missing = true
	}

	formatted, err := frontmatter.Format(content)
	switch {
	case errors.Is(err, frontmatter.ErrRoundTrip):
		report.add(path, RuleRoundTrip, SeverityError, "%s", err.Error())
	case err == nil && !bytes.Equal(formatted, content):
		report.Issues = append(report.Issues, Issue{
			Path:     path,
			Rule:     RuleFormat,
			Severity: SeverityWarning,
			Message:  "file is not in canonical form, run skillet fmt --write",
			Diff:     udiff.Unified(path, path+" (formatted)", string(content), string(formatted)),
		})
	}

	if missing {
		return nil
	}

	if !kebabCase.MatchString(meta.Name) {
		report.add(path, RuleNameFormat, SeverityWarning, "name %q is not kebab-case", meta.Name)
	}

	skill, err := skills.Parse(content)
	if err != nil {
		report.add(path, RuleFrontMatterSyntax, SeverityError, "%s", err.Error())
		return nil
	}
	skill.Path = path

	if skill.Template.Empty() {
		report.add(path, RuleTemplateMissing, SeverityWarning, "no response template found")
	}

	if _, err := selector.Compile(skill); err != nil {
		report.add(path, RuleTriggerSyntax, SeverityError, "%s", strings.ReplaceAll(strings.TrimSpace(err.Error()), "\n", " "))
	}

	return skill
}

// checkReadmes compares the skill's template with the templates reproduced
// in README.md next to the skill and in the directory above it.
func (l *Linter) checkReadmes(report *Report, path string, skill *skills.Skill, cache map[string][]byte) {
	if skill.Template.Empty() {
		return
	}

	skillDir := l.fs.Dir(path)
	for _, dir := range []string{skillDir, l.fs.Dir(skillDir)} {
		readmePath := l.fs.Join(dir, ReadmeFileName)
		content, ok := cache[readmePath]
		if !ok {
			content, _ = l.fs.ReadFile(readmePath)
			cache[readmePath] = content
		}
		if len(content) == 0 {
			continue
		}

		for _, reproduced := range matchingTemplates(skill, content, dir == skillDir) {
			compareOrder(report, path, readmePath, skill.Template, reproduced)
		}
	}
}

// matchingTemplates picks the README templates that reproduce the skill's
// template: those whose heading names the skill, or every template of a
// README that sits in the skill's own directory.
func matchingTemplates(skill *skills.Skill, readme []byte, ownDir bool) []templates.Template {
	all := templates.ExtractAll(readme)

	name := skill.Name
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	key := templates.Key(name)

	var named []templates.Template
	for _, t := range all {
		if key != "" && strings.Contains(templates.Key(t.Title), key) {
			named = append(named, t)
		}
	}
	if len(named) > 0 || !ownDir {
		return named
	}
	return all
}

func compareOrder(report *Report, path, readmePath string, want, got templates.Template) {
	var expected, actual []string
	for _, s := range want.Sections {
		if got.Index(s.Name) >= 0 {
			expected = append(expected, s.Name)
		}
	}
	for _, s := range got.Sections {
		if want.Index(s.Name) >= 0 {
			actual = append(actual, s.Name)
		} else {
			report.add(path, RuleTemplateOrder, SeverityWarning, "%s lists section %q which the skill template does not declare", readmePath, s.Name)
		}
	}

	for i := range expected {
		if templates.Key(expected[i]) != templates.Key(actual[i]) {
			report.add(path, RuleTemplateOrder, SeverityError,
				"%s lists template sections in a different order: expected %q at position %d, found %q",
				readmePath, expected[i], i+1, actual[i])
			return
		}
	}
}

// Expand resolves files, directories and doublestar globs into a sorted list
// of files. Directories are searched recursively for SKILL.md.
func (l *Linter) Expand(patterns ...string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{"."}
	}

	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, pattern := range patterns {
		if info, err := l.fs.Stat(pattern); err == nil {
			if !info.IsDir() {
				add(pattern)
				continue
			}
			if err := l.walk(pattern, add); err != nil {
				return nil, err
			}
			continue
		}

		if !hasMeta(pattern) {
			return nil, errors.Errorf("path %q does not exist", pattern)
		}

		matches, err := l.fs.Glob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid pattern %q", pattern)
		}
		for _, m := range matches {
			if info, err := l.fs.Stat(m); err == nil && info.IsDir() {
				if err := l.walk(m, add); err != nil {
					return nil, err
				}
				continue
			}
			add(m)
		}
	}

	sort.Strings(files)
	return files, nil
}

func (l *Linter) walk(root string, add func(string)) error {
	err := l.fs.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != root && skipDir(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() == skills.SkillFileName {
			add(p)
		}
		return nil
	})
	return errors.Wrapf(err, "failed to walk %s", root)
}

func skipDir(name string) bool {
	return name == "node_modules" || (strings.HasPrefix(name, ".") && name != ".skillet")
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
