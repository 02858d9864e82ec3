package lint

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jingkaihe/skillet/pkg/skills"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func skillFile(name, description, body string) string {
	return "---\nname: " + name + "\ndescription: " + description + "\n---\n\n" + body
}

const responseTemplate = "# Skill\n\n## Response Template\n\n### Summary\n\n### Details\n\n### Next Steps\n"

func write(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func rulesFor(report *Report, path string) []string {
	var rules []string
	for _, i := range report.Issues {
		if i.Path == path {
			rules = append(rules, i.Rule)
		}
	}
	return rules
}

func TestLintBuiltinSkills(t *testing.T) {
	report, err := New(WithFS(skills.BuiltinFS())).Lint(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"code-explainer/SKILL.md",
		"debug-helper/SKILL.md",
		"performance-guide/SKILL.md",
	}, report.Files)
	assert.Empty(t, report.Issues)
	assert.NoError(t, report.Err(true))
}

func TestLintRules(t *testing.T) {
	dir := t.TempDir()

	good := write(t, filepath.Join(dir, "good", "SKILL.md"), skillFile("good", "A good skill", responseTemplate))
	write(t, filepath.Join(dir, "good", "README.md"), "# Good\n\n## Response Template\n\n```markdown\n### Summary\n### Details\n### Next Steps\n```\n")

	ordered := write(t, filepath.Join(dir, "ordered", "SKILL.md"), skillFile("ordered", "Ordered skill", responseTemplate))
	write(t, filepath.Join(dir, "ordered", "README.md"), "## Template\n\n```\n### Details\n### Summary\n### Extra\n```\n")

	missing := write(t, filepath.Join(dir, "missing", "SKILL.md"), "---\nname: \"\"\ndescription: Has no name\n---\n\nbody\n")
	unformatted := write(t, filepath.Join(dir, "unformatted", "SKILL.md"), "---\ndescription: d\nname: fmt-me\n---\nbody")
	dupe := write(t, filepath.Join(dir, "zz-dupe", "SKILL.md"), skillFile("good", "Same name again", responseTemplate))
	badName := write(t, filepath.Join(dir, "bad-name", "SKILL.md"), skillFile("Bad_Name", "Badly named", responseTemplate))
	broken := write(t, filepath.Join(dir, "broken", "SKILL.md"), "---\nname: broken\n")
	badTrigger := write(t, filepath.Join(dir, "bad-trigger", "SKILL.md"),
		"---\nname: bad-trigger\ndescription: Bad trigger\npatterns:\n  - (unclosed\n---\n\n"+responseTemplate)

	report, err := New().Lint(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, report.Files, 8)

	assert.Empty(t, rulesFor(report, good))
	assert.Equal(t, []string{RuleTemplateOrder, RuleTemplateOrder}, rulesFor(report, ordered))
	assert.Equal(t, []string{RuleFrontMatterRequired}, rulesFor(report, missing))
	assert.ElementsMatch(t, []string{RuleFormat, RuleTemplateMissing}, rulesFor(report, unformatted))
	assert.Equal(t, []string{RuleDuplicateName}, rulesFor(report, dupe))
	assert.Equal(t, []string{RuleNameFormat}, rulesFor(report, badName))
	assert.Equal(t, []string{RuleFrontMatterSyntax}, rulesFor(report, broken))
	assert.Equal(t, []string{RuleTriggerSyntax}, rulesFor(report, badTrigger))

	for _, i := range report.Issues {
		switch i.Rule {
		case RuleFormat:
			assert.Equal(t, SeverityWarning, i.Severity)
			assert.Contains(t, i.Diff, "(formatted)")
		case RuleTemplateOrder:
			if i.Severity == SeverityError {
				assert.Contains(t, i.Message, `expected "Summary" at position 1, found "Details"`)
			} else {
				assert.Contains(t, i.Message, `"Extra"`)
			}
		case RuleDuplicateName:
			assert.Contains(t, i.Message, good)
		}
	}

	errs, warnings := report.Count()
	assert.Equal(t, 5, errs)
	assert.Equal(t, 4, warnings)
}

func TestLintParentReadme(t *testing.T) {
	dir := t.TempDir()
	path := write(t, filepath.Join(dir, "skills", "reviewer", "SKILL.md"), skillFile("reviewer", "Reviews code", responseTemplate))
	write(t, filepath.Join(dir, "skills", "README.md"), "# Skills\n\n"+
		"## Reviewer Template\n\n```\n### Summary\n### Next Steps\n### Details\n```\n\n"+
		"## Other Template\n\n```\n### Next Steps\n### Summary\n```\n")

	report, err := New().Lint(context.Background(), filepath.Join(dir, "skills", "**", "SKILL.md"))
	require.NoError(t, err)
	require.Len(t, report.Issues, 1)
	assert.Equal(t, path, report.Issues[0].Path)
	assert.Equal(t, RuleTemplateOrder, report.Issues[0].Rule)
	assert.Contains(t, report.Issues[0].Message, `expected "Details" at position 2, found "Next Steps"`)
}

func TestExpand(t *testing.T) {
	dir := t.TempDir()
	a := write(t, filepath.Join(dir, "a", "SKILL.md"), "")
	b := write(t, filepath.Join(dir, "nested", "b", "SKILL.md"), "")
	local := write(t, filepath.Join(dir, ".skillet", "skills", "c", "SKILL.md"), "")
	write(t, filepath.Join(dir, ".git", "SKILL.md"), "")
	write(t, filepath.Join(dir, "node_modules", "x", "SKILL.md"), "")
	readme := write(t, filepath.Join(dir, "a", "README.md"), "")

	l := New()

	files, err := l.Expand(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b, local}, files)

	files, err = l.Expand(filepath.Join(dir, "nested", "**", "*.md"), readme, a)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a, b, readme}, files)

	_, err = l.Expand(filepath.Join(dir, "does-not-exist"))
	assert.ErrorContains(t, err, "does not exist")

	_, err = l.Expand(filepath.Join(dir, "[unclosed"))
	assert.ErrorContains(t, err, "invalid pattern")
}

func TestReportErr(t *testing.T) {
	report := &Report{}
	assert.NoError(t, report.Err(true))

	report.add("a.md", RuleFormat, SeverityWarning, "not canonical")
	assert.NoError(t, report.Err(false))
	assert.Error(t, report.Err(true))

	report.add("b.md", RuleFrontMatterRequired, SeverityError, "name must not be empty")
	err := report.Err(false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b.md: [frontmatter-required] name must not be empty")
	assert.NotContains(t, err.Error(), "a.md")
}

func TestCheckContent(t *testing.T) {
	issues := CheckContent("inline.md", []byte(skillFile("inline", "Inline skill", responseTemplate)))
	assert.Empty(t, issues)

	issues = CheckContent("inline.md", []byte("# no front-matter\n"))
	require.Len(t, issues, 1)
	assert.Equal(t, RuleFrontMatterSyntax, issues[0].Rule)
}

func TestCheckContentRoundTrip(t *testing.T) {
	// The canonical block scalar puts "---" on its own line, which would
	// close the front-matter early.
	content := "---\nname: splitter\ndescription: \"before\\n---\\nafter\"\n---\n\n" + responseTemplate

	issues := CheckContent("splitter.md", []byte(content))
	require.Len(t, issues, 1)
	assert.Equal(t, RuleRoundTrip, issues[0].Rule)
	assert.Equal(t, SeverityError, issues[0].Severity)
	assert.Contains(t, issues[0].Message, "front-matter values changed")
	assert.Empty(t, issues[0].Diff)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := write(t, filepath.Join(dir, "skill", "SKILL.md"), skillFile("skill", "A skill", responseTemplate))

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ctx, span := tp.Tracer("test").Start(context.Background(), "watch")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reports := make(chan *Report, 10)
	done := make(chan error, 1)
	go func() {
		done <- New().Watch(ctx, 20*time.Millisecond, func(r *Report, err error) {
			if err == nil {
				reports <- r
			}
		}, dir)
	}()

	select {
	case r := <-reports:
		assert.Empty(t, r.Issues)
	case <-time.After(3 * time.Second):
		t.Fatal("no initial report")
	}

	write(t, path, "---\nname: skill\n---\n\nbody\n")

	select {
	case r := <-reports:
		assert.Equal(t, []string{RuleFrontMatterRequired}, rulesFor(r, path))
	case <-time.After(3 * time.Second):
		t.Fatal("no report after change")
	}

	cancel()
	assert.NoError(t, <-done)

	span.End()
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	var reruns int
	for _, e := range spans[0].Events() {
		if e.Name == "lint.rerun" {
			reruns++
		}
	}
	assert.GreaterOrEqual(t, reruns, 1)
}

func TestWatchRequiresWorkingTree(t *testing.T) {
	err := New(WithFS(skills.BuiltinFS())).Watch(context.Background(), 0, func(*Report, error) {})
	assert.ErrorContains(t, err, "only supported")
}

func TestWatchRoots(t *testing.T) {
	dir := t.TempDir()
	file := write(t, filepath.Join(dir, "a", "SKILL.md"), "")

	roots := watchRoots([]string{dir, file, filepath.Join(dir, "b", "**", "SKILL.md")})
	assert.Equal(t, []string{dir, filepath.Join(dir, "a"), filepath.Join(dir, "b")}, roots)
}
