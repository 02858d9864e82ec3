package presenter

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPresenter() (*TerminalPresenter, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewWithOptions(&out, &errOut, ColorNever), &out, &errOut
}

func TestNew(t *testing.T) {
	p := New()
	assert.NotNil(t, p)
	assert.Equal(t, os.Stdout, p.output)
	assert.Equal(t, os.Stderr, p.errorOutput)
	assert.False(t, p.quiet)
}

func TestDetectColorMode(t *testing.T) {
	tests := []struct {
		name         string
		noColor      string
		skilletColor string
		expected     ColorMode
	}{
		{"NO_COLOR wins", "1", "always", ColorNever},
		{"always", "", "always", ColorAlways},
		{"force", "", "force", ColorAlways},
		{"never", "", "never", ColorNever},
		{"off", "", "off", ColorNever},
		{"auto", "", "auto", ColorAuto},
		{"unset", "", "", ColorAuto},
		{"unknown value", "", "rainbow", ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NO_COLOR", tt.noColor)
			t.Setenv("SKILLET_COLOR", tt.skilletColor)
			if tt.noColor == "" {
				os.Unsetenv("NO_COLOR")
			}

			assert.Equal(t, tt.expected, detectColorMode())
		})
	}
}

func TestError(t *testing.T) {
	p, _, errOut := newTestPresenter()

	p.Error(errors.New("missing description"), "lint failed")
	assert.Contains(t, errOut.String(), "[ERROR] lint failed: missing description")

	errOut.Reset()
	p.Error(errors.New("missing description"), "")
	assert.Equal(t, "[ERROR] missing description\n", errOut.String())

	errOut.Reset()
	p.Error(nil, "ignored")
	assert.Empty(t, errOut.String())
}

func TestMessages(t *testing.T) {
	p, out, _ := newTestPresenter()

	p.Success("formatted 2 files")
	p.Warning("no skill matched")
	p.Info("3 skills loaded")
	p.Section("Skills")
	p.Separator()

	result := out.String()
	assert.Contains(t, result, "✓ formatted 2 files\n")
	assert.Contains(t, result, "⚠ no skill matched\n")
	assert.Contains(t, result, "3 skills loaded\n")
	assert.Contains(t, result, "Skills\n------\n")
	assert.Contains(t, result, strings.Repeat("-", 60))
}

func TestQuietMode(t *testing.T) {
	p, out, errOut := newTestPresenter()
	assert.False(t, p.IsQuiet())

	p.SetQuiet(true)
	assert.True(t, p.IsQuiet())

	p.Success("done")
	p.Warning("careful")
	p.Info("info")
	p.Section("Title")
	p.Separator()
	p.Table([]string{"NAME"}, [][]string{{"code-explainer"}})
	p.Diff("-a\n+b\n")
	assert.Empty(t, out.String())

	p.Print("primary output\n")
	assert.Equal(t, "primary output\n", out.String())

	p.Error(errors.New("still shown"), "")
	assert.Contains(t, errOut.String(), "still shown")
}

func TestTable(t *testing.T) {
	p, out, _ := newTestPresenter()

	p.Table(
		[]string{"NAME", "SOURCE", "DESCRIPTION"},
		[][]string{
			{"code-explainer", "builtin", "Explain code functionality"},
			{"debug-helper", "local", "Debug errors"},
		},
	)

	result := out.String()
	for _, want := range []string{"NAME", "SOURCE", "DESCRIPTION", "code-explainer", "builtin", "debug-helper", "Debug errors"} {
		assert.Contains(t, result, want)
	}
	lines := strings.Split(strings.TrimSpace(result), "\n")
	assert.Greater(t, len(lines), 3)

	headerLine := -1
	rowLine := -1
	for i, line := range lines {
		if strings.Contains(line, "NAME") {
			headerLine = i
		}
		if strings.Contains(line, "code-explainer") {
			rowLine = i
		}
	}
	assert.Less(t, headerLine, rowLine)
}

func TestDiff(t *testing.T) {
	p, out, _ := newTestPresenter()

	diff := "--- a/SKILL.md\n+++ b/SKILL.md\n@@ -1,2 +1,2 @@\n-name: x\n+name: y\n context\n"
	p.Diff(diff)
	assert.Equal(t, diff, out.String())

	out.Reset()
	p.Diff("")
	assert.Empty(t, out.String())
}

func TestMarkdown(t *testing.T) {
	p, out, _ := newTestPresenter()

	err := p.Markdown("## What It Does\n\nValidates bearer tokens.\n")
	require.NoError(t, err)

	result := out.String()
	assert.Contains(t, result, "What It Does")
	assert.Contains(t, result, "Validates bearer tokens.")
}

func TestColorModeConfiguration(t *testing.T) {
	oldNoColor := color.NoColor
	defer func() { color.NoColor = oldNoColor }()

	p := NewWithOptions(&bytes.Buffer{}, &bytes.Buffer{}, ColorNever)
	assert.True(t, color.NoColor)
	assert.False(t, p.colorsEnabled())

	p = NewWithOptions(&bytes.Buffer{}, &bytes.Buffer{}, ColorAlways)
	assert.False(t, color.NoColor)
	assert.True(t, p.colorsEnabled())
}

func TestGlobalFunctions(t *testing.T) {
	p, out, errOut := newTestPresenter()
	prev := SetDefault(p)
	defer SetDefault(prev)

	Error(errors.New("boom"), "render")
	assert.Contains(t, errOut.String(), "render: boom")

	Success("ok")
	Warning("warn")
	Info("info")
	Section("Head")
	Separator()
	Table([]string{"SKILL"}, [][]string{{"performance-guide"}})
	Diff("+added\n")
	Print("raw\n")
	require.NoError(t, Markdown("plain text"))

	result := out.String()
	for _, want := range []string{"✓ ok", "⚠ warn", "info", "Head", "performance-guide", "+added", "raw", "plain text"} {
		assert.Contains(t, result, want)
	}

	SetQuiet(true)
	assert.True(t, IsQuiet())
	SetQuiet(false)
	assert.False(t, IsQuiet())
}
