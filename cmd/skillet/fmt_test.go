package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jingkaihe/skillet/pkg/frontmatter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unformattedSkill = "---\r\ndescription:   Explain things\r\nname: explainer\r\n---\r\n# Explainer\r\n\r\n\r\n"

func TestFormatFileCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "SKILL.md")
	writeFile(t, path, unformattedSkill)

	result, err := formatFile(path, false)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Contains(t, result.Diff, "+name: explainer")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, unformattedSkill, string(data), "check mode must not modify the file")
}

func TestFormatFileWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "SKILL.md")
	writeFile(t, path, unformattedSkill)

	result, err := formatFile(path, true)
	require.NoError(t, err)
	assert.True(t, result.Changed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "---\nname: explainer\ndescription: Explain things\n---\n"))
	assert.NotContains(t, string(data), "\r")
	assert.True(t, strings.HasSuffix(string(data), "# Explainer\n"))

	result, err = formatFile(path, false)
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Empty(t, result.Diff)
}

func TestFormatFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := formatFile(filepath.Join(dir, "missing.md"), false)
	assert.Error(t, err)

	path := filepath.Join(dir, "SKILL.md")
	writeFile(t, path, "# no front-matter\n")
	_, err = formatFile(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to format")

	_, err = formatFile(path, true)
	require.Error(t, err)
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "# no front-matter\n", string(data))
}

func TestFormatFileLeavesLossyFileAlone(t *testing.T) {
	content := "---\nname: splitter\ndescription: \"before\\n---\\nafter\"\n---\n\nbody\n"
	path := filepath.Join(t.TempDir(), "SKILL.md")
	writeFile(t, path, content)

	_, err := formatFile(path, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, frontmatter.ErrRoundTrip)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}
