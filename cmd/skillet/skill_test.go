package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jingkaihe/skillet/pkg/skills"
	"github.com/jingkaihe/skillet/pkg/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRepoAndRef(t *testing.T) {
	tests := []struct {
		input string
		repo  string
		ref   string
	}{
		{"orgname/skills", "orgname/skills", ""},
		{"orgname/skills@v1.2.0", "orgname/skills", "v1.2.0"},
		{"git@github.com:org/skills@main", "git@github.com:org/skills", "main"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			repo, ref := parseRepoAndRef(tt.input)
			assert.Equal(t, tt.repo, repo)
			assert.Equal(t, tt.ref, ref)
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFindSkillDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "skills", "one", skills.SkillFileName), "x")
	writeFile(t, filepath.Join(root, "skills", "nested", "two", skills.SkillFileName), "x")
	writeFile(t, filepath.Join(root, ".git", "hooks", skills.SkillFileName), "x")
	writeFile(t, filepath.Join(root, "node_modules", "pkg", skills.SkillFileName), "x")
	writeFile(t, filepath.Join(root, "README.md"), "x")

	dirs, err := findSkillDirs(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(root, "skills", "one"),
		filepath.Join(root, "skills", "nested", "two"),
	}, dirs)
}

func TestCopyDir(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, skills.SkillFileName), "skill")
	writeFile(t, filepath.Join(src, "refs", "guide.md"), "guide")

	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, copyDir(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, skills.SkillFileName))
	require.NoError(t, err)
	assert.Equal(t, "skill", string(data))

	data, err = os.ReadFile(filepath.Join(dst, "refs", "guide.md"))
	require.NoError(t, err)
	assert.Equal(t, "guide", string(data))
}

func TestGetSkillsDir(t *testing.T) {
	dir, err := getSkillsDir(false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(".skillet", "skills"), dir)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	dir, err = getSkillsDir(true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".skillet", "skills"), dir)
}

func TestSkillRows(t *testing.T) {
	long := "Diagnose failures from the first symptom to a verified fix, covering logs, stack traces and flaky tests"
	rows := skillRows(map[string]*skills.Skill{
		"zeta": {Name: "zeta", Description: "last", Source: skills.SourceLocal},
		"alpha": {
			Name:        "alpha",
			Description: long,
			Source:      skills.SourceBuiltin,
			Template:    templates.Template{Sections: []templates.Section{{Name: "A"}, {Name: "B"}}},
		},
	})

	require.Len(t, rows, 2)
	assert.Equal(t, "alpha", rows[0][0])
	assert.Equal(t, string(skills.SourceBuiltin), rows[0][1])
	assert.Equal(t, "2", rows[0][2])
	assert.Len(t, []rune(rows[0][3]), 60)
	assert.True(t, len(rows[0][3]) < len(long))
	assert.Equal(t, []string{"zeta", string(skills.SourceLocal), "0", "last"}, rows[1])
}
