package skills

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSkillFile writes content as dir/<entry>/SKILL.md and returns the
// skill directory.
func writeSkillFile(t *testing.T, dir, entry, content string) string {
	t.Helper()
	skillDir := filepath.Join(dir, entry)
	require.NoError(t, os.MkdirAll(skillDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skillDir, SkillFileName), []byte(content), 0o644))
	return skillDir
}

func writeSkill(t *testing.T, dir, name, description string) string {
	t.Helper()
	return writeSkillFile(t, dir, name, "---\nname: "+name+"\ndescription: "+description+"\n---\n\n# "+name+"\n")
}

func discover(t *testing.T, opts ...Option) map[string]*Skill {
	t.Helper()
	discovery, err := NewDiscovery(opts...)
	require.NoError(t, err)
	found, err := discovery.DiscoverSkills(context.Background())
	require.NoError(t, err)
	return found
}

func TestNewDiscovery(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		discovery, err := NewDiscovery()
		require.NoError(t, err)
		require.Len(t, discovery.skillDirs, 2)
		assert.True(t, discovery.builtin)
		assert.Equal(t, SourceLocal, discovery.skillDirs[0].source)
		assert.Equal(t, SourceGlobal, discovery.skillDirs[1].source)
	})

	t.Run("explicit dirs drop the defaults", func(t *testing.T) {
		dirs := []string{"/srv/skills", "/opt/skills"}
		discovery, err := NewDiscovery(WithSkillDirs(dirs...))
		require.NoError(t, err)
		assert.Equal(t, dirs, discovery.Dirs())
		assert.False(t, discovery.builtin)
	})
}

const reviewerSkill = `---
name: pr-reviewer
description: Review pull requests for correctness and style
triggers:
  - review *
priority: 2
---

# PR Reviewer

## Review Template

` + "```markdown" + `
## [Pull Request]

### Summary
### Risks
### Verdict
` + "```" + `
`

func TestDiscoverSkills(t *testing.T) {
	dir := t.TempDir()
	reviewerDir := writeSkillFile(t, dir, "pr-reviewer", reviewerSkill)
	writeSkill(t, dir, "changelog", "Draft changelog entries")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a skill"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty"), 0o755))

	found := discover(t, WithSkillDirs(dir))
	require.Len(t, found, 2)

	reviewer := found["pr-reviewer"]
	require.NotNil(t, reviewer)
	assert.Equal(t, "Review pull requests for correctness and style", reviewer.Description)
	assert.Equal(t, []string{"review *"}, reviewer.Triggers)
	assert.Equal(t, 2, reviewer.Priority)
	assert.Equal(t, []string{"Summary", "Risks", "Verdict"}, reviewer.Template.Names())
	assert.Equal(t, reviewerDir, reviewer.Directory)
	assert.Equal(t, filepath.Join(reviewerDir, SkillFileName), reviewer.Path)
	assert.Equal(t, SourceLocal, reviewer.Source)
	assert.True(t, len(reviewer.Content) > 0 && reviewer.Content[0] == '#', "content starts at the body")

	assert.Equal(t, "Draft changelog entries", found["changelog"].Description)
}

func TestDiscoverSkillsSymlinks(t *testing.T) {
	root := t.TempDir()
	skillsDir := filepath.Join(root, "skills")
	require.NoError(t, os.MkdirAll(skillsDir, 0o755))

	target := writeSkill(t, filepath.Join(root, "shared"), "linked", "Reached through a symlink")
	linked := filepath.Join(skillsDir, "linked")
	require.NoError(t, os.Symlink(target, linked))

	file := filepath.Join(root, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	require.NoError(t, os.Symlink(file, filepath.Join(skillsDir, "to-file")))
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(skillsDir, "dangling")))

	writeSkill(t, skillsDir, "regular", "Plain directory")

	found := discover(t, WithSkillDirs(skillsDir))
	assert.ElementsMatch(t, []string{"linked", "regular"}, SortedNames(found))
	assert.Equal(t, linked, found["linked"].Directory)
}

func TestDiscoverSkillsSkipsInvalid(t *testing.T) {
	dir := t.TempDir()
	writeSkillFile(t, dir, "no-name", "---\ndescription: Missing name\n---\n\nBody.\n")
	writeSkillFile(t, dir, "no-desc", "---\nname: no-desc\n---\n\nBody.\n")
	writeSkillFile(t, dir, "no-frontmatter", "# Just content\n")
	writeSkillFile(t, dir, "broken-yaml", "---\nname: [unclosed\ndescription: x\n---\n")
	writeSkill(t, dir, "valid", "The only valid one")

	found := discover(t, WithSkillDirs(dir))
	assert.Equal(t, []string{"valid"}, SortedNames(found))
}

func TestDiscoveryPrecedence(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeSkill(t, first, "shared", "From first")
	writeSkill(t, second, "shared", "From second")
	writeSkill(t, second, "only-extra", "Only in extra dir")

	t.Run("earlier directory wins", func(t *testing.T) {
		found := discover(t, WithSkillDirs(first, second))
		assert.Len(t, found, 2)
		assert.Equal(t, "From first", found["shared"].Description)
	})

	t.Run("extra dirs are global", func(t *testing.T) {
		discovery, err := NewDiscovery(WithSkillDirs(first), WithExtraDirs(second))
		require.NoError(t, err)
		assert.Equal(t, []string{first, second}, discovery.Dirs())

		found, err := discovery.DiscoverSkills(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "From first", found["shared"].Description)
		assert.Equal(t, SourceGlobal, found["only-extra"].Source)
	})

	t.Run("local overrides builtin", func(t *testing.T) {
		local := t.TempDir()
		writeSkill(t, local, "code-explainer", "Local override")

		found := discover(t, WithSkillDirs(local), WithBuiltin(true))
		assert.Equal(t, "Local override", found["code-explainer"].Description)
		assert.Equal(t, SourceLocal, found["code-explainer"].Source)
		assert.Equal(t, SourceBuiltin, found["debug-helper"].Source)
		assert.Equal(t, SourceBuiltin, found["performance-guide"].Source)
	})
}

func TestDiscoverPluginSkills(t *testing.T) {
	pluginsDir := t.TempDir()
	writeSkill(t, filepath.Join(pluginsDir, "acme", "toolkit", "skills"), "reviewer", "Review pull requests")

	d := &Discovery{}
	d.addPluginDirs(pluginsDir)
	require.Len(t, d.pluginDirs, 1)
	assert.Equal(t, "acme/toolkit/", d.pluginDirs[0].prefix)

	found, err := d.DiscoverSkills(context.Background())
	require.NoError(t, err)

	skill, ok := found["acme/toolkit/reviewer"]
	require.True(t, ok)
	assert.Equal(t, "acme/toolkit/reviewer", skill.Name)
	assert.Equal(t, SourcePlugin, skill.Source)
}

func TestFilterByAllowlist(t *testing.T) {
	all := map[string]*Skill{
		"code-explainer":    {Name: "code-explainer"},
		"debug-helper":      {Name: "debug-helper"},
		"performance-guide": {Name: "performance-guide"},
	}

	tests := []struct {
		name    string
		allowed []string
		want    []string
	}{
		{"empty keeps everything", nil, []string{"code-explainer", "debug-helper", "performance-guide"}},
		{"subset", []string{"debug-helper", "code-explainer"}, []string{"code-explainer", "debug-helper"}},
		{"unknown names ignored", []string{"debug-helper", "unknown"}, []string{"debug-helper"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SortedNames(FilterByAllowlist(all, tt.allowed)))
		})
	}
}

func TestNonExistentDirectory(t *testing.T) {
	assert.Empty(t, discover(t, WithSkillDirs("/non/existent/path")))
}
