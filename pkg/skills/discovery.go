package skills

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/pkg/errors"
)

// Discovery handles skill discovery from configured directories
type Discovery struct {
	skillDirs  []skillDir
	pluginDirs []pluginDirConfig
	builtin    bool
}

type skillDir struct {
	dir    string
	source Source
}

// pluginDirConfig represents a plugin directory with its prefix
type pluginDirConfig struct {
	dir    string
	prefix string
}

// Option is a function that configures a Discovery
type Option func(*Discovery) error

// WithSkillDirs sets custom skill directories
func WithSkillDirs(dirs ...string) Option {
	return func(d *Discovery) error {
		d.skillDirs = nil
		for _, dir := range dirs {
			d.skillDirs = append(d.skillDirs, skillDir{dir: dir, source: SourceLocal})
		}
		return nil
	}
}

// WithExtraDirs appends directories searched after the ones already configured
func WithExtraDirs(dirs ...string) Option {
	return func(d *Discovery) error {
		for _, dir := range dirs {
			d.skillDirs = append(d.skillDirs, skillDir{dir: dir, source: SourceGlobal})
		}
		return nil
	}
}

// WithBuiltin toggles the embedded skills
func WithBuiltin(enabled bool) Option {
	return func(d *Discovery) error {
		d.builtin = enabled
		return nil
	}
}

// WithDefaultDirs initializes with default skill directories
func WithDefaultDirs() Option {
	return func(d *Discovery) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to get user home directory")
		}
		d.skillDirs = []skillDir{
			{dir: "./.skillet/skills", source: SourceLocal},                           // Repo-local (highest precedence)
			{dir: filepath.Join(homeDir, ".skillet", "skills"), source: SourceGlobal}, // User-global
		}

		d.pluginDirs = []pluginDirConfig{}
		d.addPluginDirs("./.skillet/plugins")
		d.addPluginDirs(filepath.Join(homeDir, ".skillet", "plugins"))

		return nil
	}
}

// addPluginDirs scans a plugins directory and adds all plugin skill directories
// Supports nested org/repo directory structure
func (d *Discovery) addPluginDirs(pluginsDir string) {
	_ = filepath.Walk(pluginsDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}

		skillsDir := filepath.Join(path, "skills")
		if _, err := os.Stat(skillsDir); err != nil {
			return nil
		}

		relPath, err := filepath.Rel(pluginsDir, path)
		if err != nil {
			return nil
		}

		d.pluginDirs = append(d.pluginDirs, pluginDirConfig{
			dir:    skillsDir,
			prefix: filepath.ToSlash(relPath) + "/",
		})

		return filepath.SkipDir
	})
}

// NewDiscovery creates a new skill discovery instance. Without options it
// searches the default directories and includes the built-in skills.
func NewDiscovery(opts ...Option) (*Discovery, error) {
	d := &Discovery{}

	if len(opts) == 0 {
		opts = []Option{WithDefaultDirs(), WithBuiltin(true)}
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Dirs returns every directory that is searched, in precedence order.
func (d *Discovery) Dirs() []string {
	dirs := make([]string, 0, len(d.skillDirs)+len(d.pluginDirs))
	for _, sd := range d.skillDirs {
		dirs = append(dirs, sd.dir)
	}
	for _, pd := range d.pluginDirs {
		dirs = append(dirs, pd.dir)
	}
	return dirs
}

// DiscoverSkills finds all available skills from configured directories. The
// first skill found under a name wins.
func (d *Discovery) DiscoverSkills(ctx context.Context) (map[string]*Skill, error) {
	skills := make(map[string]*Skill)

	for _, sd := range d.skillDirs {
		d.discoverSkillsFromDir(ctx, sd.dir, "", sd.source, skills)
	}

	for _, pluginDir := range d.pluginDirs {
		d.discoverSkillsFromDir(ctx, pluginDir.dir, pluginDir.prefix, SourcePlugin, skills)
	}

	if d.builtin {
		builtins, err := Builtin()
		if err != nil {
			return nil, err
		}
		for name, skill := range builtins {
			if _, exists := skills[name]; !exists {
				skills[name] = skill
			}
		}
	}

	return skills, nil
}

// discoverSkillsFromDir discovers skills from a directory with optional name prefix
func (d *Discovery) discoverSkillsFromDir(ctx context.Context, dir, prefix string, source Source, skills map[string]*Skill) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		entryPath := filepath.Join(dir, entry.Name())

		info, err := os.Stat(entryPath)
		if err != nil || !info.IsDir() {
			continue
		}

		skill, err := LoadFile(filepath.Join(entryPath, SkillFileName))
		if err != nil {
			if !os.IsNotExist(errors.Cause(err)) {
				logger.G(ctx).WithError(err).WithField("dir", entryPath).Debug("skipping invalid skill")
			}
			continue
		}

		skillName := prefix + skill.Name
		if _, exists := skills[skillName]; !exists {
			skill.Name = skillName
			skill.Directory = entryPath
			skill.Source = source
			skills[skillName] = skill
		}
	}
}

// SortedNames returns the keys of skills in lexical order.
func SortedNames(skills map[string]*Skill) []string {
	names := make([]string, 0, len(skills))
	for name := range skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FilterByAllowlist filters skills by an allowlist of names
// If the allowlist is empty, all skills are returned
func FilterByAllowlist(skills map[string]*Skill, allowed []string) map[string]*Skill {
	if len(allowed) == 0 {
		return skills
	}

	filtered := make(map[string]*Skill)
	for _, name := range allowed {
		if skill, exists := skills[name]; exists {
			filtered[name] = skill
		}
	}
	return filtered
}
