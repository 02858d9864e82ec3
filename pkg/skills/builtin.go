package skills

import (
	"embed"
	"io/fs"
	"path"

	"github.com/pkg/errors"
)

//go:embed builtin
var builtinFS embed.FS

const builtinRoot = "builtin"

// BuiltinFS exposes the embedded skill tree, rooted at the directory holding
// one sub-directory per skill.
func BuiltinFS() fs.FS {
	sub, err := fs.Sub(builtinFS, builtinRoot)
	if err != nil {
		panic(err)
	}
	return sub
}

// Builtin parses the skills embedded in the binary.
func Builtin() (map[string]*Skill, error) {
	entries, err := fs.ReadDir(builtinFS, builtinRoot)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read built-in skills")
	}

	skills := make(map[string]*Skill, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		p := path.Join(builtinRoot, entry.Name(), SkillFileName)
		content, err := fs.ReadFile(builtinFS, p)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read built-in skill %s", entry.Name())
		}

		skill, err := Parse(content)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid built-in skill %s", entry.Name())
		}
		skill.Path = p
		skill.Source = SourceBuiltin
		skills[skill.Name] = skill
	}
	return skills, nil
}
