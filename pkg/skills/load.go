package skills

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/jingkaihe/skillet/pkg/frontmatter"
	"github.com/jingkaihe/skillet/pkg/templates"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/text"
)

// SkillFileName is the file that marks a directory as a skill.
const SkillFileName = "SKILL.md"

const utf8BOM = "\ufeff"

// Parse builds a Skill from the content of a SKILL.md file. Directory, Path
// and Source are left for the caller to fill in.
func Parse(content []byte) (*Skill, error) {
	doc, err := frontmatter.Parse(content)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse skill file")
	}

	m, err := DecodeMetadata(doc.Map())
	if err != nil {
		return nil, err
	}
	if m.Name == "" {
		return nil, errors.New("skill name is required in frontmatter")
	}
	if m.Description == "" {
		return nil, errors.New("skill description is required in frontmatter")
	}

	tmpl := templates.New(m.Sections...)
	if tmpl.Empty() {
		// The meta extension keeps the front-matter block out of the AST.
		source := bytes.TrimPrefix(content, []byte(utf8BOM))
		md := goldmark.New(goldmark.WithExtensions(meta.Meta))
		root := md.Parser().Parse(text.NewReader(source))
		tmpl = templates.FromAST(root, source)
	}

	return &Skill{
		Name:        m.Name,
		Description: m.Description,
		Triggers:    m.Triggers,
		Patterns:    m.Patterns,
		Priority:    m.Priority,
		Template:    tmpl,
		Content:     strings.TrimLeft(doc.Body(), "\r\n"),
	}, nil
}

// DecodeMetadata converts decoded front-matter into Metadata. Scalars are
// accepted where lists are expected, so "triggers: explain" is one trigger.
func DecodeMetadata(raw map[string]any) (Metadata, error) {
	var m Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &m,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return m, errors.Wrap(err, "failed to create metadata decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return m, errors.Wrap(err, "failed to decode frontmatter")
	}

	m.Name = strings.TrimSpace(m.Name)
	m.Description = strings.TrimSpace(m.Description)
	return m, nil
}

// LoadFile reads and parses a SKILL.md file.
func LoadFile(path string) (*Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	skill, err := Parse(content)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load %s", path)
	}
	skill.Path = path
	skill.Directory = filepath.Dir(path)
	return skill, nil
}
