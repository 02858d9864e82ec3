// Package frontmatter splits markdown documents into their YAML front-matter
// block and body. Format produces a canonical, idempotent rendition of the
// same document.
package frontmatter

import (
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	delimiter = "---"
	utf8BOM   = "\ufeff"
)

var (
	// ErrNoFrontMatter is returned when the document does not open with a delimiter line.
	ErrNoFrontMatter = errors.New("document has no front-matter block")
	// ErrUnterminated is returned when the closing delimiter line is missing.
	ErrUnterminated = errors.New("front-matter block is not terminated")
)

// Field is a single top-level key of the front-matter block.
type Field struct {
	Key   string
	Value any
}

// Document is a parsed markdown document with front-matter.
type Document struct {
	raw  string // YAML text between the delimiters
	body string

	node   *yaml.Node // mapping node, nil when the block is empty
	fields []Field
}

// Parse splits content into front-matter and body. The YAML block must be a
// mapping (or empty).
func Parse(content []byte) (*Document, error) {
	s := string(content)

	s = strings.TrimPrefix(s, utf8BOM)

	first, rest := cutLine(s)
	if strings.TrimSpace(first) != delimiter {
		return nil, ErrNoFrontMatter
	}

	var raw strings.Builder
	for rest != "" {
		line, next := cutLine(rest)
		if strings.TrimSpace(line) == delimiter {
			doc := &Document{
				raw:  raw.String(),
				body: next,
			}
			if err := doc.decode(); err != nil {
				return nil, err
			}
			return doc, nil
		}
		raw.WriteString(line)
		rest = next
	}

	return nil, ErrUnterminated
}

// cutLine returns the first line of s including its trailing newline, and the remainder.
func cutLine(s string) (string, string) {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i+1], s[i+1:]
	}
	return s, ""
}

func (d *Document) decode() error {
	if strings.TrimSpace(d.raw) == "" {
		return nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(d.raw), &root); err != nil {
		return errors.Wrap(err, "failed to decode front-matter")
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil
	}

	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return errors.Errorf("front-matter must be a mapping, got %s", kindName(mapping.Kind))
	}

	d.node = mapping
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i]
		var value any
		if err := mapping.Content[i+1].Decode(&value); err != nil {
			return errors.Wrapf(err, "failed to decode front-matter key %q", key.Value)
		}
		d.fields = append(d.fields, Field{Key: key.Value, Value: value})
	}

	return nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}

// Fields returns the top-level keys in document order.
func (d *Document) Fields() []Field {
	return d.fields
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (any, bool) {
	for _, f := range d.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// String returns the value under key when it is a string, trimmed. Missing
// or non-string values yield "".
func (d *Document) String(key string) string {
	v, ok := d.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// Map returns the front-matter as a map.
func (d *Document) Map() map[string]any {
	m := make(map[string]any, len(d.fields))
	for _, f := range d.fields {
		m[f.Key] = f.Value
	}
	return m
}

// Body returns everything after the closing delimiter line.
func (d *Document) Body() string {
	return d.body
}
