package frontmatter

import (
	"bytes"
	"reflect"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// leadingKeys are emitted first, in this order, by Canonical.
var leadingKeys = []string{"name", "description"}

// ErrRoundTrip is returned by Format when the canonical rendition would not
// parse back to the same document.
var ErrRoundTrip = errors.New("canonical form does not round-trip")

// Format parses content and returns its canonical rendition. The result is
// checked to decode to the same front-matter and body, and to be a fixed
// point of Format.
func Format(content []byte) ([]byte, error) {
	doc, err := Parse(content)
	if err != nil {
		return nil, err
	}

	formatted, err := doc.Canonical()
	if err != nil {
		return nil, err
	}
	if err := doc.verify(formatted); err != nil {
		return nil, err
	}
	return formatted, nil
}

// verify re-parses the canonical rendition of d and compares it with d.
func (d *Document) verify(formatted []byte) error {
	again, err := Parse(formatted)
	if err != nil {
		return errors.Wrapf(ErrRoundTrip, "reparse failed: %s", err)
	}
	if !reflect.DeepEqual(d.Map(), again.Map()) {
		return errors.Wrap(ErrRoundTrip, "front-matter values changed")
	}
	if normalizeBody(d.body) != normalizeBody(again.body) {
		return errors.Wrap(ErrRoundTrip, "body changed")
	}

	twice, err := again.Canonical()
	if err != nil {
		return errors.Wrapf(ErrRoundTrip, "re-encode failed: %s", err)
	}
	if !bytes.Equal(twice, formatted) {
		return errors.Wrap(ErrRoundTrip, "formatting is not idempotent")
	}
	return nil
}

func normalizeBody(body string) string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = strings.TrimLeft(body, "\n")
	return strings.TrimRight(body, " \t\r\n")
}

// Canonical renders the document in canonical form: LF line endings, the
// leading keys first followed by the remaining keys in document order, block
// style YAML with two-space indentation, one blank line between the closing
// delimiter and the body, and exactly one trailing newline.
func (d *Document) Canonical() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(delimiter + "\n")

	if d.node != nil && len(d.node.Content) > 0 {
		mapping := reorder(d.node)
		resetStyle(mapping)

		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(mapping); err != nil {
			return nil, errors.Wrap(err, "failed to encode front-matter")
		}
		if err := enc.Close(); err != nil {
			return nil, errors.Wrap(err, "failed to flush front-matter")
		}
	}

	buf.WriteString(delimiter + "\n")

	if body := normalizeBody(d.body); body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// reorder returns a shallow copy of mapping with the leading keys moved to the front.
func reorder(mapping *yaml.Node) *yaml.Node {
	out := *mapping
	out.Content = make([]*yaml.Node, 0, len(mapping.Content))

	used := make(map[int]bool)
	for _, key := range leadingKeys {
		for i := 0; i+1 < len(mapping.Content); i += 2 {
			if !used[i] && mapping.Content[i].Value == key {
				out.Content = append(out.Content, cloneNode(mapping.Content[i]), cloneNode(mapping.Content[i+1]))
				used[i] = true
				break
			}
		}
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if used[i] {
			continue
		}
		out.Content = append(out.Content, cloneNode(mapping.Content[i]), cloneNode(mapping.Content[i+1]))
	}

	return &out
}

func cloneNode(n *yaml.Node) *yaml.Node {
	c := *n
	if len(n.Content) > 0 {
		c.Content = make([]*yaml.Node, len(n.Content))
		for i, child := range n.Content {
			c.Content[i] = cloneNode(child)
		}
	}
	return &c
}

// resetStyle clears quoting and flow styles so the encoder picks them.
func resetStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		resetStyle(child)
	}
}
