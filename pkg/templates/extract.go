package templates

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Extract returns the first template found in a markdown document.
func Extract(source []byte) Template {
	return FromAST(parse(source), source)
}

// ExtractAll returns every template found in a markdown document, in order.
func ExtractAll(source []byte) []Template {
	return AllFromAST(parse(source), source)
}

// FromAST returns the first template of an already parsed document. source
// must be the buffer the document was parsed from.
func FromAST(doc ast.Node, source []byte) Template {
	all := AllFromAST(doc, source)
	if len(all) == 0 {
		return Template{}
	}
	return all[0]
}

// AllFromAST returns every template of an already parsed document.
//
// A template starts at a top-level heading whose text ends in "Template".
// Its sections are the headings of the first markdown fenced code block
// below it, or, when there is none, the headings nested under it. Only the
// dominant heading level is kept, so a "## [Component Name]" line above
// "### What It Does" style sections does not become a section itself.
func AllFromAST(doc ast.Node, source []byte) []Template {
	var out []Template
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		h, ok := n.(*ast.Heading)
		if !ok || !isTemplateHeading(nodeText(h, source)) {
			continue
		}
		if t := collect(h, source); !t.Empty() {
			out = append(out, t)
		}
	}
	return out
}

func parse(source []byte) ast.Node {
	return goldmark.New().Parser().Parse(text.NewReader(source))
}

func isTemplateHeading(title string) bool {
	t := strings.ToLower(strings.TrimSpace(title))
	t = strings.TrimRight(t, ": ")
	return strings.HasSuffix(t, "template")
}

func collect(h *ast.Heading, source []byte) Template {
	title := nodeText(h, source)

	var nested []Section
	for n := h.NextSibling(); n != nil; n = n.NextSibling() {
		switch v := n.(type) {
		case *ast.Heading:
			if v.Level <= h.Level {
				return build(title, nested)
			}
			nested = append(nested, Section{Name: nodeText(v, source), Level: v.Level})
		case *ast.FencedCodeBlock:
			if len(nested) > 0 || !isMarkdownFence(v, source) {
				continue
			}
			if sections := fenceSections(v, source); len(sections) > 0 {
				return build(title, sections)
			}
		}
	}

	return build(title, nested)
}

func isMarkdownFence(block *ast.FencedCodeBlock, source []byte) bool {
	switch strings.ToLower(string(block.Language(source))) {
	case "", "markdown", "md":
		return true
	default:
		return false
	}
}

func fenceSections(block *ast.FencedCodeBlock, source []byte) []Section {
	var buf bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(source))
	}

	inner := buf.Bytes()
	var sections []Section
	for n := parse(inner).FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			sections = append(sections, Section{Name: nodeText(h, inner), Level: h.Level})
		}
	}
	return sections
}

// build keeps the sections at the most common heading level, preferring the
// deeper level on ties, and drops duplicates.
func build(title string, sections []Section) Template {
	counts := make(map[int]int)
	for _, s := range sections {
		counts[s.Level]++
	}

	level, best := 0, 0
	for l, c := range counts {
		if c > best || (c == best && l > level) {
			level, best = l, c
		}
	}

	t := Template{Title: title}
	seen := make(map[string]bool)
	for _, s := range sections {
		k := Key(s.Name)
		if s.Level != level || k == "" || seen[k] {
			continue
		}
		seen[k] = true
		t.Sections = append(t.Sections, s)
	}
	return t
}

// nodeText concatenates the inline text below n.
func nodeText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
