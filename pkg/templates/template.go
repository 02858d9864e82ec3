// Package templates models the response templates carried by skill files: an
// ordered list of section headers that an explanation is expected to fill in.
// It extracts templates from markdown bodies and renders them with content.
package templates

import (
	"strings"
	"unicode"
)

// DefaultSectionLevel is the heading level used for sections declared
// without one, e.g. through front-matter.
const DefaultSectionLevel = 3

// Section is a single header of a template.
type Section struct {
	Name  string `json:"name" yaml:"name"`
	Level int    `json:"level" yaml:"level"`
}

// Template is an ordered list of sections. Section names are unique when
// compared with Key.
type Template struct {
	// Title is the heading that introduced the template in the source
	// document, e.g. "Explanation Template". Empty for declared templates.
	Title    string    `json:"title,omitempty" yaml:"title,omitempty"`
	Sections []Section `json:"sections" yaml:"sections"`
}

// New builds a template from section names at DefaultSectionLevel. Blank and
// duplicate names are dropped.
func New(names ...string) Template {
	var t Template
	seen := make(map[string]bool)
	for _, name := range names {
		name = strings.TrimSpace(name)
		k := Key(name)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		t.Sections = append(t.Sections, Section{Name: name, Level: DefaultSectionLevel})
	}
	return t
}

// Empty reports whether the template declares no sections.
func (t Template) Empty() bool {
	return len(t.Sections) == 0
}

// Names returns the section names in order.
func (t Template) Names() []string {
	names := make([]string, len(t.Sections))
	for i, s := range t.Sections {
		names[i] = s.Name
	}
	return names
}

// Index returns the position of the section matching name, or -1.
func (t Template) Index(name string) int {
	k := Key(name)
	for i, s := range t.Sections {
		if Key(s.Name) == k {
			return i
		}
	}
	return -1
}

// Key normalizes a section name for comparison: lower case letters and
// digits only, so "What It Does", "what-it-does" and "What it does:" agree.
func Key(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
