// Package skills loads skill files. A skill is a directory containing a
// SKILL.md file whose YAML front-matter names and describes the skill and
// whose body carries the response template the skill is answered with.
package skills

import (
	"github.com/jingkaihe/skillet/pkg/templates"
)

// Source identifies where a skill was discovered.
type Source string

// Skill sources, from highest to lowest precedence.
const (
	SourceLocal   Source = "local"
	SourceGlobal  Source = "global"
	SourcePlugin  Source = "plugin"
	SourceBuiltin Source = "builtin"
)

// Skill represents a discovered skill with its metadata
type Skill struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Triggers    []string           `json:"triggers,omitempty"`
	Patterns    []string           `json:"patterns,omitempty"`
	Priority    int                `json:"priority,omitempty"`
	Template    templates.Template `json:"template"`
	Directory   string             `json:"directory,omitempty"` // Full path to the skill directory
	Path        string             `json:"path,omitempty"`      // Path of the SKILL.md file
	Source      Source             `json:"source"`
	Content     string             `json:"content,omitempty"` // Body of SKILL.md, without front-matter
}

// Metadata represents the YAML front-matter in SKILL.md files
type Metadata struct {
	Name        string   `mapstructure:"name" yaml:"name" json:"name" jsonschema:"required,minLength=1" jsonschema_description:"Unique skill identifier in kebab-case"`
	Description string   `mapstructure:"description" yaml:"description" json:"description" jsonschema:"required,minLength=1" jsonschema_description:"What the skill does and when to use it. Quoted phrases act as trigger phrases"`
	Triggers    []string `mapstructure:"triggers" yaml:"triggers,omitempty" json:"triggers,omitempty" jsonschema_description:"Trigger phrases. * matches any words"`
	Patterns    []string `mapstructure:"patterns" yaml:"patterns,omitempty" json:"patterns,omitempty" jsonschema_description:"Regular expressions matched case-insensitively against the utterance"`
	Sections    []string `mapstructure:"sections" yaml:"sections,omitempty" json:"sections,omitempty" jsonschema_description:"Template section names; overrides the template found in the body"`
	Priority    int      `mapstructure:"priority" yaml:"priority,omitempty" json:"priority,omitempty" jsonschema_description:"Breaks ties between equally scored skills; higher wins"`
}
