package main

import (
	"context"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/jingkaihe/skillet/pkg/templates"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// RenderConfig holds configuration for the render command
type RenderConfig struct {
	Title       string
	Sections    []string
	ContentFile string
	Placeholder string
	Level       int
	Pretty      bool
}

// NewRenderConfig creates a new RenderConfig with default values
func NewRenderConfig() *RenderConfig {
	return &RenderConfig{
		Placeholder: templates.DefaultPlaceholder,
	}
}

var renderCmd = withTracing(&cobra.Command{
	Use:   "render <skill>",
	Short: "Render a skill's response template",
	Long: `Render the response template of a skill. Every section of the template is
printed in order; sections without content get a placeholder.

Content comes from --section flags and from a YAML file with a title and a
sections mapping:

  title: AuthMiddleware
  sections:
    What It Does: Validates bearer tokens.

Examples:
  skillet render code-explainer --title AuthMiddleware --section "What It Does=Validates tokens"
  skillet render debug-helper --content notes.yaml --pretty`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRender(cmd.Context(), args[0], getRenderConfigFromFlags(cmd))
	},
})

func init() {
	defaults := NewRenderConfig()
	renderCmd.Flags().String("title", defaults.Title, "Heading placed above the sections")
	renderCmd.Flags().StringArrayP("section", "s", nil, "Section content as \"Name=text\" (repeatable)")
	renderCmd.Flags().StringP("content", "c", defaults.ContentFile, "YAML file with title and sections (- for stdin)")
	renderCmd.Flags().String("placeholder", defaults.Placeholder, "Text for sections without content")
	renderCmd.Flags().Int("heading-level", defaults.Level, "Render every section at this heading level (1-6)")
	renderCmd.Flags().Bool("pretty", defaults.Pretty, "Render the markdown for the terminal")
	rootCmd.AddCommand(renderCmd)
}

func getRenderConfigFromFlags(cmd *cobra.Command) *RenderConfig {
	config := NewRenderConfig()
	if title, err := cmd.Flags().GetString("title"); err == nil {
		config.Title = title
	}
	if sections, err := cmd.Flags().GetStringArray("section"); err == nil {
		config.Sections = sections
	}
	if content, err := cmd.Flags().GetString("content"); err == nil {
		config.ContentFile = content
	}
	if placeholder, err := cmd.Flags().GetString("placeholder"); err == nil {
		config.Placeholder = placeholder
	}
	if level, err := cmd.Flags().GetInt("heading-level"); err == nil {
		config.Level = level
	}
	if pretty, err := cmd.Flags().GetBool("pretty"); err == nil {
		config.Pretty = pretty
	}
	return config
}

// buildContent merges the content file with the --title and --section
// flags. Sections are keyed by templates.Key, so flags win over the file
// whatever their spelling.
func buildContent(config *RenderConfig, stdin io.Reader) (templates.Content, error) {
	content := templates.Content{Sections: map[string]string{}}

	if config.ContentFile != "" {
		var (
			data []byte
			err  error
		)
		if config.ContentFile == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(config.ContentFile)
		}
		if err != nil {
			return content, errors.Wrap(err, "failed to read content file")
		}

		var fromFile templates.Content
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return content, errors.Wrap(err, "failed to decode content file")
		}
		content.Title = fromFile.Title
		names := make([]string, 0, len(fromFile.Sections))
		for name := range fromFile.Sections {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			content.Sections[templates.Key(name)] = fromFile.Sections[name]
		}
	}

	sections, err := parseSections(config.Sections)
	if err != nil {
		return content, err
	}
	for k, v := range sections {
		content.Sections[k] = v
	}
	if config.Title != "" {
		content.Title = config.Title
	}
	return content, nil
}

// parseSections parses "Name=text" pairs into a map keyed by templates.Key.
// Repeating a name appends to it.
func parseSections(pairs []string) (map[string]string, error) {
	sections := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, text, ok := strings.Cut(pair, "=")
		key := templates.Key(name)
		if !ok || key == "" {
			return nil, errors.Errorf("invalid section %q, expected Name=text", pair)
		}
		if prev, exists := sections[key]; exists {
			text = prev + "\n\n" + text
		}
		sections[key] = text
	}
	return sections, nil
}

func runRender(ctx context.Context, name string, config *RenderConfig) error {
	content, err := buildContent(config, os.Stdin)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, historyOff)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := []templates.RenderOption{templates.WithPlaceholder(config.Placeholder)}
	if config.Level > 0 {
		opts = append(opts, templates.WithHeadingLevel(config.Level))
	}

	out, err := a.service.Render(ctx, name, content, opts...)
	if err != nil {
		return err
	}

	if config.Pretty {
		return presenter.Markdown(out)
	}
	presenter.Print(out)
	return nil
}
