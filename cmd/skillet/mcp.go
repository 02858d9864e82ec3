package main

import (
	"context"
	"os"

	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/mcpserver"
	"github.com/jingkaihe/skillet/pkg/presenter"
	"github.com/jingkaihe/skillet/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// MCPConfig holds configuration for the mcp command
type MCPConfig struct {
	Watch bool
}

// NewMCPConfig creates a new MCPConfig with default values
func NewMCPConfig() *MCPConfig {
	return &MCPConfig{Watch: true}
}

var mcpCmd = withTracing(&cobra.Command{
	Use:   "mcp",
	Short: "Serve the skills to MCP clients over stdio",
	Long: `Start an MCP (Model Context Protocol) server on stdin and stdout.

Tools: list_skills, select_skill and render_template.
Resources: skill://<name> for every skill and skill://index.
Prompts: skill, which frames a request with the instructions of the
selected skill.

Register it with a client as:
  {"command": "skillet", "args": ["mcp"]}`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runMCP(cmd.Context(), getMCPConfigFromFlags(cmd))
	},
})

func init() {
	defaults := NewMCPConfig()
	mcpCmd.Flags().Bool("watch", defaults.Watch, "Reload skills when their files change")
	rootCmd.AddCommand(mcpCmd)
}

func getMCPConfigFromFlags(cmd *cobra.Command) *MCPConfig {
	config := NewMCPConfig()
	if watch, err := cmd.Flags().GetBool("watch"); err == nil {
		config.Watch = watch
	}
	return config
}

func runMCP(ctx context.Context, config *MCPConfig) error {
	// stdout carries the protocol
	presenter.SetDefault(presenter.NewWithOptions(os.Stderr, os.Stderr, presenter.ColorNever))

	a, err := newApp(ctx, historyIfEnabled)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if config.Watch {
		go func() {
			if err := a.service.Catalog().Watch(ctx, skills.DefaultReloadDebounce); err != nil {
				logger.G(ctx).WithError(err).Warn("skill watcher stopped")
			}
		}()
	}

	logger.G(ctx).WithField("skills", a.service.Catalog().Len()).Info("starting MCP server on stdio")
	if err := mcpserver.New(a.service).ServeStdio(); err != nil {
		return errors.Wrap(err, "MCP server failed")
	}
	return nil
}
