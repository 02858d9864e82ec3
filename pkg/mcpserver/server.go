// Package mcpserver exposes the skill catalog to MCP clients: tools to list,
// select and render skills, a skill:// resource per skill and a prompt that
// frames a question with the selected skill.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jingkaihe/skillet/pkg/history"
	"github.com/jingkaihe/skillet/pkg/logger"
	"github.com/jingkaihe/skillet/pkg/service"
	"github.com/jingkaihe/skillet/pkg/templates"
	"github.com/jingkaihe/skillet/pkg/version"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
)

// ServerName is reported to clients during initialization.
const ServerName = "skillet"

// ResourceScheme prefixes skill resource URIs.
const ResourceScheme = "skill://"

// SelectArgs are the arguments of select_skill.
type SelectArgs struct {
	Text string `json:"text"`
}

// SelectResult is the structured result of select_skill.
type SelectResult struct {
	Selected bool     `json:"selected" jsonschema_description:"Whether a skill matched the text"`
	Skill    string   `json:"skill,omitempty" jsonschema_description:"Name of the selected skill"`
	Score    float64  `json:"score,omitempty" jsonschema_description:"Heuristic score of the selected skill"`
	Reasons  []string `json:"reasons,omitempty" jsonschema_description:"Triggers that contributed to the score"`
	Sections []string `json:"sections,omitempty" jsonschema_description:"Template sections the answer should follow, in order"`
}

// ListResult is the structured result of list_skills.
type ListResult struct {
	Skills []service.Summary `json:"skills" jsonschema_description:"Available skills sorted by name"`
}

// RenderArgs are the arguments of render_template.
type RenderArgs struct {
	Skill    string            `json:"skill"`
	Title    string            `json:"title,omitempty"`
	Sections map[string]string `json:"sections,omitempty"`
}

// Server wraps the skill service as an MCP server.
type Server struct {
	service   *service.Service
	mcpServer *server.MCPServer
}

// New creates the MCP server and registers its tools, resources and prompts.
func New(svc *service.Service) *Server {
	s := &Server{
		service: svc,
		mcpServer: server.NewMCPServer(
			ServerName,
			version.Get().Version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithPromptCapabilities(false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	s.registerPrompts()
	return s
}

// MCPServer returns the underlying server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin and stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_skills",
		mcp.WithDescription("List the available skills with their descriptions and template sections."),
		mcp.WithOutputSchema[ListResult](),
	), mcp.NewStructuredToolHandler(s.handleList))

	s.mcpServer.AddTool(mcp.NewTool("select_skill",
		mcp.WithDescription("Pick the skill that best fits a request. Returns selected=false when no skill applies."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The user's request")),
		mcp.WithOutputSchema[SelectResult](),
	), mcp.NewStructuredToolHandler(s.handleSelect))

	s.mcpServer.AddTool(mcp.NewTool("render_template",
		mcp.WithDescription("Render a skill's response template. Every section is emitted in order; sections without content get a placeholder."),
		mcp.WithString("skill", mcp.Required(), mcp.Description("Skill name")),
		mcp.WithString("title", mcp.Description("Heading placed above the sections")),
		mcp.WithObject("sections",
			mcp.Description("Section name to markdown content"),
			mcp.AdditionalProperties(map[string]any{"type": "string"}),
		),
	), s.handleRender)
}

func (s *Server) handleList(_ context.Context, _ mcp.CallToolRequest, _ struct{}) (ListResult, error) {
	return ListResult{Skills: s.service.List()}, nil
}

func (s *Server) handleSelect(ctx context.Context, _ mcp.CallToolRequest, args SelectArgs) (SelectResult, error) {
	sel, ok := s.service.Select(ctx, args.Text, history.SurfaceMCP)
	if !ok {
		return SelectResult{Selected: false}, nil
	}

	return SelectResult{
		Selected: true,
		Skill:    sel.Skill.Name,
		Score:    sel.Score,
		Reasons:  sel.Reasons,
		Sections: sel.Skill.Template.Names(),
	}, nil
}

func (s *Server) handleRender(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args RenderArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if strings.TrimSpace(args.Skill) == "" {
		return mcp.NewToolResultError("skill is required"), nil
	}

	out, err := s.service.Render(ctx, args.Skill, templates.Content{
		Title:    args.Title,
		Sections: args.Sections,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(out), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(ResourceScheme+"{name}", "Skill",
		mcp.WithTemplateDescription("The SKILL.md instructions of a skill"),
		mcp.WithTemplateMIMEType("text/markdown"),
	), s.handleReadSkill)

	s.mcpServer.AddResource(mcp.NewResource(ResourceScheme+"index", "Skill index",
		mcp.WithResourceDescription("Every available skill as JSON"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadIndex)
}

func (s *Server) handleReadSkill(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := request.Params.URI
	name := strings.TrimPrefix(uri, ResourceScheme)

	sk, err := s.service.Get(name)
	if err != nil {
		logger.G(ctx).WithField("uri", uri).Debug("unknown skill resource")
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     sk.Content,
		},
	}, nil
}

func (s *Server) handleReadIndex(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(s.service.List())
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode skill index")
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt("skill",
		mcp.WithPromptDescription("Answer a request following the instructions of the best matching skill"),
		mcp.WithArgument("text", mcp.RequiredArgument(), mcp.ArgumentDescription("The user's request")),
	), s.handlePrompt)
}

func (s *Server) handlePrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	text := strings.TrimSpace(request.Params.Arguments["text"])
	if text == "" {
		return nil, errors.New("text is required")
	}

	sel, ok := s.service.Select(ctx, text, history.SurfaceMCP)
	if !ok {
		return mcp.NewGetPromptResult("No skill matched", []mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		}), nil
	}

	instructions := fmt.Sprintf("Use the %s skill to answer.\n\n%s", sel.Skill.Name, sel.Skill.Content)
	return mcp.NewGetPromptResult(sel.Skill.Description, []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleAssistant, mcp.NewTextContent(instructions)),
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
	}), nil
}
