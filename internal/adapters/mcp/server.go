package mcpadapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
	"github.com/kirillkom/bol-extractor/internal/core/ports"
)

const (
	ToolExtractDocument = "extract_document"
	ToolConfigureAgent  = "configure_agent"
	ToolGetAgentConfig  = "get_agent_config"
	ToolAskQuestion     = "ask_question"
)

// Tools exposes the extraction use cases as MCP tools.
type Tools struct {
	intake       ports.DocumentIntake
	configurator ports.AgentConfigurator
	questions    ports.QuestionAnswerer
}

func NewTools(intake ports.DocumentIntake, configurator ports.AgentConfigurator, questions ports.QuestionAnswerer) *Tools {
	return &Tools{intake: intake, configurator: configurator, questions: questions}
}

// NewServer builds an MCP server with every tool registered.
func NewServer(tools *Tools, version string) *server.MCPServer {
	s := server.NewMCPServer("bol-extractor", version, server.WithToolCapabilities(false))

	s.AddTool(mcp.NewTool(ToolExtractDocument,
		mcp.WithDescription("Extract Bill of Lading fields from a document. The document is stored under its file name for follow-up questions."),
		mcp.WithString("file_name", mcp.Required(), mcp.Description("Document file name; uploads with the same name overwrite each other.")),
		mcp.WithString("mime_type", mcp.Required(), mcp.Description("Document MIME type, e.g. application/pdf or image/png.")),
		mcp.WithString("content_base64", mcp.Required(), mcp.Description("Document bytes, standard base64.")),
		mcp.WithString("stage", mcp.Enum(string(domain.StageSetup), string(domain.StageDeploy)), mcp.Description("setup (default) or deploy.")),
		mcp.WithString("special_instructions", mcp.Description("Setup-stage instructions; only used when hint support is enabled.")),
		mcp.WithArray("target_fields", mcp.Items(map[string]any{"type": "string"}), mcp.Description("Setup-stage field names; only used when hint support is enabled.")),
	), tools.ExtractDocument)

	s.AddTool(mcp.NewTool(ToolConfigureAgent,
		mcp.WithDescription("Overwrite the agent configuration used by the processing stage."),
		mcp.WithArray("fields_to_extract", mcp.Required(), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("special_instructions", mcp.Required()),
	), tools.ConfigureAgent)

	s.AddTool(mcp.NewTool(ToolGetAgentConfig,
		mcp.WithDescription("Return the current agent configuration."),
	), tools.GetAgentConfig)

	s.AddTool(mcp.NewTool(ToolAskQuestion,
		mcp.WithDescription("Ask a question about a previously extracted document."),
		mcp.WithString("file_name", mcp.Required()),
		mcp.WithString("question", mcp.Required()),
	), tools.AskQuestion)

	return s
}

func (t *Tools) ExtractDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileName, err := req.RequireString("file_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mimeType, err := req.RequireString("mime_type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	encoded, err := req.RequireString("content_base64")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("content_base64 is not valid base64: %v", err)), nil
	}

	in := ports.UploadInput{
		FileName:            fileName,
		MimeType:            mimeType,
		Content:             content,
		SpecialInstructions: req.GetString("special_instructions", ""),
		TargetFields:        req.GetStringSlice("target_fields", nil),
	}

	var out *domain.DocumentExtract
	switch stage := domain.ExtractionStage(req.GetString("stage", string(domain.StageSetup))); stage {
	case domain.StageSetup:
		out, err = t.intake.SetupUploadExtract(ctx, in)
	case domain.StageDeploy:
		out, err = t.intake.ProcessDocument(ctx, in)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown stage %q", stage)), nil
	}
	if err != nil {
		slog.Warn("mcp_tool_failed", "tool", ToolExtractDocument, "file_name", fileName, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(out)
}

func (t *Tools) ConfigureAgent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fields, err := req.RequireStringSlice("fields_to_extract")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	instructions, err := req.RequireString("special_instructions")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cfg, err := t.configurator.Configure(ctx, domain.AgentConfig{FieldsToExtract: fields, SpecialInstructions: instructions})
	if err != nil {
		slog.Warn("mcp_tool_failed", "tool", ToolConfigureAgent, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(cfg)
}

func (t *Tools) GetAgentConfig(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := t.configurator.Current(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(cfg)
}

func (t *Tools) AskQuestion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fileName := req.GetString("file_name", "")
	question := req.GetString("question", "")

	answer, err := t.questions.Ask(ctx, fileName, question)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(answer)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
