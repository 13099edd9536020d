package mcpadapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
	"github.com/kirillkom/bol-extractor/internal/core/usecase"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/store/memory"
)

type extractorStub struct {
	last domain.ExtractRequest
}

func (s *extractorStub) Extract(_ context.Context, req domain.ExtractRequest) domain.DocumentExtract {
	s.last = req
	return domain.DocumentExtract{
		FileName:      req.FileName,
		ExtractedData: []domain.ExtractedField{{FieldName: "Carrier", FieldValue: "ACME"}},
		Summary:       "one field",
	}
}

func newTestTools() (*Tools, *memory.Store, *extractorStub) {
	store := memory.New(0)
	extractor := &extractorStub{}
	intake := usecase.NewDocumentIntakeUseCase(store, store, extractor, nil, usecase.IntakeOptions{})
	return NewTools(intake, usecase.NewAgentConfigUseCase(store), usecase.NewQuestionUseCase(store)), store, extractor
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("unexpected content type %T", res.Content[0])
	}
	return text.Text
}

func TestNewServerRegistersTools(t *testing.T) {
	tools, _, _ := newTestTools()
	s := NewServer(tools, "test")

	registered := s.ListTools()
	for _, name := range []string{ToolExtractDocument, ToolConfigureAgent, ToolGetAgentConfig, ToolAskQuestion} {
		if _, ok := registered[name]; !ok {
			t.Fatalf("tool %s not registered", name)
		}
	}
}

func TestExtractDocumentStoresAndExtracts(t *testing.T) {
	tools, store, extractor := newTestTools()

	res, err := tools.ExtractDocument(context.Background(), callRequest(ToolExtractDocument, map[string]any{
		"file_name":      "bol.txt",
		"mime_type":      "text/plain",
		"content_base64": base64.StdEncoding.EncodeToString([]byte("BOL-1")),
		"stage":          "deploy",
	}))
	if err != nil {
		t.Fatalf("ExtractDocument() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}

	var out domain.DocumentExtract
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out.FileName != "bol.txt" || len(out.ExtractedData) != 1 {
		t.Fatalf("unexpected extract: %+v", out)
	}
	if string(extractor.last.Content) != "BOL-1" {
		t.Fatalf("unexpected extractor content: %q", extractor.last.Content)
	}
	if _, err := store.Get(context.Background(), "bol.txt"); err != nil {
		t.Fatalf("document not stored: %v", err)
	}
}

func TestExtractDocumentRejectsBadInput(t *testing.T) {
	tools, _, _ := newTestTools()

	cases := map[string]map[string]any{
		"missing mime": {"file_name": "a.pdf", "content_base64": ""},
		"bad base64":   {"file_name": "a.pdf", "mime_type": "application/pdf", "content_base64": "***"},
		"bad stage":    {"file_name": "a.pdf", "mime_type": "application/pdf", "content_base64": "", "stage": "prod"},
	}
	for name, args := range cases {
		res, err := tools.ExtractDocument(context.Background(), callRequest(ToolExtractDocument, args))
		if err != nil {
			t.Fatalf("%s: ExtractDocument() error = %v", name, err)
		}
		if !res.IsError {
			t.Fatalf("%s: expected tool error", name)
		}
	}
}

func TestConfigureAgentAndReadBack(t *testing.T) {
	tools, _, _ := newTestTools()

	res, err := tools.ConfigureAgent(context.Background(), callRequest(ToolConfigureAgent, map[string]any{
		"fields_to_extract":    []any{"Carrier", "Carrier", "Weight"},
		"special_instructions": "kg",
	}))
	if err != nil || res.IsError {
		t.Fatalf("ConfigureAgent() = %v, %v", res, err)
	}

	res, err = tools.GetAgentConfig(context.Background(), callRequest(ToolGetAgentConfig, nil))
	if err != nil {
		t.Fatalf("GetAgentConfig() error = %v", err)
	}
	var cfg domain.AgentConfig
	if err := json.Unmarshal([]byte(resultText(t, res)), &cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if len(cfg.FieldsToExtract) != 2 || cfg.SpecialInstructions != "kg" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestConfigureAgentRequiresBothKeys(t *testing.T) {
	tools, _, _ := newTestTools()
	res, err := tools.ConfigureAgent(context.Background(), callRequest(ToolConfigureAgent, map[string]any{
		"special_instructions": "kg",
	}))
	if err != nil {
		t.Fatalf("ConfigureAgent() error = %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error for missing fields_to_extract")
	}
}

func TestAskQuestionUnknownDocument(t *testing.T) {
	tools, _, _ := newTestTools()
	res, err := tools.AskQuestion(context.Background(), callRequest(ToolAskQuestion, map[string]any{
		"file_name": "missing.pdf",
		"question":  "who?",
	}))
	if err != nil {
		t.Fatalf("AskQuestion() error = %v", err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "not found") {
		t.Fatalf("expected not found tool error, got %+v", res)
	}
}
