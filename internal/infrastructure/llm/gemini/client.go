package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/llm/httpjson"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/resilience"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com"

type Client struct {
	transport *httpjson.Client
	model     string
	executor  *resilience.Executor
}

func New(baseURL, apiKey, model string, executor *resilience.Executor) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		transport: &httpjson.Client{
			Provider:   "gemini",
			BaseURL:    baseURL,
			Header:     http.Header{"X-Goog-Api-Key": {apiKey}},
			HTTPClient: &http.Client{},
		},
		model:    model,
		executor: executor,
	}
}

func (c *Client) Name() string {
	return "gemini/" + c.model
}

// SupportsInline lists the document types the Generative Language API reads as inline data.
func (c *Client) SupportsInline(mimeType string) bool {
	switch mimeType {
	case "application/pdf", "image/png", "image/jpeg", "image/webp", "image/heic", "image/heif":
		return true
	}
	return strings.HasPrefix(mimeType, "text/")
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
	SafetySettings   []safetySetting  `json:"safetySettings"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

var safetySettings = []safetySetting{
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
}

// responseSchema is the OpenAPI subset form of DocumentExtract. field_value is declared a string
// because the API schema has no "any" type.
var responseSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"file_name": map[string]any{"type": "STRING"},
		"extracted_data": map[string]any{
			"type": "ARRAY",
			"items": map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"field_name":  map[string]any{"type": "STRING"},
					"field_value": map[string]any{"type": "STRING"},
				},
				"required": []string{"field_name", "field_value"},
			},
		},
		"summary": map[string]any{"type": "STRING"},
	},
	"required": []string{"file_name", "extracted_data", "summary"},
}

func (c *Client) GenerateExtract(ctx context.Context, req domain.ModelRequest) (domain.ModelReply, error) {
	parts := []part{{Text: req.Prompt}}
	if req.Attachment != nil {
		parts = append(parts, part{InlineData: &inlineData{
			MimeType: req.Attachment.MimeType,
			Data:     base64.StdEncoding.EncodeToString(req.Attachment.Data),
		}})
	}
	payload := generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema,
		},
		SafetySettings: safetySettings,
	}
	path := "/v1beta/models/" + url.PathEscape(c.model) + ":generateContent"

	response, err := resilience.Call(ctx, c.executor, "gemini.generate", func(ctx context.Context) (generateResponse, error) {
		var out generateResponse
		err := c.transport.PostJSON(ctx, path, payload, &out, "generate")
		return out, err
	}, httpjson.Classify)
	if err != nil {
		return domain.ModelReply{}, httpjson.WrapTemporaryIfNeeded("gemini generate", err)
	}

	text, err := replyText(response)
	if err != nil {
		return domain.ModelReply{}, err
	}
	return domain.ModelReply{
		Text:             text,
		PromptTokens:     response.UsageMetadata.PromptTokenCount,
		CompletionTokens: response.UsageMetadata.CandidatesTokenCount,
	}, nil
}

func replyText(resp generateResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini blocked the prompt: %s", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("gemini returned no candidates")
	}

	candidate := resp.Candidates[0]
	var b strings.Builder
	for _, p := range candidate.Content.Parts {
		b.WriteString(p.Text)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("gemini returned an empty candidate (finish reason %s)", candidate.FinishReason)
	}
	return b.String(), nil
}
