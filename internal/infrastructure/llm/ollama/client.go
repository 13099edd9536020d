package ollama

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/llm/httpjson"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/resilience"
)

type Client struct {
	transport *httpjson.Client
	genModel  string
	executor  *resilience.Executor
}

func New(baseURL, genModel string, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		transport: &httpjson.Client{
			Provider:   "ollama",
			BaseURL:    strings.TrimRight(baseURL, "/"),
			HTTPClient: &http.Client{},
		},
		genModel: genModel,
		executor: executor,
	}
}

func (c *Client) Name() string {
	return "ollama/" + c.genModel
}

// SupportsInline is true for the raster formats vision models take through "images".
func (c *Client) SupportsInline(mimeType string) bool {
	return mimeType == "image/png" || mimeType == "image/jpeg"
}

func (c *Client) GenerateExtract(ctx context.Context, req domain.ModelRequest) (domain.ModelReply, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": req.Prompt,
		"stream": false,
		"format": "json",
	}
	if req.Attachment != nil {
		reqBody["images"] = []string{base64.StdEncoding.EncodeToString(req.Attachment.Data)}
	}

	type generateResponse struct {
		Response        string `json:"response"`
		PromptEvalCount int    `json:"prompt_eval_count"`
		EvalCount       int    `json:"eval_count"`
	}
	response, err := resilience.Call(ctx, c.executor, "ollama.generate", func(ctx context.Context) (generateResponse, error) {
		var out generateResponse
		err := c.transport.PostJSON(ctx, "/api/generate", reqBody, &out, "generate")
		return out, err
	}, httpjson.Classify)
	if err != nil {
		return domain.ModelReply{}, httpjson.WrapTemporaryIfNeeded("ollama generate", err)
	}

	return domain.ModelReply{
		Text:             strings.TrimSpace(response.Response),
		PromptTokens:     response.PromptEvalCount,
		CompletionTokens: response.EvalCount,
	}, nil
}
