package vertex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/resilience"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type Client struct {
	base      *genai.Client
	model     contentGenerator
	modelName string
	executor  *resilience.Executor
}

// New dials Vertex AI with application default credentials unless credentialsFile is set.
func New(ctx context.Context, projectID, region, modelName, credentialsFile string, executor *resilience.Executor) (*Client, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("vertex: project id and region cannot be empty")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	base, err := genai.NewClient(ctx, projectID, region, opts...)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	model := base.GenerativeModel(modelName)
	model.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema,
		Temperature:      genai.Ptr[float32](0.0),
	}
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockMediumAndAbove},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockMediumAndAbove},
	}

	return newWithGenerator(base, model, modelName, executor), nil
}

func newWithGenerator(base *genai.Client, model contentGenerator, modelName string, executor *resilience.Executor) *Client {
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{base: base, model: model, modelName: modelName, executor: executor}
}

var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"file_name": {Type: genai.TypeString},
		"extracted_data": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"field_name":  {Type: genai.TypeString},
					"field_value": {Type: genai.TypeString},
				},
				Required: []string{"field_name", "field_value"},
			},
		},
		"summary": {Type: genai.TypeString},
	},
	Required: []string{"file_name", "extracted_data", "summary"},
}

func (c *Client) Close() error {
	if c.base != nil {
		return c.base.Close()
	}
	return nil
}

func (c *Client) Name() string {
	return "vertex/" + c.modelName
}

func (c *Client) SupportsInline(mimeType string) bool {
	switch mimeType {
	case "application/pdf", "image/png", "image/jpeg", "image/webp":
		return true
	}
	return strings.HasPrefix(mimeType, "text/")
}

func (c *Client) GenerateExtract(ctx context.Context, req domain.ModelRequest) (domain.ModelReply, error) {
	parts := []genai.Part{genai.Text(req.Prompt)}
	if req.Attachment != nil {
		parts = append(parts, genai.Blob{MIMEType: req.Attachment.MimeType, Data: req.Attachment.Data})
	}

	resp, err := resilience.Call(ctx, c.executor, "vertex.generate", func(ctx context.Context) (*genai.GenerateContentResponse, error) {
		return c.model.GenerateContent(ctx, parts...)
	}, classify)
	if err != nil {
		if classify(err).Retryable {
			return domain.ModelReply{}, domain.WrapError(domain.ErrTemporary, "vertex generate", err)
		}
		return domain.ModelReply{}, fmt.Errorf("vertex generate: %w", err)
	}
	return replyFromResponse(resp)
}

func replyFromResponse(resp *genai.GenerateContentResponse) (domain.ModelReply, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil {
			return domain.ModelReply{}, fmt.Errorf("vertex blocked the prompt: %s", resp.PromptFeedback.BlockReason)
		}
		return domain.ModelReply{}, fmt.Errorf("vertex returned no candidates")
	}

	candidate := resp.Candidates[0]
	var b strings.Builder
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				b.WriteString(string(txt))
			}
		}
	}
	if b.Len() == 0 {
		return domain.ModelReply{}, fmt.Errorf("vertex returned an empty candidate (finish reason %s)", candidate.FinishReason)
	}

	reply := domain.ModelReply{Text: b.String()}
	if resp.UsageMetadata != nil {
		reply.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		reply.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return reply, nil
}

func classify(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{RecordFailure: true}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.Aborted, codes.DeadlineExceeded:
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied, codes.Unauthenticated, codes.FailedPrecondition:
		return resilience.ErrorClassification{}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}
