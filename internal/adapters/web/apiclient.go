package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/llm/httpjson"
)

// Upload is a file held by a UI session and forwarded to the API.
type Upload struct {
	Name     string
	MimeType string
	Content  []byte
}

// ConfigureResult is the configure-agent response body.
type ConfigureResult struct {
	Message       string             `json:"message"`
	CurrentConfig domain.AgentConfig `json:"current_config"`
}

// Backend is the extraction API as seen by the UI.
type Backend interface {
	UploadExtract(ctx context.Context, file Upload, instructions string, targetFields []string) (*domain.DocumentExtract, error)
	ConfigureAgent(ctx context.Context, cfg domain.AgentConfig) (*ConfigureResult, error)
	ProcessDocument(ctx context.Context, file Upload) (*domain.DocumentExtract, error)
	AskQuestion(ctx context.Context, fileName, question string) (*domain.Answer, error)
}

// APIClient calls the extraction API over HTTP.
type APIClient struct {
	baseURL string
	json    *httpjson.Client
}

func NewAPIClient(baseURL string, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	httpClient := &http.Client{Timeout: timeout}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		json: &httpjson.Client{
			Provider:   "api",
			BaseURL:    baseURL,
			HTTPClient: httpClient,
		},
	}
}

func (c *APIClient) UploadExtract(ctx context.Context, file Upload, instructions string, targetFields []string) (*domain.DocumentExtract, error) {
	if targetFields == nil {
		targetFields = []string{}
	}
	rawFields, err := json.Marshal(targetFields)
	if err != nil {
		return nil, fmt.Errorf("marshal target fields: %w", err)
	}

	var out domain.DocumentExtract
	err = c.postMultipart(ctx, "/setup/upload_extract/", file, map[string]string{
		"special_instructions": instructions,
		"target_fields_json":   string(rawFields),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) ProcessDocument(ctx context.Context, file Upload) (*domain.DocumentExtract, error) {
	var out domain.DocumentExtract
	if err := c.postMultipart(ctx, "/deploy/process_document/", file, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *APIClient) ConfigureAgent(ctx context.Context, cfg domain.AgentConfig) (*ConfigureResult, error) {
	if cfg.FieldsToExtract == nil {
		cfg.FieldsToExtract = []string{}
	}
	var out ConfigureResult
	if err := c.json.PostJSON(ctx, "/setup/configure_agent/", cfg, &out, "configure_agent"); err != nil {
		return nil, apiError(err)
	}
	return &out, nil
}

func (c *APIClient) AskQuestion(ctx context.Context, fileName, question string) (*domain.Answer, error) {
	payload := map[string]string{"file_name": fileName, "question": question}
	var out domain.Answer
	if err := c.json.PostJSON(ctx, "/deploy/ask_question/", payload, &out, "ask_question"); err != nil {
		return nil, apiError(err)
	}
	return &out, nil
}

func (c *APIClient) postMultipart(ctx context.Context, path string, file Upload, fields map[string]string, out any) error {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	if file.MimeType != "" {
		header.Set("Content-Type", file.MimeType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.json.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("API connection error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode API response: %w", err)
	}
	return nil
}

// APIError carries a non-2xx API response; Message is the API's own error text.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

func apiError(err error) error {
	var statusErr *httpjson.StatusError
	if errors.As(err, &statusErr) {
		return &APIError{StatusCode: statusErr.StatusCode, Message: errorMessage([]byte(statusErr.Body), statusErr.Status)}
	}
	return fmt.Errorf("API connection error: %w", err)
}

func errorMessage(raw []byte, status string) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return body.Error
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return status
}
