package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
	"github.com/kirillkom/bol-extractor/internal/core/usecase"
	"github.com/kirillkom/bol-extractor/internal/infrastructure/store/memory"
	"github.com/kirillkom/bol-extractor/internal/observability/metrics"
)

type extractorStub struct {
	requests []domain.ExtractRequest
}

func (s *extractorStub) Extract(_ context.Context, req domain.ExtractRequest) domain.DocumentExtract {
	s.requests = append(s.requests, req)
	return domain.DocumentExtract{
		FileName: req.FileName,
		ExtractedData: []domain.ExtractedField{
			{FieldName: "BOL Number", FieldValue: "BOL-1"},
		},
	}
}

type routerEnv struct {
	handler   http.Handler
	store     *memory.Store
	extractor *extractorStub
}

func newRouterEnv(t *testing.T, opts Options) routerEnv {
	t.Helper()
	store := memory.New(0)
	extractor := &extractorStub{}
	intake := usecase.NewDocumentIntakeUseCase(store, store, extractor, nil, usecase.IntakeOptions{HonorHints: opts.HonorHints})
	router := NewRouter(intake, usecase.NewAgentConfigUseCase(store), usecase.NewQuestionUseCase(store), opts)
	return routerEnv{handler: router.Handler(), store: store, extractor: extractor}
}

func multipartUpload(t *testing.T, fileName, contentType string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart() error = %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("part.Write() error = %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField() error = %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart close error = %v", err)
	}
	return body, mw.FormDataContentType()
}

func postJSON(handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func decodeError(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, res.Body.String())
	}
	return body["error"]
}

func TestHealthzEndpoint(t *testing.T) {
	env := newRouterEnv(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected %s header to be set", requestIDHeader)
	}
}

func TestUploadExtractStoresDocumentAndReturnsExtract(t *testing.T) {
	env := newRouterEnv(t, Options{})
	body, contentType := multipartUpload(t, "bol.txt", "text/plain", []byte("BOL-1"), nil)

	req := httptest.NewRequest(http.MethodPost, PathUploadExtract, body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var out domain.DocumentExtract
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.FileName != "bol.txt" || len(out.ExtractedData) != 1 {
		t.Fatalf("unexpected extract: %+v", out)
	}

	doc, err := env.store.Get(context.Background(), "bol.txt")
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	if doc.MimeType != "text/plain" || string(doc.Content) != "BOL-1" {
		t.Fatalf("unexpected stored document: %+v", doc)
	}
}

func TestUploadWithoutTrailingSlashIsAccepted(t *testing.T) {
	env := newRouterEnv(t, Options{})
	body, contentType := multipartUpload(t, "bol.txt", "text/plain", []byte("x"), nil)

	req := httptest.NewRequest(http.MethodPost, strings.TrimSuffix(PathProcessDocument, "/"), body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
}

func TestUploadWithoutContentTypeReturns400(t *testing.T) {
	env := newRouterEnv(t, Options{})
	body, contentType := multipartUpload(t, "bol.pdf", "", []byte("%PDF"), nil)

	req := httptest.NewRequest(http.MethodPost, PathUploadExtract, body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if got := decodeError(t, res); got != "Filename and content type are required." {
		t.Fatalf("unexpected error message: %q", got)
	}
	if len(env.extractor.requests) != 0 {
		t.Fatalf("extractor must not run for invalid upload")
	}
}

func TestUploadWithoutFileReturns400(t *testing.T) {
	env := newRouterEnv(t, Options{})
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	_ = mw.WriteField("special_instructions", "none")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, PathUploadExtract, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadOverLimitReturns413(t *testing.T) {
	env := newRouterEnv(t, Options{MaxUploadBytes: 1024})
	body, contentType := multipartUpload(t, "big.txt", "text/plain", bytes.Repeat([]byte("a"), 4096), nil)

	req := httptest.NewRequest(http.MethodPost, PathProcessDocument, body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestMalformedTargetFieldsIgnoredUnlessHintsHonoured(t *testing.T) {
	fields := map[string]string{"target_fields_json": "{not json"}

	env := newRouterEnv(t, Options{})
	body, contentType := multipartUpload(t, "bol.txt", "text/plain", []byte("x"), fields)
	req := httptest.NewRequest(http.MethodPost, PathUploadExtract, body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("hints off: expected 200, got %d", res.Code)
	}

	env = newRouterEnv(t, Options{HonorHints: true})
	body, contentType = multipartUpload(t, "bol.txt", "text/plain", []byte("x"), fields)
	req = httptest.NewRequest(http.MethodPost, PathUploadExtract, body)
	req.Header.Set("Content-Type", contentType)
	res = httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("hints on: expected 400, got %d", res.Code)
	}
}

func TestUploadHintsReachExtractorWhenHonoured(t *testing.T) {
	env := newRouterEnv(t, Options{HonorHints: true})
	body, contentType := multipartUpload(t, "bol.txt", "text/plain", []byte("x"), map[string]string{
		"target_fields_json":   `["Carrier","Weight"]`,
		"special_instructions": "dates as ISO",
	})
	req := httptest.NewRequest(http.MethodPost, PathUploadExtract, body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if len(env.extractor.requests) != 1 {
		t.Fatalf("expected one extractor call, got %d", len(env.extractor.requests))
	}
	hints := env.extractor.requests[0].Hints
	if len(hints.TargetFields) != 2 || hints.Instructions != "dates as ISO" {
		t.Fatalf("unexpected hints: %+v", hints)
	}
}

func TestConfigureAgentRoundTrip(t *testing.T) {
	env := newRouterEnv(t, Options{})
	res := postJSON(env.handler, PathConfigureAgent, map[string]any{
		"fields_to_extract":    []string{"Carrier", "Carrier", " Weight "},
		"special_instructions": "kg only",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var out struct {
		Message       string             `json:"message"`
		CurrentConfig domain.AgentConfig `json:"current_config"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Message != configuredMessage {
		t.Fatalf("unexpected message: %q", out.Message)
	}
	if got := out.CurrentConfig.FieldsToExtract; len(got) != 2 || got[0] != "Carrier" || got[1] != "Weight" {
		t.Fatalf("unexpected fields: %v", got)
	}
}

func TestConfigureAgentAcceptsEmptyValues(t *testing.T) {
	env := newRouterEnv(t, Options{})
	res := postJSON(env.handler, PathConfigureAgent, map[string]any{
		"fields_to_extract":    []string{},
		"special_instructions": "",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestConfigureAgentMissingKeysReturns400(t *testing.T) {
	env := newRouterEnv(t, Options{})
	res := postJSON(env.handler, PathConfigureAgent, map[string]any{"fields_to_extract": []string{"Carrier"}})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAskQuestionUnknownDocumentReturns404(t *testing.T) {
	env := newRouterEnv(t, Options{})
	res := postJSON(env.handler, PathAskQuestion, map[string]string{"file_name": "missing.pdf", "question": "who?"})
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if got := decodeError(t, res); got != "Document 'missing.pdf' not found." {
		t.Fatalf("unexpected error message: %q", got)
	}
}

func TestAskQuestionBlankReturns400(t *testing.T) {
	env := newRouterEnv(t, Options{})
	res := postJSON(env.handler, PathAskQuestion, map[string]string{"file_name": "a.pdf", "question": " "})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAskQuestionReturnsDisabledAnswer(t *testing.T) {
	env := newRouterEnv(t, Options{})
	if err := env.store.Put(context.Background(), domain.StoredDocument{FileName: "a.pdf", MimeType: "application/pdf", Content: []byte("%PDF")}); err != nil {
		t.Fatalf("store.Put() error = %v", err)
	}

	res := postJSON(env.handler, PathAskQuestion, map[string]string{"file_name": "a.pdf", "question": "who?"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var out domain.Answer
	if err := json.Unmarshal(res.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.Answer != domain.QADisabledAnswer || out.FileName != "a.pdf" {
		t.Fatalf("unexpected answer: %+v", out)
	}
}

func TestEndpointsRejectGet(t *testing.T) {
	env := newRouterEnv(t, Options{})
	req := httptest.NewRequest(http.MethodGet, PathAskQuestion, nil)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestCORSPreflightForAllowedOrigin(t *testing.T) {
	env := newRouterEnv(t, Options{CORSAllowedOrigins: []string{"http://localhost:8081"}})

	req := httptest.NewRequest(http.MethodOptions, PathConfigureAgent, nil)
	req.Header.Set("Origin", "http://localhost:8081")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)

	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:8081" {
		t.Fatalf("unexpected allow origin: %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, PathHealthz, nil)
	req.Header.Set("Origin", "http://evil.example")
	res = httptest.NewRecorder()
	env.handler.ServeHTTP(res, req)
	if got := res.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin for foreign site: %q", got)
	}
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	m := metrics.NewHTTPServerMetrics("api", KnownPaths...)
	env := newRouterEnv(t, Options{Metrics: m})

	env.handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, PathHealthz, nil))

	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, PathMetrics, nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `path="/healthz"`) {
		t.Fatalf("expected healthz request in metrics output")
	}
}
