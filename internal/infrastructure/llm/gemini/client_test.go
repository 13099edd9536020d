package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
)

func TestGenerateExtractSendsInlineDataAndSchema(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-1.5-flash-latest:generateContent" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("x-goog-api-key") != "key-1" {
			t.Errorf("missing api key header")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{
			"candidates":[{"content":{"parts":[{"text":"{\"file_name\":"},{"text":"\"bol.pdf\"}"}]},"finishReason":"STOP"}],
			"usageMetadata":{"promptTokenCount":120,"candidatesTokenCount":30}
		}`))
	}))
	defer server.Close()

	client := New(server.URL, "key-1", "gemini-1.5-flash-latest", nil)
	reply, err := client.GenerateExtract(context.Background(), domain.ModelRequest{
		Prompt:     "extract",
		Attachment: &domain.Attachment{MimeType: "application/pdf", Data: []byte("%PDF")},
	})
	if err != nil {
		t.Fatalf("GenerateExtract() error = %v", err)
	}
	if reply.Text != `{"file_name":"bol.pdf"}` {
		t.Fatalf("unexpected reply %q", reply.Text)
	}
	if reply.PromptTokens != 120 || reply.CompletionTokens != 30 {
		t.Fatalf("unexpected usage %+v", reply)
	}

	parts := captured.Contents[0].Parts
	if len(parts) != 2 || parts[0].Text != "extract" {
		t.Fatalf("unexpected parts %+v", parts)
	}
	if parts[1].InlineData.MimeType != "application/pdf" || parts[1].InlineData.Data != base64.StdEncoding.EncodeToString([]byte("%PDF")) {
		t.Fatalf("unexpected inline data %+v", parts[1].InlineData)
	}
	if captured.GenerationConfig.ResponseMimeType != "application/json" || captured.GenerationConfig.ResponseSchema["type"] != "OBJECT" {
		t.Fatalf("unexpected generation config %+v", captured.GenerationConfig)
	}
	if len(captured.SafetySettings) != 4 {
		t.Fatalf("expected 4 safety settings, got %d", len(captured.SafetySettings))
	}
}

func TestGenerateExtractBlockedPrompt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer server.Close()

	_, err := New(server.URL, "k", "m", nil).GenerateExtract(context.Background(), domain.ModelRequest{Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "SAFETY") {
		t.Fatalf("expected block reason in error, got %v", err)
	}
}

func TestGenerateExtractServerErrorIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(server.URL, "k", "m", nil).GenerateExtract(context.Background(), domain.ModelRequest{Prompt: "p"})
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	if !strings.Contains(err.Error(), "overloaded") {
		t.Fatalf("expected upstream body in error, got %v", err)
	}
}

func TestSupportsInline(t *testing.T) {
	client := New("", "k", "m", nil)
	for _, mime := range []string{"application/pdf", "image/png", "image/jpeg", "text/csv"} {
		if !client.SupportsInline(mime) {
			t.Fatalf("expected %s to be inline", mime)
		}
	}
	if client.SupportsInline("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet") {
		t.Fatalf("xlsx must not be inline")
	}
}
