package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
)

func TestAPIClientUploadExtractSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/setup/upload_extract/" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile() error = %v", err)
		}
		content, _ := io.ReadAll(file)
		if header.Filename != "bol.pdf" || header.Header.Get("Content-Type") != "application/pdf" || string(content) != "%PDF" {
			t.Fatalf("unexpected file part: %s %s %q", header.Filename, header.Header.Get("Content-Type"), content)
		}
		if got := r.FormValue("target_fields_json"); got != `["Carrier"]` {
			t.Fatalf("unexpected target_fields_json: %s", got)
		}
		if got := r.FormValue("special_instructions"); got != "kg" {
			t.Fatalf("unexpected special_instructions: %s", got)
		}
		_ = json.NewEncoder(w).Encode(domain.DocumentExtract{FileName: "bol.pdf", Summary: "ok"})
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, time.Second)
	out, err := client.UploadExtract(context.Background(), Upload{Name: "bol.pdf", MimeType: "application/pdf", Content: []byte("%PDF")}, "kg", []string{"Carrier"})
	if err != nil {
		t.Fatalf("UploadExtract() error = %v", err)
	}
	if out.FileName != "bol.pdf" || out.Summary != "ok" {
		t.Fatalf("unexpected extract: %+v", out)
	}
}

func TestAPIClientSendsEmptyFieldListAsArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.FormValue("target_fields_json"); got != "[]" {
			t.Fatalf("unexpected target_fields_json: %s", got)
		}
		_ = json.NewEncoder(w).Encode(domain.DocumentExtract{})
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, time.Second)
	if _, err := client.UploadExtract(context.Background(), Upload{Name: "a.txt", MimeType: "text/plain"}, "", nil); err != nil {
		t.Fatalf("UploadExtract() error = %v", err)
	}
}

func TestAPIClientReturnsAPIErrorVerbatim(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":"Document 'x.pdf' not found."}`)
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, time.Second)
	_, err := client.AskQuestion(context.Background(), "x.pdf", "who?")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T (%v)", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Message != "Document 'x.pdf' not found." {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestAPIClientConfigureAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var cfg domain.AgentConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(ConfigureResult{Message: "done", CurrentConfig: cfg})
	}))
	defer srv.Close()

	client := NewAPIClient(srv.URL, time.Second)
	out, err := client.ConfigureAgent(context.Background(), domain.AgentConfig{SpecialInstructions: "kg"})
	if err != nil {
		t.Fatalf("ConfigureAgent() error = %v", err)
	}
	if out.Message != "done" || out.CurrentConfig.SpecialInstructions != "kg" || out.CurrentConfig.FieldsToExtract == nil {
		t.Fatalf("unexpected response: %+v", out)
	}
}
