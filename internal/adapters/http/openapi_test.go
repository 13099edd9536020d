package httpadapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAPIDocumentDescribesEveryEndpoint(t *testing.T) {
	doc, err := LoadOpenAPI(context.Background())
	if err != nil {
		t.Fatalf("LoadOpenAPI() error = %v", err)
	}

	routes := map[string]string{
		PathHealthz:         http.MethodGet,
		PathUploadExtract:   http.MethodPost,
		PathConfigureAgent:  http.MethodPost,
		PathProcessDocument: http.MethodPost,
		PathAskQuestion:     http.MethodPost,
	}
	for path, method := range routes {
		item := doc.Paths.Value(path)
		if item == nil {
			t.Fatalf("openapi document has no path %s", path)
		}
		if item.GetOperation(method) == nil {
			t.Fatalf("openapi document has no %s %s", method, path)
		}
	}
}

func TestOpenAPIEndpointServesEmbeddedDocument(t *testing.T) {
	env := newRouterEnv(t, Options{})
	res := httptest.NewRecorder()
	env.handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, PathOpenAPI, nil))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.HasPrefix(res.Body.String(), "openapi:") {
		t.Fatalf("unexpected body prefix: %.40q", res.Body.String())
	}
}
