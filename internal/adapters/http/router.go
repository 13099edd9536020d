package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
	"github.com/kirillkom/bol-extractor/internal/core/ports"
	"github.com/kirillkom/bol-extractor/internal/observability/metrics"
)

const configuredMessage = "Agent configuration finalized successfully!"

// Paths served by the router; also used to label metrics.
const (
	PathHealthz         = "/healthz"
	PathMetrics         = "/metrics"
	PathOpenAPI         = "/openapi.yaml"
	PathUploadExtract   = "/setup/upload_extract/"
	PathConfigureAgent  = "/setup/configure_agent/"
	PathProcessDocument = "/deploy/process_document/"
	PathAskQuestion     = "/deploy/ask_question/"
)

var KnownPaths = []string{
	PathHealthz, PathMetrics, PathOpenAPI,
	PathUploadExtract, PathConfigureAgent, PathProcessDocument, PathAskQuestion,
}

type Options struct {
	Service            string
	HonorHints         bool
	MaxUploadBytes     int64
	CORSAllowedOrigins []string
	Metrics            *metrics.HTTPServerMetrics
}

type Router struct {
	intake       ports.DocumentIntake
	configurator ports.AgentConfigurator
	questions    ports.QuestionAnswerer
	opts         Options
}

func NewRouter(
	intake ports.DocumentIntake,
	configurator ports.AgentConfigurator,
	questions ports.QuestionAnswerer,
	opts Options,
) *Router {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	if opts.Service == "" {
		opts.Service = "api"
	}
	return &Router{
		intake:       intake,
		configurator: configurator,
		questions:    questions,
		opts:         opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(PathHealthz, rt.healthz)
	mux.HandleFunc(PathOpenAPI, serveOpenAPI)
	if rt.opts.Metrics != nil {
		mux.Handle(PathMetrics, rt.opts.Metrics.Handler())
	}
	rt.handle(mux, PathUploadExtract, rt.uploadExtract)
	rt.handle(mux, PathConfigureAgent, rt.configureAgent)
	rt.handle(mux, PathProcessDocument, rt.processDocument)
	rt.handle(mux, PathAskQuestion, rt.askQuestion)

	var handler http.Handler = mux
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	handler = corsMiddleware(rt.opts.CORSAllowedOrigins, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

// handle registers a POST endpoint under both its slash and no-slash spellings.
func (rt *Router) handle(mux *http.ServeMux, path string, fn http.HandlerFunc) {
	h := func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		fn(w, r)
	}
	mux.HandleFunc(path+"{$}", h)
	mux.HandleFunc(strings.TrimSuffix(path, "/"), h)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadExtract(w http.ResponseWriter, r *http.Request) {
	in, ok := rt.readUpload(w, r)
	if !ok {
		return
	}
	in.SpecialInstructions = r.FormValue("special_instructions")

	if raw := strings.TrimSpace(r.FormValue("target_fields_json")); raw != "" {
		var fields []string
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			if rt.opts.HonorHints {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "target_fields_json must be a JSON array of strings"})
				return
			}
			slog.Warn("target_fields_json_ignored", "request_id", requestIDFromContext(r.Context()), "error", err)
		}
		in.TargetFields = fields
	}

	out, err := rt.intake.SetupUploadExtract(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) processDocument(w http.ResponseWriter, r *http.Request) {
	in, ok := rt.readUpload(w, r)
	if !ok {
		return
	}

	out, err := rt.intake.ProcessDocument(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (rt *Router) readUpload(w http.ResponseWriter, r *http.Request) (ports.UploadInput, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(rt.opts.MaxUploadBytes); err != nil {
		if status := mapErrorToHTTPStatus(err); status == http.StatusRequestEntityTooLarge {
			writeJSON(w, status, map[string]string{"error": fmt.Sprintf("upload exceeds %d bytes", rt.opts.MaxUploadBytes)})
			return ports.UploadInput{}, false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return ports.UploadInput{}, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return ports.UploadInput{}, false
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read uploaded file: " + err.Error()})
		return ports.UploadInput{}, false
	}

	return ports.UploadInput{
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Content:  content,
	}, true
}

func (rt *Router) configureAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FieldsToExtract     *[]string `json:"fields_to_extract"`
		SpecialInstructions *string   `json:"special_instructions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.FieldsToExtract == nil || req.SpecialInstructions == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "fields_to_extract and special_instructions are required"})
		return
	}

	cfg, err := rt.configurator.Configure(r.Context(), domain.AgentConfig{
		FieldsToExtract:     *req.FieldsToExtract,
		SpecialInstructions: *req.SpecialInstructions,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":        configuredMessage,
		"current_config": cfg,
	})
}

func (rt *Router) askQuestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileName string `json:"file_name"`
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	answer, err := rt.questions.Ask(r.Context(), req.FileName, req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
