package web

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	tabSetup  = "setup"
	tabDeploy = "deploy"

	maxFormBytes = 32 << 20
	xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Paths served by the UI.
const (
	PathIndex     = "/"
	PathExtract   = "/setup/extract"
	PathRerun     = "/setup/rerun"
	PathConfigure = "/setup/configure"
	PathProcess   = "/deploy/process"
	PathAsk       = "/deploy/ask"
	PathExport    = "/export.xlsx"
	PathHealthz   = "/healthz"
)

var KnownPaths = []string{PathIndex, PathExtract, PathRerun, PathConfigure, PathProcess, PathAsk, PathExport, PathHealthz}

type Handler struct {
	api      Backend
	sessions *SessionStore
	tmpl     *template.Template
}

func NewHandler(api Backend, sessions *SessionStore) (*Handler, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{"orNA": orNA}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse ui templates: %w", err)
	}
	if sessions == nil {
		sessions = NewSessionStore(DefaultMaxSessions, DefaultSessionIdleTTL)
	}
	return &Handler{api: api, sessions: sessions, tmpl: tmpl}, nil
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+PathHealthz, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	})
	mux.HandleFunc("GET /{$}", h.index)
	mux.HandleFunc("POST "+PathExtract, h.initialExtract)
	mux.HandleFunc("POST "+PathRerun, h.rerunExtract)
	mux.HandleFunc("POST "+PathConfigure, h.configure)
	mux.HandleFunc("POST "+PathProcess, h.process)
	mux.HandleFunc("POST "+PathAsk, h.ask)
	mux.HandleFunc("GET "+PathExport, h.export)
	return mux
}

type resultView struct {
	FileName string
	Summary  string
	Rows     []row
	Failed   bool
}

type pageData struct {
	Tab     string
	Notices []notice

	SetupFileName   string
	Setup           *resultView
	Options         []string
	Selected        map[string]bool
	Instructions    string
	Configured      bool
	FinalConfigJSON string

	Deploy   *resultView
	CanAsk   bool
	Question string
	Answer   string
}

func newResultView(extract *domain.DocumentExtract) *resultView {
	if extract == nil {
		return nil
	}
	return &resultView{
		FileName: extract.FileName,
		Summary:  extract.Summary,
		Rows:     resultRows(extract),
		Failed:   extract.Failed(),
	}
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	sess.mu.Lock()
	data := pageData{
		Tab:          r.URL.Query().Get("tab"),
		Notices:      sess.takeNotices(),
		Setup:        newResultView(sess.SetupResult),
		Instructions: sess.Instructions,
		Configured:   sess.Configured,
		Deploy:       newResultView(sess.DeployResult),
		Question:     sess.Question,
		Answer:       sess.Answer,
	}
	if sess.SetupFile != nil {
		data.SetupFileName = sess.SetupFile.Name
	}
	data.Options = fieldOptions(sess.SetupResult)
	data.Selected = make(map[string]bool)
	for _, f := range visibleSelection(sess.SelectedFields, data.Options) {
		data.Selected[f] = true
	}
	if sess.FinalConfig != nil {
		raw, _ := json.MarshalIndent(sess.FinalConfig, "", "  ")
		data.FinalConfigJSON = string(raw)
	}
	data.CanAsk = sess.DeployResult != nil && sess.QAFileName == sess.DeployResult.FileName
	sess.mu.Unlock()

	if data.Tab != tabDeploy {
		data.Tab = tabSetup
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.Error("ui_template_failed", "error", err)
		http.Error(w, "Template execution failed", http.StatusInternalServerError)
	}
}

func (h *Handler) initialExtract(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	upload, err := readUpload(r)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	defer redirect(w, r, tabSetup)

	if err != nil {
		sess.flash(levelError, err.Error())
		return
	}
	if upload != nil && (sess.SetupFile == nil || sess.SetupFile.Name != upload.Name || string(sess.SetupFile.Content) != string(upload.Content)) {
		sess.resetSetup(*upload)
		sess.flash(levelSuccess, fmt.Sprintf("File '%s' loaded.", upload.Name))
	}
	if sess.SetupFile == nil {
		sess.flash(levelWarning, "Please upload a sample document first.")
		return
	}

	result, err := h.api.UploadExtract(r.Context(), *sess.SetupFile, "", []string{})
	if err != nil {
		slog.Warn("ui_api_call_failed", "operation", "upload_extract", "error", err)
		sess.SetupResult = nil
		sess.flash(levelError, err.Error())
		return
	}
	sess.SetupResult = result
	sess.Instructions = ""
	sess.SelectedFields = fieldOptions(result)
}

func (h *Handler) rerunExtract(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	_ = r.ParseForm()
	submitted := r.PostForm["fields"]
	instructions := r.PostFormValue("instructions")

	sess.mu.Lock()
	defer sess.mu.Unlock()
	defer redirect(w, r, tabSetup)

	sess.SelectedFields = submitted
	sess.Instructions = instructions
	if sess.SetupFile == nil {
		sess.flash(levelWarning, "No sample document loaded. Please upload and analyze first.")
		return
	}

	result, err := h.api.UploadExtract(r.Context(), *sess.SetupFile, instructions, submitted)
	if err != nil {
		slog.Warn("ui_api_call_failed", "operation", "upload_extract", "error", err)
		sess.flash(levelError, err.Error())
		sess.flash(levelError, "Failed to re-run extraction.")
		return
	}
	sess.SetupResult = result
	sess.SelectedFields = selectionAfterRerun(submitted, result)
	sess.flash(levelSuccess, "Extraction re-run complete!")
}

func (h *Handler) configure(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	_ = r.ParseForm()
	fields := r.PostForm["fields"]
	instructions := r.PostFormValue("instructions")

	sess.mu.Lock()
	defer sess.mu.Unlock()
	defer redirect(w, r, tabSetup)

	sess.SelectedFields = fields
	sess.Instructions = instructions
	if emptyConfig(fields, instructions) {
		sess.flash(levelWarning, emptyConfigWarning)
		return
	}

	resp, err := h.api.ConfigureAgent(r.Context(), domain.AgentConfig{FieldsToExtract: fields, SpecialInstructions: instructions})
	if err != nil {
		slog.Warn("ui_api_call_failed", "operation", "configure_agent", "error", err)
		sess.flash(levelError, err.Error())
		sess.flash(levelError, "Failed to set final agent configuration.")
		return
	}
	cfg := resp.CurrentConfig
	sess.FinalConfig = &cfg
	sess.Configured = true
	msg := resp.Message
	if msg == "" {
		msg = "Agent configuration finalized!"
	}
	sess.flash(levelSuccess, msg)
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	upload, err := readUpload(r)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	defer redirect(w, r, tabDeploy)

	if !sess.Configured {
		sess.flash(levelWarning, "Please set the final agent configuration in the 'Agent Setup Stage' first.")
		return
	}
	if err != nil {
		sess.flash(levelError, err.Error())
		return
	}
	if upload == nil {
		sess.flash(levelWarning, "Please choose a document to process.")
		return
	}

	result, err := h.api.ProcessDocument(r.Context(), *upload)
	if err != nil {
		slog.Warn("ui_api_call_failed", "operation", "process_document", "error", err)
		sess.DeployResult = nil
		sess.flash(levelError, err.Error())
		return
	}
	sess.DeployResult = result
	sess.QAFileName = upload.Name
	sess.Question = ""
	sess.Answer = ""
}

func (h *Handler) ask(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	question := strings.TrimSpace(r.PostFormValue("question"))

	sess.mu.Lock()
	defer sess.mu.Unlock()
	defer redirect(w, r, tabDeploy)

	if sess.DeployResult == nil || sess.QAFileName != sess.DeployResult.FileName {
		sess.flash(levelInfo, "Process the document first to enable Q&A for it.")
		return
	}
	if question == "" {
		sess.flash(levelWarning, "Please enter a question.")
		return
	}

	sess.Question = question
	answer, err := h.api.AskQuestion(r.Context(), sess.QAFileName, question)
	if err != nil {
		slog.Warn("ui_api_call_failed", "operation", "ask_question", "error", err)
		sess.Answer = ""
		sess.flash(levelError, err.Error())
		return
	}
	sess.Answer = answer.Answer
	if sess.Answer == "" {
		sess.Answer = "No answer received."
	}
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(w, r)
	sess.mu.Lock()
	extract := sess.SetupResult
	if r.URL.Query().Get("stage") == tabDeploy {
		extract = sess.DeployResult
	}
	sess.mu.Unlock()

	if extract == nil {
		http.Error(w, "No extraction result to export.", http.StatusNotFound)
		return
	}
	raw, err := exportXLSX(extract)
	if err != nil {
		slog.Error("ui_export_failed", "error", err)
		http.Error(w, "Export failed", http.StatusInternalServerError)
		return
	}

	name := strings.TrimSuffix(filepath.Base(extract.FileName), filepath.Ext(extract.FileName))
	if name == "" || name == "." {
		name = "document"
	}
	w.Header().Set("Content-Type", xlsxMimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, name+"_extract.xlsx"))
	_, _ = w.Write(raw)
}

// readUpload returns the optional "file" part; nil when the form carries no file.
func readUpload(r *http.Request) (*Upload, error) {
	if err := r.ParseMultipartForm(maxFormBytes); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err == http.ErrMissingFile {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if header.Filename == "" {
		return nil, nil
	}
	return &Upload{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Content:  content,
	}, nil
}

func redirect(w http.ResponseWriter, r *http.Request, tab string) {
	http.Redirect(w, r, "/?tab="+tab, http.StatusSeeOther)
}
