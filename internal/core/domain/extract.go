package domain

import (
	"strings"
	"time"
)

const (
	// ErrorFieldName is the field name of the sentinel entry carried by a failed extraction.
	ErrorFieldName = "Error"
	// FailedSummary is the summary of a failed extraction.
	FailedSummary = "Extraction failed due to an internal error."
)

// ExtractedField is one named value pulled out of a document.
type ExtractedField struct {
	FieldName  string `json:"field_name"`
	FieldValue any    `json:"field_value"`
}

// DocumentExtract is the structured result of one extraction call.
type DocumentExtract struct {
	FileName      string           `json:"file_name"`
	ExtractedData []ExtractedField `json:"extracted_data"`
	Summary       string           `json:"summary"`
}

// FailedExtract builds the sentinel result returned instead of an error.
func FailedExtract(fileName string, err error) DocumentExtract {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return DocumentExtract{
		FileName:      fileName,
		ExtractedData: []ExtractedField{{FieldName: ErrorFieldName, FieldValue: msg}},
		Summary:       FailedSummary,
	}
}

// Failed reports whether the extract is the sentinel failure shape.
func (d DocumentExtract) Failed() bool {
	return len(d.ExtractedData) == 1 && d.ExtractedData[0].FieldName == ErrorFieldName && d.Summary == FailedSummary
}

// FieldNames returns the non-empty field names in extraction order.
func (d DocumentExtract) FieldNames() []string {
	names := make([]string, 0, len(d.ExtractedData))
	for _, f := range d.ExtractedData {
		if strings.TrimSpace(f.FieldName) == "" {
			continue
		}
		names = append(names, f.FieldName)
	}
	return names
}

// ExtractionHints steer the prompt when hint support is enabled.
type ExtractionHints struct {
	TargetFields []string
	Instructions string
}

func (h ExtractionHints) Empty() bool {
	return len(h.TargetFields) == 0 && strings.TrimSpace(h.Instructions) == ""
}

// ExtractRequest is the input of the extraction service.
type ExtractRequest struct {
	FileName string
	MimeType string
	Content  []byte
	Hints    ExtractionHints
}

// Attachment is an inline binary part sent to a multimodal model.
type Attachment struct {
	MimeType string
	Data     []byte
}

// ModelRequest is what an extraction model receives.
type ModelRequest struct {
	Prompt     string
	Attachment *Attachment
}

// ModelReply is the raw text a model returned plus usage counters when the provider reports them.
type ModelReply struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

type ExtractionStage string

const (
	StageSetup  ExtractionStage = "setup"
	StageDeploy ExtractionStage = "deploy"
)

// ExtractionEvent is emitted after each extraction.
type ExtractionEvent struct {
	ID         string          `json:"id"`
	FileName   string          `json:"file_name"`
	MimeType   string          `json:"mime_type"`
	Stage      ExtractionStage `json:"stage"`
	FieldCount int             `json:"field_count"`
	Failed     bool            `json:"failed"`
	Model      string          `json:"model"`
	At         time.Time       `json:"at"`

	DurationSeconds float64 `json:"duration_seconds"`
}
