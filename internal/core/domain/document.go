package domain

// StoredDocument is the raw upload kept for follow-up questions.
type StoredDocument struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Content  []byte `json:"-"`
}

// Answer is the ask-question response.
type Answer struct {
	FileName string `json:"file_name"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QADisabledAnswer is returned while question answering is not implemented.
const QADisabledAnswer = "Q&A feature is currently disabled in the BOL-only mode."
