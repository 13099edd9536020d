package ports

import (
	"context"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
)

// DocumentStore keeps the latest upload per file name.
type DocumentStore interface {
	Put(ctx context.Context, doc domain.StoredDocument) error
	Get(ctx context.Context, fileName string) (*domain.StoredDocument, error)
}

// AgentConfigStore holds the single agent configuration value.
type AgentConfigStore interface {
	SaveAgentConfig(ctx context.Context, cfg domain.AgentConfig) error
	LoadAgentConfig(ctx context.Context) (domain.AgentConfig, error)
}

// ExtractionModel is a generative model able to answer with JSON.
type ExtractionModel interface {
	Name() string
	SupportsInline(mimeType string) bool
	GenerateExtract(ctx context.Context, req domain.ModelRequest) (domain.ModelReply, error)
}

// TextConverter produces a text rendition of documents a model cannot take inline.
type TextConverter interface {
	CanConvert(mimeType string) bool
	ConvertToText(ctx context.Context, fileName, mimeType string, content []byte) (string, error)
}

// ExtractParser validates a raw model reply and decodes it.
type ExtractParser interface {
	Parse(raw string, fileName string) (domain.DocumentExtract, error)
}

// ExtractionPublisher announces finished extractions.
type ExtractionPublisher interface {
	PublishExtracted(ctx context.Context, event domain.ExtractionEvent) error
}
