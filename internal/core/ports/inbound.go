package ports

import (
	"context"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
)

// UploadInput is a file received by one of the upload endpoints.
type UploadInput struct {
	FileName string
	MimeType string
	Content  []byte

	// Setup-only hints. Ignored unless hint support is enabled.
	SpecialInstructions string
	TargetFields        []string
}

// DocumentIntake is the inbound contract for upload-and-extract flows.
type DocumentIntake interface {
	SetupUploadExtract(ctx context.Context, in UploadInput) (*domain.DocumentExtract, error)
	ProcessDocument(ctx context.Context, in UploadInput) (*domain.DocumentExtract, error)
}

// AgentConfigurator overwrites and reads the process-wide agent configuration.
type AgentConfigurator interface {
	Configure(ctx context.Context, cfg domain.AgentConfig) (domain.AgentConfig, error)
	Current(ctx context.Context) (domain.AgentConfig, error)
}

// QuestionAnswerer answers follow-up questions about stored documents.
type QuestionAnswerer interface {
	Ask(ctx context.Context, fileName, question string) (*domain.Answer, error)
}

// DocumentExtractor turns raw bytes into a DocumentExtract. It never fails: errors are folded
// into the sentinel extract.
type DocumentExtractor interface {
	Extract(ctx context.Context, req domain.ExtractRequest) domain.DocumentExtract
}
