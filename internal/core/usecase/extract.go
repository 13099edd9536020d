package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
	"github.com/kirillkom/bol-extractor/internal/core/ports"
)

// ExtractionService builds the BOL prompt, calls the model and decodes its reply.
// Every failure is folded into the sentinel extract.
type ExtractionService struct {
	model     ports.ExtractionModel
	converter ports.TextConverter
	parser    ports.ExtractParser
}

func NewExtractionService(
	model ports.ExtractionModel,
	converter ports.TextConverter,
	parser ports.ExtractParser,
) *ExtractionService {
	return &ExtractionService{
		model:     model,
		converter: converter,
		parser:    parser,
	}
}

func (s *ExtractionService) ModelName() string {
	return s.model.Name()
}

func (s *ExtractionService) Extract(ctx context.Context, req domain.ExtractRequest) domain.DocumentExtract {
	start := time.Now()
	out, err := s.extract(ctx, req)
	if err != nil {
		slog.Error("extract_failed",
			"file_name", req.FileName,
			"mime_type", req.MimeType,
			"model", s.model.Name(),
			"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
			"error", err,
		)
		return domain.FailedExtract(req.FileName, err)
	}

	slog.Info("extract_completed",
		"file_name", out.FileName,
		"model", s.model.Name(),
		"fields", len(out.ExtractedData),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return out
}

func (s *ExtractionService) extract(ctx context.Context, req domain.ExtractRequest) (domain.DocumentExtract, error) {
	modelReq, err := s.prepare(ctx, req)
	if err != nil {
		return domain.DocumentExtract{}, err
	}

	reply, err := s.model.GenerateExtract(ctx, modelReq)
	if err != nil {
		return domain.DocumentExtract{}, fmt.Errorf("generate extract: %w", err)
	}

	out, err := s.parser.Parse(reply.Text, req.FileName)
	if err != nil {
		return domain.DocumentExtract{}, fmt.Errorf("parse model reply: %w", err)
	}
	return out, nil
}

func (s *ExtractionService) prepare(ctx context.Context, req domain.ExtractRequest) (domain.ModelRequest, error) {
	mimeType := normalizeMimeType(req.MimeType)

	var (
		additionalContext string
		attachment        *domain.Attachment
	)
	switch {
	case mimeType == "text/plain":
		if !utf8.Valid(req.Content) {
			return domain.ModelRequest{}, domain.NewKindError(domain.ErrInvalidInput, "Invalid UTF-8 text file.")
		}
		additionalContext = "Document content:\n" + string(req.Content)
	case s.model.SupportsInline(mimeType):
		attachment = &domain.Attachment{MimeType: mimeType, Data: req.Content}
	case s.converter != nil && s.converter.CanConvert(mimeType):
		text, err := s.converter.ConvertToText(ctx, req.FileName, mimeType, req.Content)
		if err != nil {
			return domain.ModelRequest{}, fmt.Errorf("convert %s to text: %w", mimeType, err)
		}
		additionalContext = "Document content:\n" + text
	default:
		return domain.ModelRequest{}, fmt.Errorf("unsupported document type %q for model %s", mimeType, s.model.Name())
	}

	return domain.ModelRequest{
		Prompt:     buildExtractionPrompt(req.FileName, additionalContext, req.Hints),
		Attachment: attachment,
	}, nil
}

func normalizeMimeType(raw string) string {
	raw = strings.TrimSpace(raw)
	if parsed, _, err := mime.ParseMediaType(raw); err == nil {
		return parsed
	}
	return strings.ToLower(raw)
}
