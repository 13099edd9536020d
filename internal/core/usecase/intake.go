package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
	"github.com/kirillkom/bol-extractor/internal/core/ports"
)

type IntakeOptions struct {
	// HonorHints wires setup instructions/target fields and the stored agent configuration
	// into the prompt. Off by default: the hints are accepted and ignored.
	HonorHints bool
	ModelName  string
}

type DocumentIntakeUseCase struct {
	store     ports.DocumentStore
	configs   ports.AgentConfigStore
	extractor ports.DocumentExtractor
	publisher ports.ExtractionPublisher
	opts      IntakeOptions
}

func NewDocumentIntakeUseCase(
	store ports.DocumentStore,
	configs ports.AgentConfigStore,
	extractor ports.DocumentExtractor,
	publisher ports.ExtractionPublisher,
	opts IntakeOptions,
) *DocumentIntakeUseCase {
	return &DocumentIntakeUseCase{
		store:     store,
		configs:   configs,
		extractor: extractor,
		publisher: publisher,
		opts:      opts,
	}
}

func (uc *DocumentIntakeUseCase) SetupUploadExtract(ctx context.Context, in ports.UploadInput) (*domain.DocumentExtract, error) {
	if err := uc.storeUpload(ctx, in); err != nil {
		return nil, err
	}

	var hints domain.ExtractionHints
	if uc.opts.HonorHints {
		hints = domain.ExtractionHints{TargetFields: in.TargetFields, Instructions: in.SpecialInstructions}
	} else if len(in.TargetFields) > 0 || strings.TrimSpace(in.SpecialInstructions) != "" {
		slog.Debug("setup_hints_ignored",
			"file_name", in.FileName,
			"target_fields", len(in.TargetFields),
			"instructions_len", len(in.SpecialInstructions),
		)
	}

	return uc.extract(ctx, domain.StageSetup, in, hints), nil
}

func (uc *DocumentIntakeUseCase) ProcessDocument(ctx context.Context, in ports.UploadInput) (*domain.DocumentExtract, error) {
	if err := uc.storeUpload(ctx, in); err != nil {
		return nil, err
	}

	var hints domain.ExtractionHints
	if uc.opts.HonorHints {
		cfg, err := uc.configs.LoadAgentConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("load agent config: %w", err)
		}
		hints = cfg.Hints()
	}

	return uc.extract(ctx, domain.StageDeploy, in, hints), nil
}

func (uc *DocumentIntakeUseCase) storeUpload(ctx context.Context, in ports.UploadInput) error {
	if strings.TrimSpace(in.FileName) == "" || strings.TrimSpace(in.MimeType) == "" {
		return domain.NewKindError(domain.ErrInvalidInput, "Filename and content type are required.")
	}

	err := uc.store.Put(ctx, domain.StoredDocument{
		FileName: in.FileName,
		MimeType: in.MimeType,
		Content:  in.Content,
	})
	if err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	return nil
}

func (uc *DocumentIntakeUseCase) extract(
	ctx context.Context,
	stage domain.ExtractionStage,
	in ports.UploadInput,
	hints domain.ExtractionHints,
) *domain.DocumentExtract {
	start := time.Now()
	result := uc.extractor.Extract(ctx, domain.ExtractRequest{
		FileName: in.FileName,
		MimeType: in.MimeType,
		Content:  in.Content,
		Hints:    hints,
	})

	if uc.publisher != nil {
		event := domain.ExtractionEvent{
			ID:         uuid.NewString(),
			FileName:   in.FileName,
			MimeType:   in.MimeType,
			Stage:      stage,
			FieldCount: len(result.ExtractedData),
			Failed:     result.Failed(),
			Model:      uc.opts.ModelName,
			At:         time.Now().UTC(),

			DurationSeconds: time.Since(start).Seconds(),
		}
		if err := uc.publisher.PublishExtracted(ctx, event); err != nil {
			slog.Warn("extraction_event_publish_failed", "file_name", in.FileName, "stage", stage, "error", err)
		}
	}
	return &result
}
