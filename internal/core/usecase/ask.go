package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
	"github.com/kirillkom/bol-extractor/internal/core/ports"
)

type QuestionUseCase struct {
	store ports.DocumentStore
}

func NewQuestionUseCase(store ports.DocumentStore) *QuestionUseCase {
	return &QuestionUseCase{store: store}
}

// Ask checks the document exists and answers with the disabled-feature message.
// No model is consulted.
func (uc *QuestionUseCase) Ask(ctx context.Context, fileName, question string) (*domain.Answer, error) {
	slog.Info("ask_question", "file_name", fileName, "question_len", len(question))

	if strings.TrimSpace(fileName) == "" || strings.TrimSpace(question) == "" {
		return nil, domain.NewKindError(domain.ErrInvalidInput, "File name and question are required.")
	}

	if _, err := uc.store.Get(ctx, fileName); err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return nil, domain.NewKindError(domain.ErrDocumentNotFound, "Document '%s' not found.", fileName)
		}
		return nil, fmt.Errorf("load document: %w", err)
	}

	return &domain.Answer{
		FileName: fileName,
		Question: question,
		Answer:   domain.QADisabledAnswer,
	}, nil
}
