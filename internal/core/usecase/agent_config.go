package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
	"github.com/kirillkom/bol-extractor/internal/core/ports"
)

type AgentConfigUseCase struct {
	store ports.AgentConfigStore
}

func NewAgentConfigUseCase(store ports.AgentConfigStore) *AgentConfigUseCase {
	return &AgentConfigUseCase{store: store}
}

// Configure overwrites the configuration wholesale. Empty values are valid.
func (uc *AgentConfigUseCase) Configure(ctx context.Context, cfg domain.AgentConfig) (domain.AgentConfig, error) {
	normalized := domain.NewAgentConfig(cfg.FieldsToExtract, cfg.SpecialInstructions)
	if err := uc.store.SaveAgentConfig(ctx, normalized); err != nil {
		return domain.AgentConfig{}, fmt.Errorf("save agent config: %w", err)
	}
	slog.Info("agent_config_updated",
		"fields", normalized.FieldsToExtract,
		"instructions_len", len(normalized.SpecialInstructions),
	)
	return normalized, nil
}

func (uc *AgentConfigUseCase) Current(ctx context.Context) (domain.AgentConfig, error) {
	cfg, err := uc.store.LoadAgentConfig(ctx)
	if err != nil {
		return domain.AgentConfig{}, fmt.Errorf("load agent config: %w", err)
	}
	return cfg, nil
}
