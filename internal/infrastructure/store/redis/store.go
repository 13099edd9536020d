package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirillkom/bol-extractor/internal/core/domain"
)

const (
	docKeyPrefix   = "bolx:doc:"
	agentConfigKey = "bolx:agent_config"
)

// Store keeps documents as hashes (content, mime_type) and the agent configuration as JSON.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// Open builds a client and checks the server answers.
func Open(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// New wraps rdb. A positive ttl expires documents; the agent configuration never expires.
func New(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func docKey(fileName string) string {
	return docKeyPrefix + fileName
}

func (s *Store) Put(ctx context.Context, doc domain.StoredDocument) error {
	key := docKey(doc.FileName)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "content", doc.Content, "mime_type", doc.MimeType)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		} else {
			pipe.Persist(ctx, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", doc.FileName, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, fileName string) (*domain.StoredDocument, error) {
	vals, err := s.rdb.HGetAll(ctx, docKey(fileName)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", fileName, err)
	}
	if len(vals) == 0 {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "redis get", fmt.Errorf("file_name=%s", fileName))
	}
	return &domain.StoredDocument{
		FileName: fileName,
		MimeType: vals["mime_type"],
		Content:  []byte(vals["content"]),
	}, nil
}

func (s *Store) SaveAgentConfig(ctx context.Context, cfg domain.AgentConfig) error {
	if cfg.FieldsToExtract == nil {
		cfg.FieldsToExtract = []string{}
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal agent config: %w", err)
	}
	if err := s.rdb.Set(ctx, agentConfigKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis save agent config: %w", err)
	}
	return nil
}

func (s *Store) LoadAgentConfig(ctx context.Context) (domain.AgentConfig, error) {
	raw, err := s.rdb.Get(ctx, agentConfigKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewAgentConfig(nil, ""), nil
	}
	if err != nil {
		return domain.AgentConfig{}, fmt.Errorf("redis load agent config: %w", err)
	}

	var cfg domain.AgentConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.AgentConfig{}, fmt.Errorf("decode agent config: %w", err)
	}
	if cfg.FieldsToExtract == nil {
		cfg.FieldsToExtract = []string{}
	}
	return cfg, nil
}
