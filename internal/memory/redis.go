package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	backend "github.com/redis/go-redis/v9"

	"activityplanner/internal/domain"
)

// RedisStore implements domain.MemoryStore on Redis lists: one list per
// memory namespace for retrieval and one per actor/session for listing,
// both newest first.
type RedisStore struct {
	client   *backend.Client
	prefix   string
	memoryID string
	maxScan  int
	logger   *slog.Logger
}

// RedisConfig configures the Redis memory backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	MemoryID string
	MaxScan  int
	Logger   *slog.Logger
}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	return NewRedisStoreFromClient(backend.NewClient(&backend.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg)
}

// NewRedisStoreFromClient wraps an existing client; connection fields of cfg
// are ignored.
func NewRedisStoreFromClient(client *backend.Client, cfg RedisConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = "planner:memory:"
	}
	if cfg.MaxScan <= 0 {
		cfg.MaxScan = 500
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RedisStore{
		client:   client,
		prefix:   cfg.Prefix,
		memoryID: cfg.MemoryID,
		maxScan:  cfg.MaxScan,
		logger:   cfg.Logger,
	}
}

func (s *RedisStore) memoryKey(memoryID string) string {
	return s.prefix + memoryID + ":events"
}

func (s *RedisStore) sessionKey(memoryID, actorID, sessionID string) string {
	return s.prefix + memoryID + ":actor:" + actorID + ":session:" + sessionID
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) SaveTurn(ctx context.Context, turn domain.Turn) error {
	turn = normalize(turn, s.memoryID)
	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.memoryKey(turn.MemoryID), data)
	pipe.LPush(ctx, s.sessionKey(turn.MemoryID, turn.ActorID, turn.SessionID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Retrieve(ctx context.Context, query string, max int) ([]domain.MemoryRecord, error) {
	turns, err := s.load(ctx, s.memoryKey(s.memoryID), s.maxScan)
	if err != nil {
		return nil, err
	}
	return Rank(query, turns, max), nil
}

func (s *RedisStore) ListEvents(ctx context.Context, actorID, sessionID string, max int) ([]domain.Turn, error) {
	if max <= 0 {
		max = 20
	}
	return s.load(ctx, s.sessionKey(s.memoryID, actorID, sessionID), max)
}

func (s *RedisStore) load(ctx context.Context, key string, n int) ([]domain.Turn, error) {
	vals, err := s.client.LRange(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}
	turns := make([]domain.Turn, 0, len(vals))
	for _, v := range vals {
		var t domain.Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			s.logger.Warn("skipping corrupt memory event", "key", key, "err", err)
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Close closes the redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
