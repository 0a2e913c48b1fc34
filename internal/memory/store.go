package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"activityplanner/internal/domain"
)

// SQLiteStore implements domain.MemoryStore using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	memoryID string
	maxScan  int
	logger   *slog.Logger
}

// SQLiteConfig configures the SQLite memory backend.
type SQLiteConfig struct {
	DBPath   string
	MemoryID string // namespace searched by Retrieve
	MaxScan  int    // most recent turns considered per Retrieve
	Logger   *slog.Logger
}

func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxScan <= 0 {
		cfg.MaxScan = 500
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := Migrate(context.Background(), db, cfg.Logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return &SQLiteStore{
		db:       db,
		memoryID: cfg.MemoryID,
		maxScan:  cfg.MaxScan,
		logger:   cfg.Logger,
	}, nil
}

func (s *SQLiteStore) SaveTurn(ctx context.Context, turn domain.Turn) error {
	turn = normalize(turn, s.memoryID)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, memory_id, actor_id, session_id, user_input, agent_response, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		turn.ID, turn.MemoryID, turn.ActorID, turn.SessionID, turn.UserInput, turn.AgentResponse, turn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Retrieve(ctx context.Context, query string, max int) ([]domain.MemoryRecord, error) {
	turns, err := s.query(ctx,
		`SELECT id, memory_id, actor_id, session_id, user_input, agent_response, created_at
		 FROM events WHERE memory_id = ? ORDER BY seq DESC LIMIT ?`,
		s.memoryID, s.maxScan,
	)
	if err != nil {
		return nil, err
	}
	return Rank(query, turns, max), nil
}

func (s *SQLiteStore) ListEvents(ctx context.Context, actorID, sessionID string, max int) ([]domain.Turn, error) {
	if max <= 0 {
		max = 20
	}
	return s.query(ctx,
		`SELECT id, memory_id, actor_id, session_id, user_input, agent_response, created_at
		 FROM events WHERE memory_id = ? AND actor_id = ? AND session_id = ?
		 ORDER BY seq DESC LIMIT ?`,
		s.memoryID, actorID, sessionID, max,
	)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]domain.Turn, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var t domain.Turn
		if err := rows.Scan(&t.ID, &t.MemoryID, &t.ActorID, &t.SessionID, &t.UserInput, &t.AgentResponse, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// normalize fills the id, namespace and timestamp of a turn being saved.
func normalize(t domain.Turn, memoryID string) domain.Turn {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.MemoryID == "" {
		t.MemoryID = memoryID
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	return t
}
