package domain

import (
	"context"
	"time"
)

// MemoryStore is the preferences/plan memory capability.
type MemoryStore interface {
	// SaveTurn appends one conversational turn under actor/session.
	SaveTurn(ctx context.Context, turn Turn) error

	// Retrieve returns up to max records relevant to query, best first.
	Retrieve(ctx context.Context, query string, max int) ([]MemoryRecord, error)

	// ListEvents returns the most recent turns for actor/session, newest first.
	ListEvents(ctx context.Context, actorID, sessionID string, max int) ([]Turn, error)

	Close() error
}

type Turn struct {
	ID            string    `json:"id"`
	MemoryID      string    `json:"memory_id"`
	ActorID       string    `json:"actor_id"`
	SessionID     string    `json:"session_id"`
	UserInput     string    `json:"user_input"`
	AgentResponse string    `json:"agent_response"`
	CreatedAt     time.Time `json:"created_at"`
}

// MemoryRecord is a retrieval hit.
type MemoryRecord struct {
	Turn  Turn    `json:"turn"`
	Score float64 `json:"score"`
}

func (r MemoryRecord) String() string {
	return r.Turn.UserInput + " => " + r.Turn.AgentResponse
}
