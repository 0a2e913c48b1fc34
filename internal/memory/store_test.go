package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"activityplanner/internal/domain"
)

const preferencesQuery = "What are the user's activity preferences and interests?"

// runStoreContract exercises the behaviour both backends must share.
func runStoreContract(t *testing.T, store domain.MemoryStore) {
	ctx := context.Background()

	t.Run("empty retrieve", func(t *testing.T) {
		hits, err := store.Retrieve(ctx, preferencesQuery, 5)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	save := func(actor, session, in, out string) {
		require.NoError(t, store.SaveTurn(ctx, domain.Turn{
			ActorID: actor, SessionID: session, UserInput: in, AgentResponse: out,
		}))
	}
	save("user123", "session456", "My preferences: hiking and kayaking", "Preferences saved")
	save("user123", "session456", "Plan for Richmond VA", "Saturday: James River trail")
	save("user123", "other", "My preferences: museums", "Preferences saved")

	t.Run("retrieve ranks preference turns", func(t *testing.T) {
		hits, err := store.Retrieve(ctx, preferencesQuery, 5)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, "My preferences: museums", hits[0].Turn.UserInput, "newest first on equal score")
		assert.Equal(t, "My preferences: hiking and kayaking", hits[1].Turn.UserInput)
		assert.Greater(t, hits[0].Score, 0.0)
		assert.NotEmpty(t, hits[0].Turn.ID)
		assert.Equal(t, "mem-1", hits[0].Turn.MemoryID)
	})

	t.Run("retrieve honours max", func(t *testing.T) {
		hits, err := store.Retrieve(ctx, preferencesQuery, 1)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})

	t.Run("list events by session", func(t *testing.T) {
		turns, err := store.ListEvents(ctx, "user123", "session456", 10)
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, "Plan for Richmond VA", turns[0].UserInput)
		assert.False(t, turns[0].CreatedAt.IsZero())

		turns, err = store.ListEvents(ctx, "user123", "session456", 1)
		require.NoError(t, err)
		assert.Len(t, turns, 1)

		turns, err = store.ListEvents(ctx, "nobody", "session456", 10)
		require.NoError(t, err)
		assert.Empty(t, turns)
	})
}

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := NewSQLiteStore(SQLiteConfig{
		DBPath:   filepath.Join(t.TempDir(), "nested", "memory.db"),
		MemoryID: "mem-1",
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	runStoreContract(t, store)
}

func TestRedisStore_Contract(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, RedisConfig{MemoryID: "mem-1", Logger: testLogger()})
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.Ping(context.Background()))
	runStoreContract(t, store)
	assert.True(t, mr.Exists("planner:memory:mem-1:events"))
}

func TestSQLiteStore_ConcurrentSaves(t *testing.T) {
	store, err := NewSQLiteStore(SQLiteConfig{
		DBPath:   filepath.Join(t.TempDir(), "memory.db"),
		MemoryID: "mem-1",
		Logger:   testLogger(),
	})
	require.NoError(t, err)
	defer store.Close()

	const n = 10
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			errs <- store.SaveTurn(context.Background(), domain.Turn{
				ActorID: "a", SessionID: "s",
				UserInput: fmt.Sprintf("Plan for city %d", i), AgentResponse: "plan",
			})
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}

	turns, err := store.ListEvents(context.Background(), "a", "s", 100)
	require.NoError(t, err)
	assert.Len(t, turns, n)
}

func TestRank(t *testing.T) {
	now := time.Now()
	turns := []domain.Turn{
		{UserInput: "Plan for Boston", AgentResponse: "museums", CreatedAt: now},
		{UserInput: "My preferences: beaches", AgentResponse: "Preferences saved", CreatedAt: now.Add(-time.Hour)},
		{UserInput: "My activity preferences and interests: climbing", AgentResponse: "Preferences saved", CreatedAt: now.Add(-2 * time.Hour)},
	}

	hits := Rank(preferencesQuery, turns, 5)
	require.Len(t, hits, 2)
	assert.Contains(t, hits[0].Turn.UserInput, "climbing")
	assert.Contains(t, hits[1].Turn.UserInput, "beaches")

	assert.Nil(t, Rank("a an of", turns, 5))
	assert.Nil(t, Rank(preferencesQuery, turns, 0))
}
