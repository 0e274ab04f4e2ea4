package repositories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOAuthStateCreateGeneratesUniqueTokens(t *testing.T) {
	repo := NewOAuthStateRepository(openTestDB(t))
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		token, err := repo.Create(ctx, time.Minute, "")
		require.NoError(t, err)
		require.NotEmpty(t, token)
		assert.GreaterOrEqual(t, len(token), 43, "token too short for 256 bits of entropy")
		assert.False(t, seen[token], "duplicate token generated")
		seen[token] = true
	}
}

func TestOAuthStateConsumeHappyPath(t *testing.T) {
	repo := NewOAuthStateRepository(openTestDB(t))
	ctx := context.Background()

	token, err := repo.Create(ctx, time.Minute, "/admin/projects")
	require.NoError(t, err)

	state, err := repo.Consume(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, token, state.Token)
	assert.Equal(t, "/admin/projects", state.ReturnTo)
	require.NotNil(t, state.ConsumedAt)
}

func TestOAuthStateConsumeUnknownToken(t *testing.T) {
	repo := NewOAuthStateRepository(openTestDB(t))

	_, err := repo.Consume(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOAuthStateConsumeRejectsReplay(t *testing.T) {
	repo := NewOAuthStateRepository(openTestDB(t))
	ctx := context.Background()

	token, err := repo.Create(ctx, time.Minute, "")
	require.NoError(t, err)

	_, err = repo.Consume(ctx, token)
	require.NoError(t, err)

	_, err = repo.Consume(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOAuthStateConsumeRejectsExpired(t *testing.T) {
	repo := NewOAuthStateRepository(openTestDB(t))
	ctx := context.Background()

	token, err := repo.Create(ctx, -time.Second, "")
	require.NoError(t, err)

	_, err = repo.Consume(ctx, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

// Concurrent callbacks presenting the same state token must resolve to
// exactly one winner.
func TestOAuthStateConsumeConcurrentSingleWinner(t *testing.T) {
	repo := NewOAuthStateRepository(openTestDB(t))
	ctx := context.Background()

	token, err := repo.Create(ctx, time.Minute, "")
	require.NoError(t, err)

	const callers = 16
	var wg sync.WaitGroup
	results := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Consume(ctx, token)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrNotFound)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestOAuthStateDeleteStale(t *testing.T) {
	repo := NewOAuthStateRepository(openTestDB(t))
	ctx := context.Background()

	live, err := repo.Create(ctx, time.Hour, "")
	require.NoError(t, err)

	_, err = repo.Create(ctx, -time.Second, "") // expired
	require.NoError(t, err)

	consumed, err := repo.Create(ctx, time.Hour, "")
	require.NoError(t, err)
	_, err = repo.Consume(ctx, consumed)
	require.NoError(t, err)

	removed, err := repo.DeleteStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	// The live state must survive cleanup and stay consumable.
	_, err = repo.Consume(ctx, live)
	assert.NoError(t, err)

	// A second sweep has nothing left but the now-consumed live state.
	removed, err = repo.DeleteStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
