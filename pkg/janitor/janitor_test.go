package janitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomstudio/loom/pkg/generation"
	"github.com/loomstudio/loom/pkg/storage"
)

func TestSweepFailsStalePending(t *testing.T) {
	store := storage.NewMemoryGenerationStore()

	require.NoError(t, store.SaveGeneration(generation.Generation{
		ID:        "gen-old",
		AccountID: "acct-1",
		Status:    generation.StatusPending,
		CreatedAt: time.Now().Add(-30 * time.Minute),
	}))
	require.NoError(t, store.SaveGeneration(generation.Generation{
		ID:        "gen-fresh",
		AccountID: "acct-1",
		Status:    generation.StatusPending,
		CreatedAt: time.Now(),
	}))
	require.NoError(t, store.SaveGeneration(generation.Generation{
		ID:        "gen-done",
		AccountID: "acct-1",
		Status:    generation.StatusCompleted,
		CreatedAt: time.Now().Add(-30 * time.Minute),
	}))

	j := New(store, "*/5 * * * *", 900)
	failed, err := j.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	old, err := store.GetGeneration("acct-1", "gen-old")
	require.NoError(t, err)
	assert.Equal(t, generation.StatusFailed, old.Status)
	assert.Equal(t, "generation timed out", old.ErrorMessage)

	fresh, err := store.GetGeneration("acct-1", "gen-fresh")
	require.NoError(t, err)
	assert.Equal(t, generation.StatusPending, fresh.Status)

	done, err := store.GetGeneration("acct-1", "gen-done")
	require.NoError(t, err)
	assert.Equal(t, generation.StatusCompleted, done.Status)
}

func TestSweepIsIdempotent(t *testing.T) {
	store := storage.NewMemoryGenerationStore()

	require.NoError(t, store.SaveGeneration(generation.Generation{
		ID:        "gen-old",
		AccountID: "acct-1",
		Status:    generation.StatusPending,
		CreatedAt: time.Now().Add(-time.Hour),
	}))

	j := New(store, "*/5 * * * *", 900)

	failed, err := j.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, failed)

	failed, err = j.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 0, failed)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	j := New(storage.NewMemoryGenerationStore(), "not a schedule", 900)
	assert.Error(t, j.Start())
}
