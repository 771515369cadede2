package db

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus-crane/crowdqueue/models"
)

// exerciseStore runs the behaviour every Store implementation must share.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	a := models.Item{ID: "a", SourceRef: "youtube:aaaaaaaaaaa", URL: "https://youtu.be/aaaaaaaaaaa", Title: "Unknown Title", CreatedAt: 1}
	b := models.Item{ID: "b", SourceRef: "youtube:bbbbbbbbbbb", URL: "https://youtu.be/bbbbbbbbbbb", Title: "b side", CreatedAt: 2}
	c := models.Item{ID: "c", SourceRef: "youtube:ccccccccccc", URL: "https://youtu.be/ccccccccccc", Title: "c side", CreatedAt: 3}
	for _, item := range []models.Item{a, b, c} {
		require.NoError(t, s.Insert(ctx, item))
	}

	t.Run("snapshot is ranked", func(t *testing.T) {
		votes, err := s.Increment(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, 1, votes)

		items, err := Snapshot(ctx, s)
		require.NoError(t, err)
		require.Len(t, items, 3)
		assert.Equal(t, "c", items[0].ID)
		assert.Equal(t, "a", items[1].ID)
		assert.Equal(t, "b", items[2].ID)
	})

	t.Run("concurrent votes are not lost", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Increment(ctx, "b")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		items, err := s.Scan(ctx)
		require.NoError(t, err)
		for _, item := range items {
			if item.ID == "b" {
				assert.Equal(t, 25, item.Votes)
			}
		}
	})

	t.Run("metadata updates in place", func(t *testing.T) {
		err := s.UpdateMetadata(ctx, "a", models.Metadata{Title: "a side", DominantColours: models.SerializableColours{"#abc123"}})
		require.NoError(t, err)
		items, err := s.Scan(ctx)
		require.NoError(t, err)
		for _, item := range items {
			if item.ID == "a" {
				assert.Equal(t, "a side", item.Title)
				assert.Equal(t, models.SerializableColours{"#abc123"}, item.DominantColours)
			}
		}
		assert.ErrorIs(t, s.UpdateMetadata(ctx, "nope", models.Metadata{Title: "x"}), ErrNotFound)
	})

	t.Run("remove then vote is not found", func(t *testing.T) {
		removed, err := s.Remove(ctx, "c")
		require.NoError(t, err)
		assert.Equal(t, "c side", removed.Title)
		assert.Equal(t, 1, removed.Votes)

		_, err = s.Remove(ctx, "c")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Increment(ctx, "c")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("promote moves an item into playback", func(t *testing.T) {
		active, err := s.Active(ctx)
		require.NoError(t, err)
		assert.Nil(t, active)

		item, err := s.Promote(ctx, "b", 1000)
		require.NoError(t, err)
		assert.Equal(t, 25, item.Votes)

		_, err = s.Promote(ctx, "b", 1001)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = s.Increment(ctx, "b")
		assert.ErrorIs(t, err, ErrNotFound)

		active, err = s.Active(ctx)
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, "b", active.ID)
		assert.True(t, active.IsActive)
		assert.Equal(t, int64(1000), active.StartedAt)

		// Late metadata still reaches the playing entry
		require.NoError(t, s.UpdateMetadata(ctx, "b", models.Metadata{Title: "b side (live)"}))
		active, err = s.Active(ctx)
		require.NoError(t, err)
		assert.Equal(t, "b side (live)", active.Title)

		items, err := s.Scan(ctx)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "a", items[0].ID)
	})

	t.Run("finish closes the entry once", func(t *testing.T) {
		require.NoError(t, s.Finish(ctx, "b", 2000))
		assert.ErrorIs(t, s.Finish(ctx, "b", 2001), ErrNotFound)

		active, err := s.Active(ctx)
		require.NoError(t, err)
		assert.Nil(t, active)

		history, err := s.History(ctx, 5)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "b", history[0].ID)
		assert.False(t, history[0].IsActive)
		assert.Equal(t, int64(2000), history[0].FinishedAt)

		_, err = s.History(ctx, 0)
		assert.Error(t, err)
	})
}
