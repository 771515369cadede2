package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus-crane/crowdqueue/db"
	"github.com/marcus-crane/crowdqueue/models"
	"github.com/marcus-crane/crowdqueue/playback"
)

type fakeMaintainer struct {
	refreshed int
	ensured   int
	err       error
}

func (f *fakeMaintainer) RefreshMetadata(ctx context.Context) error {
	f.refreshed++
	return f.err
}

func (f *fakeMaintainer) EnsurePlaying(ctx context.Context) error {
	f.ensured++
	return f.err
}

func TestSetupInBackground(t *testing.T) {
	s := SetupInBackground(&fakeMaintainer{})
	assert.Len(t, s.Jobs(), 2)
	assert.False(t, s.IsRunning())
}

func TestJobsSurviveErrors(t *testing.T) {
	m := &fakeMaintainer{err: errors.New("store offline")}
	assert.NotPanics(t, func() {
		BackfillMetadata(m)
		HealPlayback(m)
	})
	assert.Equal(t, 1, m.refreshed)
	assert.Equal(t, 1, m.ensured)
}

func TestHealPlayback_PromotesWaitingItem(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	ps := playback.NewPlaybackSystem(store, playback.Options{})

	// Inserted behind the playback system's back, so nothing promoted it
	require.NoError(t, store.Insert(ctx, models.Item{ID: "waiting", SourceRef: "web:x", URL: "https://x.example", Title: "x", CreatedAt: 1}))
	assert.Nil(t, ps.GetNowPlaying(ctx))

	HealPlayback(ps)

	playing := ps.GetNowPlaying(ctx)
	require.NotNil(t, playing)
	assert.Equal(t, "waiting", playing.ID)
}
