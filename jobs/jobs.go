package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

const (
	backfillInterval = 30 * time.Second
	healInterval     = 10 * time.Second
	jobTimeout       = 20 * time.Second
)

type Maintainer interface {
	RefreshMetadata(ctx context.Context) error
	EnsurePlaying(ctx context.Context) error
}

func SetupInBackground(m Maintainer) *gocron.Scheduler {
	s := gocron.NewScheduler(time.UTC)

	s.Every(backfillInterval).SingletonMode().Do(BackfillMetadata, m)
	s.Every(healInterval).SingletonMode().Do(HealPlayback, m)

	slog.Info("Jobs scheduled. Scheduler not running yet.")

	return s
}

// BackfillMetadata retries lookups for items that were queued while their
// provider was unavailable.
func BackfillMetadata(m Maintainer) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := m.RefreshMetadata(ctx); err != nil {
		slog.Error("Metadata backfill failed", slog.String("error", err.Error()))
	}
}

// HealPlayback promotes the ranked head if an earlier promotion failed and
// left the queue idle with candidates waiting.
func HealPlayback(m Maintainer) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := m.EnsurePlaying(ctx); err != nil {
		slog.Error("Failed to resume playback", slog.String("error", err.Error()))
	}
}
