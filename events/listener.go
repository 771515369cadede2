package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/marcus-crane/crowdqueue/models"
	"github.com/marcus-crane/crowdqueue/playback"
)

type StateSource interface {
	State(ctx context.Context) (models.QueueState, error)
}

var (
	// publishMu spans reading the state and publishing it, so the last
	// message sent always carries the newest state.
	publishMu sync.Mutex
	publish   = PublishState
)

// QueueListener republishes the queue whenever the playback system reports a
// change.
func QueueListener(source StateSource) playback.Listener {
	return func(ctx context.Context, e playback.Event) {
		publishMu.Lock()
		defer publishMu.Unlock()

		state, err := source.State(ctx)
		if err != nil {
			slog.Error("Failed to load queue state for broadcast",
				slog.String("event", string(e.Kind)),
				slog.String("error", err.Error()),
			)
			return
		}
		publish(state)
	}
}
