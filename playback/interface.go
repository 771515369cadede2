package playback

import (
	"context"
	"errors"

	"github.com/marcus-crane/crowdqueue/models"
)

// ErrDuplicateSubmission is returned when duplicate rejection is enabled and
// the same link is already waiting in the queue.
var ErrDuplicateSubmission = errors.New("link is already queued")

type System interface {
	SubmitItem(ctx context.Context, rawURL string) (models.Item, error)
	ListQueue(ctx context.Context) ([]models.Item, error)
	GetNowPlaying(ctx context.Context) *models.Item
	Vote(ctx context.Context, id string) (int, error)
	RemoveItem(ctx context.Context, id string) (models.Item, error)
	SignalFinished(ctx context.Context, id string) error
	GetHistory(ctx context.Context, limit int) ([]models.PlaybackEntry, error)
	State(ctx context.Context) (models.QueueState, error)
}

type Status string

const (
	StatusIdle    Status = "idle"
	StatusPlaying Status = "playing"
)

type EventKind string

const (
	EventQueued   EventKind = "queued"
	EventVoted    EventKind = "voted"
	EventRemoved  EventKind = "removed"
	EventStarted  EventKind = "started"
	EventFinished EventKind = "finished"
	EventUpdated  EventKind = "updated"
)

// Event describes a change that has already been applied. Listeners run after
// the system has released its lock so they may call back into it.
type Event struct {
	Kind  EventKind
	Item  models.Item
	Votes int
}

type Listener func(ctx context.Context, e Event)
