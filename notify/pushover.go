package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gregdel/pushover"

	"github.com/marcus-crane/crowdqueue/config"
	"github.com/marcus-crane/crowdqueue/models"
	"github.com/marcus-crane/crowdqueue/playback"
)

type sender interface {
	SendMessage(message *pushover.Message, recipient *pushover.Recipient) (*pushover.Response, error)
}

type Notifier struct {
	app       sender
	recipient *pushover.Recipient
	now       func() time.Time
}

// NewNotifier returns nil when Pushover has not been configured.
func NewNotifier(cfg config.PushoverConfig) *Notifier {
	if cfg.Token == "" || cfg.Recipient == "" {
		return nil
	}
	return &Notifier{
		app:       pushover.New(cfg.Token),
		recipient: pushover.NewRecipient(cfg.Recipient),
		now:       time.Now,
	}
}

func (n *Notifier) NowPlaying(item models.Item) error {
	_, err := n.app.SendMessage(n.nowPlayingMessage(item), n.recipient)
	if err != nil {
		return fmt.Errorf("failed to send now playing notification: %w", err)
	}
	return nil
}

func (n *Notifier) nowPlayingMessage(item models.Item) *pushover.Message {
	votes := "no votes"
	if item.Votes == 1 {
		votes = "1 vote"
	} else if item.Votes > 1 {
		votes = fmt.Sprintf("%d votes", item.Votes)
	}
	return &pushover.Message{
		Message:    fmt.Sprintf("%s made it to the top of the queue with %s", item.Title, votes),
		Title:      "Now playing",
		Priority:   pushover.PriorityLow,
		URL:        item.URL,
		URLTitle:   item.Title,
		Timestamp:  n.now().Unix(),
		DeviceName: "Crowdqueue",
	}
}

// Listener sends a notification each time an item starts playing. Delivery
// happens in the background so a slow Pushover API never holds up a request.
func (n *Notifier) Listener() playback.Listener {
	return func(ctx context.Context, e playback.Event) {
		if e.Kind != playback.EventStarted {
			return
		}
		item := e.Item
		go func() {
			if err := n.NowPlaying(item); err != nil {
				slog.Error("Failed to notify", slog.String("item_id", item.ID), slog.String("error", err.Error()))
			}
		}()
	}
}
