package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gregdel/pushover"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus-crane/crowdqueue/config"
	"github.com/marcus-crane/crowdqueue/models"
	"github.com/marcus-crane/crowdqueue/playback"
)

type fakeSender struct {
	mu       sync.Mutex
	messages []*pushover.Message
	sent     chan struct{}
	err      error
}

func (f *fakeSender) SendMessage(message *pushover.Message, recipient *pushover.Recipient) (*pushover.Response, error) {
	f.mu.Lock()
	f.messages = append(f.messages, message)
	f.mu.Unlock()
	if f.sent != nil {
		f.sent <- struct{}{}
	}
	return &pushover.Response{}, f.err
}

func testNotifier(s sender) *Notifier {
	return &Notifier{
		app:       s,
		recipient: pushover.NewRecipient("recipient"),
		now:       func() time.Time { return time.Unix(1700000000, 0) },
	}
}

func TestNewNotifier_RequiresCredentials(t *testing.T) {
	t.Parallel()
	assert.Nil(t, NewNotifier(config.PushoverConfig{}))
	assert.Nil(t, NewNotifier(config.PushoverConfig{Token: "abc"}))
	assert.NotNil(t, NewNotifier(config.PushoverConfig{Token: "abc", Recipient: "def"}))
}

func TestNowPlayingMessage(t *testing.T) {
	t.Parallel()
	n := testNotifier(&fakeSender{})

	msg := n.nowPlayingMessage(models.Item{Title: "Song", URL: "https://example.com/song", Votes: 3})
	assert.Equal(t, "Now playing", msg.Title)
	assert.Equal(t, "Song made it to the top of the queue with 3 votes", msg.Message)
	assert.Equal(t, "https://example.com/song", msg.URL)
	assert.Equal(t, int64(1700000000), msg.Timestamp)

	msg = n.nowPlayingMessage(models.Item{Title: "Song", Votes: 1})
	assert.Equal(t, "Song made it to the top of the queue with 1 vote", msg.Message)

	msg = n.nowPlayingMessage(models.Item{Title: "Song"})
	assert.Equal(t, "Song made it to the top of the queue with no votes", msg.Message)
}

func TestNowPlaying_WrapsSendErrors(t *testing.T) {
	t.Parallel()
	n := testNotifier(&fakeSender{err: errors.New("rate limited")})
	err := n.NowPlaying(models.Item{Title: "Song"})
	assert.ErrorContains(t, err, "rate limited")
}

func TestListener_OnlyNotifiesWhenPlaybackStarts(t *testing.T) {
	t.Parallel()
	s := &fakeSender{sent: make(chan struct{}, 4)}
	l := testNotifier(s).Listener()

	ctx := context.Background()
	l(ctx, playback.Event{Kind: playback.EventQueued, Item: models.Item{ID: "a"}})
	l(ctx, playback.Event{Kind: playback.EventStarted, Item: models.Item{ID: "b", Title: "B"}})

	select {
	case <-s.sent:
	case <-time.After(5 * time.Second):
		t.Fatal("notification was never sent")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	require.Len(t, s.messages, 1)
	assert.Equal(t, "B", s.messages[0].URLTitle)
}
