package events

import (
	"encoding/json"
	"log/slog"

	"github.com/r3labs/sse/v2"

	"github.com/marcus-crane/crowdqueue/models"
)

const QueueStream = "queue"

var Server *sse.Server

func Init() {
	server := sse.New()
	server.AutoReplay = false
	server.CreateStream(QueueStream)
	Server = server
}

// PublishState pushes the full queue state to every subscriber. Clients
// replace their copy rather than applying deltas, so a dropped message is
// repaired by the next one.
func PublishState(state models.QueueState) {
	if Server == nil {
		return
	}
	if state.Queue == nil {
		state.Queue = []models.Item{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		slog.Error("Failed to encode queue state", slog.String("error", err.Error()))
		return
	}
	Server.Publish(QueueStream, &sse.Event{Data: data})
}
