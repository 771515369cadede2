package models

import (
	"database/sql/driver"
	"errors"
	"strings"
)

// SerializableColours is a custom DB extension type that stores
// a string slice as a comma separate value in the database
// Example input: []string{"#020304", "#6581be"}
// Example DB value: #020304,#6581be
type SerializableColours []string

func (s SerializableColours) Value() (driver.Value, error) {
	return strings.Join(s, ","), nil
}

func (s *SerializableColours) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*s = SerializableColours{}
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return errors.New("incompatible type for SerializableColours")
	}
	if raw == "" {
		*s = SerializableColours{}
		return nil
	}
	*s = SerializableColours(strings.Split(raw, ","))
	return nil
}

type ResponseMessage struct {
	Message string `json:"message"`
}

// ResponseVote reports the outcome of a vote. Applied is false when the item
// had already left the queue, which callers should treat as a no-op.
type ResponseVote struct {
	ID      string `json:"id"`
	Votes   int    `json:"votes"`
	Applied bool   `json:"applied"`
}

type ResponseHistoryItem struct {
	OccuredAt       string              `json:"occurred_at"`
	FinishedAt      string              `json:"finished_at,omitempty"`
	ID              string              `json:"id"`
	Title           string              `json:"title"`
	URL             string              `json:"url"`
	Thumbnail       string              `json:"thumbnail_url"`
	Votes           int                 `json:"votes"`
	DominantColours SerializableColours `json:"dominant_colours"`
}

// QueueState is the payload pushed to event subscribers whenever the queue
// or the playing item changes.
type QueueState struct {
	NowPlaying *Item  `json:"now_playing"`
	Queue      []Item `json:"queue"`
}
