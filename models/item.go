package models

import "time"

// Item is a single submitted link. While it waits in the queue it is a
// candidate; once promoted it only exists as the active PlaybackEntry.
type Item struct {
	ID              string              `db:"id" json:"id"`
	SourceRef       string              `db:"source_ref" json:"source_ref"`
	URL             string              `db:"url" json:"url"`
	Title           string              `db:"title" json:"title"`
	Thumbnail       string              `db:"thumbnail_url" json:"thumbnail_url"`
	DominantColours SerializableColours `db:"dominant_colours" json:"dominant_colours"`
	Votes           int                 `db:"votes" json:"votes"`
	// CreatedAt is a strictly increasing submission sequence used to break
	// ties between equally voted items. It is not a wall clock time.
	CreatedAt int64 `db:"created_at" json:"-"`
}

// Metadata is the display information attached to an item after submission.
type Metadata struct {
	Title           string
	Thumbnail       string
	DominantColours SerializableColours
}

// PlaybackEntry records one promotion of an item. There is at most one active
// entry at a time and entries are never reactivated once finished.
type PlaybackEntry struct {
	PlaybackID      int64               `db:"playback_id" json:"-"`
	ID              string              `db:"id" json:"id"`
	SourceRef       string              `db:"source_ref" json:"source_ref"`
	URL             string              `db:"url" json:"url"`
	Title           string              `db:"title" json:"title"`
	Thumbnail       string              `db:"thumbnail_url" json:"thumbnail_url"`
	DominantColours SerializableColours `db:"dominant_colours" json:"dominant_colours"`
	Votes           int                 `db:"votes" json:"votes"`
	CreatedAt       int64               `db:"created_at" json:"-"`
	StartedAt       int64               `db:"started_at" json:"-"` // unix milliseconds
	FinishedAt      int64               `db:"finished_at" json:"-"`
	IsActive        bool                `db:"is_active" json:"is_active"`
}

func (p PlaybackEntry) Item() Item {
	return Item{
		ID:              p.ID,
		SourceRef:       p.SourceRef,
		URL:             p.URL,
		Title:           p.Title,
		Thumbnail:       p.Thumbnail,
		DominantColours: p.DominantColours,
		Votes:           p.Votes,
		CreatedAt:       p.CreatedAt,
	}
}

func (p PlaybackEntry) Response() ResponseHistoryItem {
	r := ResponseHistoryItem{
		OccuredAt:       time.UnixMilli(p.StartedAt).UTC().Format(time.RFC3339),
		ID:              p.ID,
		Title:           p.Title,
		URL:             p.URL,
		Thumbnail:       p.Thumbnail,
		Votes:           p.Votes,
		DominantColours: p.DominantColours,
	}
	if p.FinishedAt > 0 {
		r.FinishedAt = time.UnixMilli(p.FinishedAt).UTC().Format(time.RFC3339)
	}
	return r
}
