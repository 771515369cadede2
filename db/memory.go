package db

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/exp/maps"

	"github.com/marcus-crane/crowdqueue/models"
)

type MemoryStore struct {
	m       *sync.Mutex
	items   map[string]models.Item
	history []models.PlaybackEntry
	nextID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:     new(sync.Mutex),
		items: map[string]models.Item{},
	}
}

func (ms *MemoryStore) Insert(ctx context.Context, item models.Item) error {
	ms.m.Lock()
	defer ms.m.Unlock()
	if _, ok := ms.items[item.ID]; ok {
		return fmt.Errorf("item %s already exists", item.ID)
	}
	ms.items[item.ID] = item
	return nil
}

func (ms *MemoryStore) Increment(ctx context.Context, id string) (int, error) {
	ms.m.Lock()
	defer ms.m.Unlock()
	item, ok := ms.items[id]
	if !ok {
		return 0, ErrNotFound
	}
	item.Votes++
	ms.items[id] = item
	return item.Votes, nil
}

func (ms *MemoryStore) Remove(ctx context.Context, id string) (models.Item, error) {
	ms.m.Lock()
	defer ms.m.Unlock()
	item, ok := ms.items[id]
	if !ok {
		return models.Item{}, ErrNotFound
	}
	delete(ms.items, id)
	return item, nil
}

func (ms *MemoryStore) Scan(ctx context.Context) ([]models.Item, error) {
	ms.m.Lock()
	defer ms.m.Unlock()
	return maps.Values(ms.items), nil
}

func (ms *MemoryStore) UpdateMetadata(ctx context.Context, id string, meta models.Metadata) error {
	ms.m.Lock()
	defer ms.m.Unlock()
	if item, ok := ms.items[id]; ok {
		item.Title = meta.Title
		item.Thumbnail = meta.Thumbnail
		item.DominantColours = meta.DominantColours
		ms.items[id] = item
		return nil
	}
	if idx := ms.activeIndex(); idx >= 0 && ms.history[idx].ID == id {
		ms.history[idx].Title = meta.Title
		ms.history[idx].Thumbnail = meta.Thumbnail
		ms.history[idx].DominantColours = meta.DominantColours
		return nil
	}
	return ErrNotFound
}

func (ms *MemoryStore) Promote(ctx context.Context, id string, startedAt int64) (models.Item, error) {
	ms.m.Lock()
	defer ms.m.Unlock()
	item, ok := ms.items[id]
	if !ok {
		return models.Item{}, ErrNotFound
	}
	delete(ms.items, id)
	ms.nextID++
	ms.history = append(ms.history, models.PlaybackEntry{
		PlaybackID:      ms.nextID,
		ID:              item.ID,
		SourceRef:       item.SourceRef,
		URL:             item.URL,
		Title:           item.Title,
		Thumbnail:       item.Thumbnail,
		DominantColours: item.DominantColours,
		Votes:           item.Votes,
		CreatedAt:       item.CreatedAt,
		StartedAt:       startedAt,
		IsActive:        true,
	})
	return item, nil
}

func (ms *MemoryStore) Finish(ctx context.Context, id string, finishedAt int64) error {
	ms.m.Lock()
	defer ms.m.Unlock()
	idx := ms.activeIndex()
	if idx < 0 || ms.history[idx].ID != id {
		return ErrNotFound
	}
	ms.history[idx].IsActive = false
	ms.history[idx].FinishedAt = finishedAt
	return nil
}

func (ms *MemoryStore) Active(ctx context.Context) (*models.PlaybackEntry, error) {
	ms.m.Lock()
	defer ms.m.Unlock()
	idx := ms.activeIndex()
	if idx < 0 {
		return nil, nil
	}
	entry := ms.history[idx]
	return &entry, nil
}

func (ms *MemoryStore) History(ctx context.Context, limit int) ([]models.PlaybackEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("must request at least one historical item")
	}
	ms.m.Lock()
	defer ms.m.Unlock()
	results := []models.PlaybackEntry{}
	for i := len(ms.history) - 1; i >= 0 && len(results) < limit; i-- {
		if !ms.history[i].IsActive {
			results = append(results, ms.history[i])
		}
	}
	return results, nil
}

func (ms *MemoryStore) Close() error {
	return nil
}

// activeIndex must be called with the lock held.
func (ms *MemoryStore) activeIndex() int {
	for i := len(ms.history) - 1; i >= 0; i-- {
		if ms.history[i].IsActive {
			return i
		}
	}
	return -1
}
