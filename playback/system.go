package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcus-crane/crowdqueue/config"
	"github.com/marcus-crane/crowdqueue/db"
	"github.com/marcus-crane/crowdqueue/metadata"
	"github.com/marcus-crane/crowdqueue/models"
	"github.com/marcus-crane/crowdqueue/ranking"
)

// Attempts to claim a head that keeps disappearing to concurrent removals
// before promotion is abandoned until the next trigger.
const maxPromoteAttempts = 10

type Options struct {
	Resolver         metadata.Resolver
	PlaceholderTitle string
	RejectDuplicates bool
	ResolveTimeout   time.Duration
}

// PlaybackSystem owns the playing slot. Every promotion, and every insert
// that must be checked for duplicates, happens while holding m so that the
// head of the ranking can only be claimed once.
type PlaybackSystem struct {
	store            db.Store
	resolver         metadata.Resolver
	placeholder      string
	rejectDuplicates bool
	resolveTimeout   time.Duration
	now              func() time.Time

	m          sync.Mutex
	nowPlaying *models.Item
	lastSeq    int64

	lm        sync.RWMutex
	listeners []Listener
}

func NewPlaybackSystem(store db.Store, opts Options) *PlaybackSystem {
	ps := &PlaybackSystem{
		store:            store,
		resolver:         opts.Resolver,
		placeholder:      opts.PlaceholderTitle,
		rejectDuplicates: opts.RejectDuplicates,
		resolveTimeout:   opts.ResolveTimeout,
		now:              time.Now,
	}
	if ps.placeholder == "" {
		ps.placeholder = config.DefaultPlaceholderTitle
	}
	if ps.resolveTimeout <= 0 {
		ps.resolveTimeout = 5 * time.Second
	}
	return ps
}

func (ps *PlaybackSystem) Subscribe(l Listener) {
	ps.lm.Lock()
	defer ps.lm.Unlock()
	ps.listeners = append(ps.listeners, l)
}

// Restore reloads the playing item after a restart and promotes the next
// candidate if nothing was playing.
func (ps *PlaybackSystem) Restore(ctx context.Context) error {
	ps.m.Lock()

	active, err := ps.store.Active(ctx)
	if err != nil {
		ps.m.Unlock()
		return err
	}
	if active != nil {
		item := active.Item()
		ps.nowPlaying = &item
		ps.lastSeq = max(ps.lastSeq, item.CreatedAt)
		slog.Info("Restored playing item", slog.String("item_id", item.ID), slog.String("title", item.Title))
	}

	items, err := ps.store.Scan(ctx)
	if err != nil {
		ps.m.Unlock()
		return err
	}
	for _, item := range items {
		ps.lastSeq = max(ps.lastSeq, item.CreatedAt)
	}

	started, err := ps.promoteLocked(ctx)
	ps.m.Unlock()

	ps.emitStarted(ctx, started)
	return err
}

func (ps *PlaybackSystem) SubmitItem(ctx context.Context, rawURL string) (models.Item, error) {
	ref, err := metadata.ParseRef(rawURL)
	if err != nil {
		return models.Item{}, err
	}

	// Resolution happens before taking the lock so a slow provider never
	// holds up votes or promotions.
	meta := ps.resolveMetadata(ctx, ref)

	ps.m.Lock()
	if ps.rejectDuplicates {
		items, err := ps.store.Scan(ctx)
		if err != nil {
			ps.m.Unlock()
			return models.Item{}, err
		}
		for _, existing := range items {
			if existing.SourceRef == ref.Canonical {
				ps.m.Unlock()
				return models.Item{}, ErrDuplicateSubmission
			}
		}
	}

	item := models.Item{
		ID:              uuid.NewString(),
		SourceRef:       ref.Canonical,
		URL:             ref.URL,
		Title:           meta.Title,
		Thumbnail:       meta.Thumbnail,
		DominantColours: meta.DominantColours,
		Votes:           0,
		CreatedAt:       ps.nextSeq(),
	}
	if err := ps.store.Insert(ctx, item); err != nil {
		ps.m.Unlock()
		return models.Item{}, err
	}

	started, err := ps.promoteLocked(ctx)
	ps.m.Unlock()

	if err != nil {
		// The item is queued; the heal job will retry the promotion
		slog.Error("Failed to promote after submission", slog.String("error", err.Error()))
	}

	slog.Info("Queued item",
		slog.String("item_id", item.ID),
		slog.String("source_ref", item.SourceRef),
		slog.String("title", item.Title),
	)
	ps.emit(ctx, Event{Kind: EventQueued, Item: item})
	ps.emitStarted(ctx, started)
	return item, nil
}

func (ps *PlaybackSystem) ListQueue(ctx context.Context) ([]models.Item, error) {
	return db.Snapshot(ctx, ps.store)
}

func (ps *PlaybackSystem) GetNowPlaying(ctx context.Context) *models.Item {
	ps.m.Lock()
	defer ps.m.Unlock()
	if ps.nowPlaying == nil {
		return nil
	}
	item := *ps.nowPlaying
	return &item
}

func (ps *PlaybackSystem) Status() Status {
	if ps.GetNowPlaying(context.Background()) == nil {
		return StatusIdle
	}
	return StatusPlaying
}

// State reads the queue and the playing item under the same lock as
// promotion, so an item never appears in both.
func (ps *PlaybackSystem) State(ctx context.Context) (models.QueueState, error) {
	ps.m.Lock()
	defer ps.m.Unlock()

	queue, err := db.Snapshot(ctx, ps.store)
	if err != nil {
		return models.QueueState{}, err
	}
	state := models.QueueState{Queue: queue}
	if ps.nowPlaying != nil {
		item := *ps.nowPlaying
		state.NowPlaying = &item
	}
	return state, nil
}

// Vote adds one vote to a candidate. db.ErrNotFound means the item already
// left the queue and the vote was dropped.
func (ps *PlaybackSystem) Vote(ctx context.Context, id string) (int, error) {
	votes, err := ps.store.Increment(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		slog.Debug("Dropped vote for item no longer queued", slog.String("item_id", id))
		return 0, err
	}
	if err != nil {
		return 0, err
	}

	ps.emit(ctx, Event{Kind: EventVoted, Item: models.Item{ID: id, Votes: votes}, Votes: votes})

	if err := ps.EnsurePlaying(ctx); err != nil {
		slog.Error("Failed to promote after vote", slog.String("error", err.Error()))
	}
	return votes, nil
}

func (ps *PlaybackSystem) RemoveItem(ctx context.Context, id string) (models.Item, error) {
	item, err := ps.store.Remove(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		slog.Debug("Item to remove was not queued", slog.String("item_id", id))
		return item, err
	}
	if err != nil {
		return item, err
	}
	slog.Info("Removed item", slog.String("item_id", id), slog.String("title", item.Title))
	ps.emit(ctx, Event{Kind: EventRemoved, Item: item})
	return item, nil
}

// SignalFinished ends the playing item and promotes the next candidate.
// Signals for anything other than the playing item are ignored, which makes
// repeated or late signals harmless.
func (ps *PlaybackSystem) SignalFinished(ctx context.Context, id string) error {
	ps.m.Lock()

	if ps.nowPlaying == nil || ps.nowPlaying.ID != id {
		ps.m.Unlock()
		slog.Debug("Ignoring stale finished signal", slog.String("item_id", id))
		return nil
	}

	err := ps.store.Finish(ctx, id, ps.now().UnixMilli())
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		ps.m.Unlock()
		return fmt.Errorf("failed to finish %s: %w", id, err)
	}

	finished := *ps.nowPlaying
	ps.nowPlaying = nil

	started, promoteErr := ps.promoteLocked(ctx)
	ps.m.Unlock()

	if promoteErr != nil {
		slog.Error("Failed to promote after finish", slog.String("error", promoteErr.Error()))
	}

	slog.Info("Finished item", slog.String("item_id", finished.ID), slog.String("title", finished.Title))
	ps.emit(ctx, Event{Kind: EventFinished, Item: finished})
	ps.emitStarted(ctx, started)
	return nil
}

// EnsurePlaying promotes the ranked head if nothing is playing.
func (ps *PlaybackSystem) EnsurePlaying(ctx context.Context) error {
	ps.m.Lock()
	started, err := ps.promoteLocked(ctx)
	ps.m.Unlock()

	ps.emitStarted(ctx, started)
	return err
}

func (ps *PlaybackSystem) GetHistory(ctx context.Context, limit int) ([]models.PlaybackEntry, error) {
	return ps.store.History(ctx, limit)
}

// RefreshMetadata retries resolution for items still carrying the placeholder
// title. Ranking is unaffected by metadata.
func (ps *PlaybackSystem) RefreshMetadata(ctx context.Context) error {
	if ps.resolver == nil {
		return nil
	}

	candidates, err := ps.store.Scan(ctx)
	if err != nil {
		return err
	}
	if playing := ps.GetNowPlaying(ctx); playing != nil {
		candidates = append(candidates, *playing)
	}

	for _, item := range candidates {
		if item.Title != ps.placeholder {
			continue
		}
		ref, err := metadata.ParseRef(item.URL)
		if err != nil {
			continue
		}
		meta, err := ps.lookup(ctx, ref)
		if err != nil {
			slog.Debug("Metadata still unavailable", slog.String("item_id", item.ID), slog.String("error", err.Error()))
			continue
		}
		if err := ps.store.UpdateMetadata(ctx, item.ID, meta); err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				slog.Error("Failed to store metadata", slog.String("item_id", item.ID), slog.String("error", err.Error()))
			}
			continue
		}

		ps.m.Lock()
		if ps.nowPlaying != nil && ps.nowPlaying.ID == item.ID {
			ps.nowPlaying.Title = meta.Title
			ps.nowPlaying.Thumbnail = meta.Thumbnail
			ps.nowPlaying.DominantColours = meta.DominantColours
		}
		ps.m.Unlock()

		item.Title = meta.Title
		item.Thumbnail = meta.Thumbnail
		item.DominantColours = meta.DominantColours
		slog.Info("Backfilled metadata", slog.String("item_id", item.ID), slog.String("title", item.Title))
		ps.emit(ctx, Event{Kind: EventUpdated, Item: item})
	}
	return nil
}

// promoteLocked must be called with m held.
func (ps *PlaybackSystem) promoteLocked(ctx context.Context) (*models.Item, error) {
	if ps.nowPlaying != nil {
		return nil, nil
	}
	for attempt := 0; attempt < maxPromoteAttempts; attempt++ {
		items, err := ps.store.Scan(ctx)
		if err != nil {
			return nil, err
		}
		head, ok := ranking.Head(items)
		if !ok {
			return nil, nil
		}
		item, err := ps.store.Promote(ctx, head.ID, ps.now().UnixMilli())
		if errors.Is(err, db.ErrNotFound) {
			// Removed between the scan and the claim
			continue
		}
		if err != nil {
			return nil, err
		}
		ps.nowPlaying = &item
		started := item
		return &started, nil
	}
	return nil, fmt.Errorf("gave up promoting after %d attempts", maxPromoteAttempts)
}

// nextSeq must be called with m held.
func (ps *PlaybackSystem) nextSeq() int64 {
	seq := ps.now().UnixNano()
	if seq <= ps.lastSeq {
		seq = ps.lastSeq + 1
	}
	ps.lastSeq = seq
	return seq
}

func (ps *PlaybackSystem) resolveMetadata(ctx context.Context, ref metadata.Ref) models.Metadata {
	fallback := models.Metadata{Title: ps.placeholder, Thumbnail: ref.Thumbnail()}
	if ps.resolver == nil {
		return fallback
	}
	meta, err := ps.lookup(ctx, ref)
	if err != nil {
		slog.Warn("Falling back to placeholder title",
			slog.String("source_ref", ref.Canonical),
			slog.String("error", err.Error()),
		)
		return fallback
	}
	return meta
}

func (ps *PlaybackSystem) lookup(ctx context.Context, ref metadata.Ref) (models.Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, ps.resolveTimeout)
	defer cancel()

	meta, err := ps.resolver.Resolve(ctx, ref)
	if err != nil {
		return meta, err
	}
	if meta.Title == "" {
		meta.Title = ps.placeholder
	}
	if meta.Thumbnail == "" {
		meta.Thumbnail = ref.Thumbnail()
	}
	return meta, nil
}

func (ps *PlaybackSystem) emitStarted(ctx context.Context, started *models.Item) {
	if started == nil {
		return
	}
	slog.Info("Now playing", slog.String("item_id", started.ID), slog.String("title", started.Title))
	ps.emit(ctx, Event{Kind: EventStarted, Item: *started, Votes: started.Votes})
}

func (ps *PlaybackSystem) emit(ctx context.Context, e Event) {
	ps.lm.RLock()
	listeners := append([]Listener(nil), ps.listeners...)
	ps.lm.RUnlock()
	for _, l := range listeners {
		l(ctx, e)
	}
}
