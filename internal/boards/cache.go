// Package boards keeps the client-side lists of research and image boards and
// mirrors every mutation to the daemon.
//
// The cache is optimistic: local state changes first and a failed backend
// call is logged and surfaced as a notice without undoing the change. Refresh
// replaces the local lists with the daemon's and is the reconciliation point;
// Reconcile runs it whenever the window regains focus.
package boards

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"narrativ/internal/api"
	"narrativ/internal/events"
	"narrativ/internal/logging"
	"narrativ/internal/services"
	"narrativ/internal/storyplan"
)

// Transport is the daemon board API.
type Transport interface {
	ListResearch(ctx context.Context) ([]api.ResearchBoard, error)
	CreateResearch(ctx context.Context, board api.ResearchBoard) (api.ResearchBoard, error)
	UpdateResearch(ctx context.Context, board api.ResearchBoard) (api.ResearchBoard, error)
	DeleteResearch(ctx context.Context, id string) error
	ListImages(ctx context.Context) ([]api.ImageBoard, error)
	CreateImages(ctx context.Context, board api.ImageBoard) (api.ImageBoard, error)
	UpdateImages(ctx context.Context, board api.ImageBoard) (api.ImageBoard, error)
	DeleteImages(ctx context.Context, id string) error
}

// maxBoards mirrors the daemon's per-collection cap.
const maxBoards = 100

// Cache holds board lists, newest first.
type Cache struct {
	transport Transport
	bus       *events.Bus
	logger    *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	research []api.ResearchBoard
	images   []api.ImageBoard
	lastID   int64
}

// Option customizes a Cache.
type Option func(*Cache)

// WithBus publishes change and notice events on bus.
func WithBus(bus *events.Bus) Option {
	return func(c *Cache) { c.bus = bus }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logging.NewComponentLogger(logger, "boards")
	}
}

// WithClock overrides the time source used for ids and timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New returns an empty cache backed by transport.
func New(transport Transport, opts ...Option) *Cache {
	c := &Cache{
		transport: transport,
		logger:    logging.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// nextID returns a millisecond timestamp id, bumped when the clock has not advanced.
func (c *Cache) nextID() string {
	id := c.now().UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return strconv.FormatInt(id, 10)
}

func (c *Cache) changed(collection api.BoardType, id string) {
	c.bus.Publish(events.Event{
		Topic:   events.TopicBoardsChanged,
		Payload: events.BoardsChanged{Collection: string(collection), ID: id},
	})
}

func (c *Cache) persistFailed(ctx context.Context, op string, collection api.BoardType, id string, err error) {
	logger := logging.WithContext(ctx, c.logger)
	logging.WarnWithContext(logger, "board persistence failed", "board_persist_failed",
		logging.String("operation", op),
		logging.String(logging.FieldBoardType, string(collection)),
		logging.String(logging.FieldBoardID, id),
		logging.Error(err),
		logging.String(logging.FieldImpact, "board kept locally but may be missing after restart"),
		logging.String(logging.FieldErrorHint, "check that narrativd is running; boards resync on refresh"),
	)
	c.bus.Publish(events.Event{
		Topic: events.TopicNotice,
		Payload: events.Notice{
			Level:   events.NoticeWarn,
			Kind:    services.Kind(err),
			Message: fmt.Sprintf("Saved locally, but syncing the %s board failed", collection),
		},
	})
}

// Refresh replaces both lists with the daemon's. On failure the cache is left untouched.
func (c *Cache) Refresh(ctx context.Context) error {
	research, err := c.transport.ListResearch(ctx)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "board refresh failed", "board_refresh_failed",
			logging.String(logging.FieldBoardType, string(api.BoardResearch)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "showing cached boards"),
		)
		return err
	}
	images, err := c.transport.ListImages(ctx)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "board refresh failed", "board_refresh_failed",
			logging.String(logging.FieldBoardType, string(api.BoardImages)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "showing cached boards"),
		)
		return err
	}
	c.mu.Lock()
	c.research = capBoards(research)
	c.images = capBoards(images)
	c.mu.Unlock()
	c.changed(api.BoardResearch, "")
	c.changed(api.BoardImages, "")
	return nil
}

// Reconcile refreshes the cache on every window focus event until ctx ends.
func (c *Cache) Reconcile(ctx context.Context, bus *events.Bus) {
	if bus == nil {
		return
	}
	ch, unsubscribe := bus.Subscribe(events.TopicWindowFocused)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			_ = c.Refresh(ctx)
		}
	}
}

// Research returns a snapshot of research boards.
func (c *Cache) Research() []api.ResearchBoard {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]api.ResearchBoard, len(c.research))
	for i, b := range c.research {
		out[i] = b.Clone()
	}
	return out
}

// Images returns a snapshot of image boards.
func (c *Cache) Images() []api.ImageBoard {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]api.ImageBoard, len(c.images))
	for i, b := range c.images {
		out[i] = b.Clone()
	}
	return out
}

// FindResearch returns the research board with id.
func (c *Cache) FindResearch(id string) (api.ResearchBoard, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.research {
		if b.ID == id {
			return b.Clone(), true
		}
	}
	return api.ResearchBoard{}, false
}

// FindResearchByTopic returns the newest research board whose topic matches.
func (c *Cache) FindResearchByTopic(topic string) (api.ResearchBoard, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range c.research {
		if api.SameTopic(b.Topic, topic) {
			return b.Clone(), true
		}
	}
	return api.ResearchBoard{}, false
}

// SaveResearch inserts a research board locally and creates it on the daemon.
// Slides must number 1..10 and are renumbered densely.
func (c *Cache) SaveResearch(ctx context.Context, board api.ResearchBoard) (api.ResearchBoard, error) {
	slides, err := storyplan.NormalizeSlides(board.Slides)
	if err != nil {
		return api.ResearchBoard{}, err
	}
	c.mu.Lock()
	board = board.Clone()
	board.Slides = slides
	if board.ID == "" {
		board.ID = c.nextID()
	}
	if board.CreatedAt == "" {
		board.CreatedAt = api.FormatTime(c.now())
	}
	c.research = capBoards(append([]api.ResearchBoard{board}, c.research...))
	c.mu.Unlock()
	c.changed(api.BoardResearch, board.ID)

	if _, err := c.transport.CreateResearch(ctx, board); err != nil {
		c.persistFailed(ctx, "create", api.BoardResearch, board.ID, err)
	}
	return board.Clone(), nil
}

// UpdateResearch replaces a research board in place, keeping its id and
// creation time. The slide bound and dense numbering are enforced.
func (c *Cache) UpdateResearch(ctx context.Context, board api.ResearchBoard) (api.ResearchBoard, error) {
	return c.mutateResearch(ctx, "update research", board.ID, func(b *api.ResearchBoard) error {
		created := b.CreatedAt
		*b = board.Clone()
		b.CreatedAt = created
		return nil
	})
}

// DeleteResearch removes a research board.
func (c *Cache) DeleteResearch(ctx context.Context, id string) error {
	c.mu.Lock()
	c.research = removeResearch(c.research, id)
	c.mu.Unlock()
	c.changed(api.BoardResearch, id)

	if err := c.transport.DeleteResearch(ctx, id); err != nil {
		c.persistFailed(ctx, "delete", api.BoardResearch, id, err)
	}
	return nil
}
