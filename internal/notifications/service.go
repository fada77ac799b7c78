package notifications

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/angelmondragon/allergyscan/internal/history"
	"github.com/angelmondragon/allergyscan/internal/localcache"
	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
	"github.com/angelmondragon/allergyscan/pkg/logger"
	"go.uber.org/multierr"
)

// Service owns the notification feed and the seen watermark.
type Service interface {
	Push(ctx context.Context, entry history.FeedEntry) (Status, error)
	Feed() []history.FeedEntry
	Unseen() bool
	UnseenCount() int
	MarkSeen(ctx context.Context) (Status, error)
	Clear(ctx context.Context) error
	Status() Status
}

// Status is a point-in-time view of the bell.
type Status struct {
	Feed        []history.FeedEntry `json:"feed"`
	Seen        int                 `json:"seen"`
	UnseenCount int                 `json:"unseen_count"`
	Unseen      bool                `json:"unseen"`
}

type service struct {
	mu        sync.Mutex
	store     localcache.Store
	feed      *history.Cache[history.FeedEntry]
	watermark int
	logg      *logger.Logger
}

// Option configures the service.
type Option func(*options)

type options struct {
	capacity int
	logg     *logger.Logger
}

// WithCapacity overrides the feed cap.
func WithCapacity(capacity int) Option {
	return func(o *options) {
		if capacity > 0 {
			o.capacity = capacity
		}
	}
}

func WithLogger(logg *logger.Logger) Option {
	return func(o *options) {
		if logg != nil {
			o.logg = logg
		}
	}
}

// NewService loads the feed and watermark from store.
func NewService(ctx context.Context, store localcache.Store, opts ...Option) (Service, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "local cache store required")
	}
	cfg := options{capacity: history.FeedCap, logg: logger.Discard()}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	feed, err := history.Open[history.FeedEntry](ctx, store, localcache.KeyNotificationFeed, cfg.capacity, history.WithLogger(cfg.logg))
	if err != nil {
		return nil, err
	}

	s := &service{store: store, feed: feed, logg: cfg.logg}
	s.watermark = s.loadWatermark(ctx)
	return s, nil
}

func (s *service) loadWatermark(ctx context.Context) int {
	raw, found, err := s.store.Get(ctx, localcache.KeyNotificationsSeen)
	if err != nil {
		s.logg.WarnErr(ctx, "notifications.watermark_read_failed", err)
		return 0
	}
	if !found {
		return 0
	}
	seen, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || seen < 0 {
		s.logg.Warn(s.logg.WithField(ctx, "raw", raw), "notifications.watermark_corrupt")
		return 0
	}
	if n := s.feed.Len(); seen > n {
		seen = n
	}
	return seen
}

// Push prepends entry to the feed. Entries evicted from the tail were the oldest and
// therefore already counted by the watermark, so it drops by the same amount.
func (s *service) Push(ctx context.Context, entry history.FeedEntry) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	change, err := s.feed.Prepend(ctx, entry)
	if evicted := len(change.Evicted); evicted > 0 && s.watermark > 0 {
		s.watermark -= evicted
		if s.watermark < 0 {
			s.watermark = 0
		}
		err = multierr.Append(err, s.persistWatermarkLocked(ctx))
	}
	return s.statusLocked(), localStorageErr(err, "push notification")
}

func (s *service) Feed() []history.FeedEntry {
	return s.feed.Entries()
}

func (s *service) Unseen() bool {
	return s.UnseenCount() > 0
}

func (s *service) UnseenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unseenLocked()
}

// MarkSeen moves the watermark to the current feed length.
func (s *service) MarkSeen(ctx context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.feed.Len()
	if s.watermark == n {
		return s.statusLocked(), nil
	}
	s.watermark = n
	err := s.persistWatermarkLocked(ctx)
	return s.statusLocked(), localStorageErr(err, "mark notifications seen")
}

// Clear drops the feed and the watermark together. Nothing changes in memory unless
// both keys were removed.
func (s *service) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.feed.Clear(ctx, localcache.KeyNotificationsSeen); err != nil {
		s.logg.WarnErr(ctx, "notifications.clear_failed", err)
		return err
	}
	s.watermark = 0
	return nil
}

func (s *service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

func (s *service) statusLocked() Status {
	feed := s.feed.Entries()
	unseen := len(feed) - s.watermark
	if unseen < 0 {
		unseen = 0
	}
	return Status{
		Feed:        feed,
		Seen:        s.watermark,
		UnseenCount: unseen,
		Unseen:      unseen > 0,
	}
}

func (s *service) unseenLocked() int {
	unseen := s.feed.Len() - s.watermark
	if unseen < 0 {
		return 0
	}
	return unseen
}

func (s *service) persistWatermarkLocked(ctx context.Context) error {
	if err := s.store.Set(ctx, localcache.KeyNotificationsSeen, strconv.Itoa(s.watermark)); err != nil {
		s.logg.WarnErr(ctx, "notifications.watermark_persist_failed", err)
		return err
	}
	return nil
}

func localStorageErr(err error, msg string) error {
	if err == nil {
		return nil
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeLocalStorage) && len(multierr.Errors(err)) == 1 {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeLocalStorage, err, msg)
}
