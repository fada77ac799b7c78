package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/allergyscan/internal/allergens"
	"github.com/angelmondragon/allergyscan/internal/goals"
	"github.com/angelmondragon/allergyscan/internal/history"
	"github.com/angelmondragon/allergyscan/internal/insights"
	"github.com/angelmondragon/allergyscan/internal/localcache"
	"github.com/angelmondragon/allergyscan/internal/notifications"
	"github.com/angelmondragon/allergyscan/internal/ocr"
	"github.com/angelmondragon/allergyscan/internal/pipeline"
	"github.com/angelmondragon/allergyscan/internal/profiles"
	"github.com/angelmondragon/allergyscan/internal/scans"
	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
	"github.com/angelmondragon/allergyscan/pkg/logger"
	"github.com/angelmondragon/allergyscan/pkg/metrics"
	"github.com/angelmondragon/allergyscan/pkg/types"
)

// Limits carries the configurable caps and timeouts applied to every device.
type Limits struct {
	HistoryCap         int
	FeedCap            int
	DailyGoal          int
	DisplayNameMax     int
	OCRTimeout         time.Duration
	EnrichmentTimeout  time.Duration
	RemoteWriteTimeout time.Duration
}

// StoreFactory returns the local cache for one device.
type StoreFactory func(deviceID string) localcache.Store

// NamespacedStores scopes one shared substrate per device.
func NamespacedStores(shared localcache.Store) StoreFactory {
	return func(deviceID string) localcache.Store {
		return localcache.WithNamespace(shared, deviceID)
	}
}

// Deps wires a Registry. Remote, ProfileRepo and Enricher are optional.
type Deps struct {
	Stores      StoreFactory
	Remote      scans.RemoteStore
	ProfileRepo profiles.Repository
	OCR         ocr.Recognizer
	Enricher    insights.Enricher
	Metrics     *metrics.PipelineMetrics
	Logger      *logger.Logger
	Limits      Limits
}

// Session is everything one device owns.
type Session struct {
	DeviceID      string
	History       *history.Cache[history.ScanRecord]
	Notifications notifications.Service
	Goals         *goals.Tracker
	Scans         *scans.Coordinator
	Pipeline      *pipeline.Orchestrator
	Profiles      profiles.Service

	mu       sync.Mutex
	identity *types.Identity
	profile  allergens.Profile
}

// Profile returns the allergy profile for identity, loading it on first use and whenever
// the identity changes.
func (s *Session) Profile(ctx context.Context, identity types.Identity) (allergens.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity != nil && *s.identity == identity {
		return s.profile, nil
	}
	profile, err := s.Profiles.Load(ctx, identity)
	if err != nil {
		return profile, err
	}
	s.identity = &identity
	s.profile = profile
	return profile, nil
}

// SaveProfile stores tokens and refreshes the cached profile.
func (s *Session) SaveProfile(ctx context.Context, identity types.Identity, tokens []string) (allergens.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, err := s.Profiles.Save(ctx, identity, tokens)
	s.identity = &identity
	s.profile = profile
	return profile, err
}

// Registry hands out one Session per device id.
type Registry struct {
	deps     Deps
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps) (*Registry, error) {
	if deps.Stores == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "local cache factory required")
	}
	if deps.OCR == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "ocr recognizer required")
	}
	if deps.Logger == nil {
		deps.Logger = logger.Discard()
	}
	return &Registry{deps: deps, sessions: map[string]*Session{}}, nil
}

// Get returns the session for deviceID, creating it on first use.
func (r *Registry) Get(ctx context.Context, deviceID string) (*Session, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device id required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[deviceID]; ok {
		return s, nil
	}
	s, err := r.build(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	r.sessions[deviceID] = s
	return s, nil
}

// Len reports the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) build(ctx context.Context, deviceID string) (*Session, error) {
	limits := r.deps.Limits
	logg := r.deps.Logger
	ctx = logg.WithDeviceID(ctx, deviceID)
	store := r.deps.Stores(deviceID)

	historyCap := limits.HistoryCap
	if historyCap <= 0 {
		historyCap = history.DetailedHistoryCap
	}
	cache, err := history.Open[history.ScanRecord](ctx, store, localcache.KeyScanHistory, historyCap, history.WithLogger(logg))
	if err != nil {
		return nil, err
	}
	feed, err := notifications.NewService(ctx, store, notifications.WithCapacity(limits.FeedCap), notifications.WithLogger(logg))
	if err != nil {
		return nil, err
	}
	tracker := goals.NewTracker(cache, goals.WithGoal(limits.DailyGoal))

	coord, err := scans.NewCoordinator(scans.Deps{
		Remote:             r.deps.Remote,
		History:            cache,
		Notifications:      feed,
		Metrics:            r.deps.Metrics,
		Logger:             logg,
		RemoteWriteTimeout: limits.RemoteWriteTimeout,
		DisplayNameMax:     limits.DisplayNameMax,
	})
	if err != nil {
		return nil, err
	}
	orch, err := pipeline.New(pipeline.Deps{
		OCR:               r.deps.OCR,
		Enricher:          r.deps.Enricher,
		Coordinator:       coord,
		Goals:             tracker,
		Metrics:           r.deps.Metrics,
		Logger:            logg,
		OCRTimeout:        limits.OCRTimeout,
		EnrichmentTimeout: limits.EnrichmentTimeout,
	})
	if err != nil {
		return nil, err
	}
	profileSvc, err := profiles.NewService(r.deps.ProfileRepo, store, logg)
	if err != nil {
		return nil, err
	}

	logg.Debug(ctx, "session.opened")
	return &Session{
		DeviceID:      deviceID,
		History:       cache,
		Notifications: feed,
		Goals:         tracker,
		Scans:         coord,
		Pipeline:      orch,
		Profiles:      profileSvc,
	}, nil
}
