package scans

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/allergyscan/internal/history"
	"github.com/angelmondragon/allergyscan/internal/notifications"
	"github.com/angelmondragon/allergyscan/pkg/db/models"
	dbtypes "github.com/angelmondragon/allergyscan/pkg/db/types"
	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
	"github.com/angelmondragon/allergyscan/pkg/logger"
	"github.com/angelmondragon/allergyscan/pkg/metrics"
	"github.com/angelmondragon/allergyscan/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

const (
	localIDPrefix             = "local-"
	defaultRemoteWriteTimeout = 15 * time.Second
)

// NewLocalID returns an id for a scan that never reached the remote store.
func NewLocalID() string {
	return localIDPrefix + uuid.NewString()
}

// IsLocalID reports whether id was generated on the device.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

// WriteResult is either Written or WrittenLocalOnly.
type WriteResult interface {
	RecordID() string
	Remote() bool
	writeResult()
}

// Written means the remote store accepted the scan.
type Written struct {
	RemoteID string
}

func (w Written) RecordID() string { return w.RemoteID }
func (Written) Remote() bool { return true }
func (Written) writeResult() {}

// WrittenLocalOnly means the scan exists only on the device. RemoteErr is nil for
// anonymous callers and holds the failure when a signed-in write was attempted.
type WrittenLocalOnly struct {
	LocalID   string
	RemoteErr error
}

func (w WrittenLocalOnly) RecordID() string { return w.LocalID }
func (WrittenLocalOnly) Remote() bool { return false }
func (WrittenLocalOnly) writeResult() {}

// Draft is a finished scan awaiting persistence.
type Draft struct {
	Identity  types.Identity
	Text      string
	ImageRef  string
	Allergens []string
	ScannedAt time.Time
}

// Persisted is everything a write changed.
type Persisted struct {
	Record  history.ScanRecord
	Write   WriteResult
	History []history.ScanRecord
	Feed    notifications.Status
}

// Deps wires a Coordinator.
type Deps struct {
	Remote             RemoteStore
	History            *history.Cache[history.ScanRecord]
	Notifications      notifications.Service
	Metrics            *metrics.PipelineMetrics
	Logger             *logger.Logger
	RemoteWriteTimeout time.Duration
	DisplayNameMax     int
	Now                func() time.Time
}

// Coordinator writes scans to the remote store when it can and always to the device.
type Coordinator struct {
	remote         RemoteStore
	history        *history.Cache[history.ScanRecord]
	notifications  notifications.Service
	metrics        *metrics.PipelineMetrics
	logg           *logger.Logger
	remoteTimeout  time.Duration
	displayNameMax int
	now            func() time.Time
}

func NewCoordinator(deps Deps) (*Coordinator, error) {
	if deps.History == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "scan history required")
	}
	if deps.Notifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications service required")
	}
	c := &Coordinator{
		remote:         deps.Remote,
		history:        deps.History,
		notifications:  deps.Notifications,
		metrics:        deps.Metrics,
		logg:           deps.Logger,
		remoteTimeout:  deps.RemoteWriteTimeout,
		displayNameMax: deps.DisplayNameMax,
		now:            deps.Now,
	}
	if c.logg == nil {
		c.logg = logger.Discard()
	}
	if c.remoteTimeout <= 0 {
		c.remoteTimeout = defaultRemoteWriteTimeout
	}
	if c.displayNameMax <= 0 {
		c.displayNameMax = history.DefaultDisplayNameMax
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// RemoteConfigured reports whether signed-in writes go anywhere.
func (c *Coordinator) RemoteConfigured() bool {
	return c.remote != nil
}

func (c *Coordinator) History() []history.ScanRecord {
	return c.history.Entries()
}

// Persist records draft. The feed entry is pushed even when the history write failed.
// A non-nil Persisted is returned alongside any CodeLocalStorage error.
func (c *Coordinator) Persist(ctx context.Context, draft Draft) (*Persisted, error) {
	if draft.ScannedAt.IsZero() {
		draft.ScannedAt = c.now()
	}
	found := append([]string{}, draft.Allergens...)

	write := c.writeRemote(ctx, draft, found)
	record := history.ScanRecord{
		ID:        write.RecordID(),
		Text:      draft.Text,
		ImageRef:  draft.ImageRef,
		Timestamp: draft.ScannedAt,
		Allergens: found,
		Detected:  len(found) > 0,
	}
	logCtx := c.logg.WithScanID(ctx, record.ID)

	var errs error
	change, err := c.history.Prepend(ctx, record)
	if err != nil {
		c.logg.WarnErr(logCtx, "scans.history_write_failed", err)
		c.metrics.IncDegraded("history", "local_storage")
		errs = multierr.Append(errs, err)
	}
	feed, err := c.notifications.Push(ctx, history.NewFeedEntry(record, c.displayNameMax))
	if err != nil {
		c.logg.WarnErr(logCtx, "scans.feed_write_failed", err)
		c.metrics.IncDegraded("feed", "local_storage")
		errs = multierr.Append(errs, err)
	}

	out := &Persisted{
		Record:  record,
		Write:   write,
		History: change.Entries,
		Feed:    feed,
	}
	if errs != nil {
		return out, pkgerrors.Wrap(pkgerrors.CodeLocalStorage, errs, "persist scan locally")
	}
	return out, nil
}

func (c *Coordinator) writeRemote(ctx context.Context, draft Draft, found []string) WriteResult {
	if !draft.Identity.Present() || c.remote == nil {
		return WrittenLocalOnly{LocalID: NewLocalID()}
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.remoteTimeout)
	defer cancel()

	scan, err := c.remote.InsertScan(writeCtx, &models.Scan{
		UserID:    draft.Identity.UserID,
		Text:      draft.Text,
		ImageRef:  draft.ImageRef,
		Allergens: dbtypes.StringList(found),
		CreatedAt: draft.ScannedAt,
	})
	if err == nil && scan != nil {
		return Written{RemoteID: scan.ID.String()}
	}
	if err == nil {
		err = pkgerrors.New(pkgerrors.CodeInternal, "remote store returned no scan")
	}

	reason := "unavailable"
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(writeCtx.Err(), context.DeadlineExceeded) {
		reason = "timeout"
	}
	c.logg.WarnErr(c.logg.WithUserID(ctx, draft.Identity.UserID), "scans.remote_write_failed", err)
	c.metrics.IncDegraded("remote_store", reason)
	return WrittenLocalOnly{
		LocalID:   NewLocalID(),
		RemoteErr: pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remote scan write failed"),
	}
}

// Restore replaces the detailed history with the account's most recent scans.
func (c *Coordinator) Restore(ctx context.Context, identity types.Identity) ([]history.ScanRecord, error) {
	if !identity.Present() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to restore history")
	}
	if c.remote == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "remote store not configured")
	}

	rows, err := c.remote.FetchRecentScans(ctx, identity.UserID, c.history.Cap())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch recent scans")
	}
	records := make([]history.ScanRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, RecordFromModel(row))
	}

	change, err := c.history.Replace(ctx, records)
	return change.Entries, err
}

// DeleteAll removes the account's remote scans, if any, then the detailed history.
func (c *Coordinator) DeleteAll(ctx context.Context, identity types.Identity) error {
	if identity.Present() && c.remote != nil {
		deleted, err := c.remote.DeleteAllScans(ctx, identity.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete remote scans")
		}
		c.logg.Info(c.logg.WithFields(ctx, map[string]any{
			"user_id": identity.UserID,
			"deleted": deleted,
		}), "scans.remote_deleted")
	}
	return c.history.Clear(ctx)
}

// RecordFromModel maps a stored scan onto a history record.
func RecordFromModel(scan models.Scan) history.ScanRecord {
	found := []string(scan.Allergens)
	if found == nil {
		found = []string{}
	}
	return history.ScanRecord{
		ID:        scan.ID.String(),
		Text:      scan.Text,
		ImageRef:  scan.ImageRef,
		Timestamp: scan.CreatedAt,
		Allergens: found,
		Detected:  len(found) > 0,
	}
}
