package notifications

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/allergyscan/internal/history"
	"github.com/angelmondragon/allergyscan/internal/localcache"
	pkgerrors "github.com/angelmondragon/allergyscan/pkg/errors"
)

type fakeStore struct {
	*localcache.MemoryStore
	setErr    error
	removeErr error
}

func (f *fakeStore) Set(ctx context.Context, key, value string) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func (f *fakeStore) MultiRemove(ctx context.Context, keys ...string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.MemoryStore.MultiRemove(ctx, keys...)
}

func newFakeStore() *fakeStore {
	return &fakeStore{MemoryStore: localcache.NewMemoryStore()}
}

func entry(i int) history.FeedEntry {
	return history.FeedEntry{
		ID:        fmt.Sprintf("scan-%d", i),
		Name:      fmt.Sprintf("label %d", i),
		Timestamp: time.Date(2026, 3, 1, 10, i, 0, 0, time.UTC),
	}
}

func newService(t *testing.T, store localcache.Store, opts ...Option) Service {
	t.Helper()
	svc, err := NewService(context.Background(), store, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewServiceRequiresStore(t *testing.T) {
	if _, err := NewService(context.Background(), nil); !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestPushAndMarkSeen(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, localcache.NewMemoryStore())

	if svc.Unseen() {
		t.Fatal("empty feed should have nothing unseen")
	}
	for i := 1; i <= 3; i++ {
		if _, err := svc.Push(ctx, entry(i)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if got := svc.UnseenCount(); got != 3 {
		t.Fatalf("expected 3 unseen, got %d", got)
	}

	status, err := svc.MarkSeen(ctx)
	if err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	if status.Seen != 3 || status.Unseen || status.UnseenCount != 0 {
		t.Fatalf("unexpected status %+v", status)
	}

	again, err := svc.MarkSeen(ctx)
	if err != nil || again.Seen != 3 {
		t.Fatalf("mark seen should be idempotent: %+v %v", again, err)
	}

	status, _ = svc.Push(ctx, entry(4))
	if status.UnseenCount != 1 || status.Feed[0].ID != "scan-4" {
		t.Fatalf("expected one new unseen entry, got %+v", status)
	}
}

func TestEvictionLowersWatermark(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, localcache.NewMemoryStore())

	for i := 0; i < history.FeedCap; i++ {
		if _, err := svc.Push(ctx, entry(i)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}
	if _, err := svc.MarkSeen(ctx); err != nil {
		t.Fatalf("mark seen: %v", err)
	}

	status, err := svc.Push(ctx, entry(99))
	if err != nil {
		t.Fatalf("push at cap: %v", err)
	}
	if len(status.Feed) != history.FeedCap {
		t.Fatalf("feed must stay at cap, got %d", len(status.Feed))
	}
	if status.Seen != history.FeedCap-1 || status.UnseenCount != 1 {
		t.Fatalf("expected exactly one unseen after eviction, got %+v", status)
	}
}

func TestWatermarkNeverNegative(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, localcache.NewMemoryStore(), WithCapacity(2))

	_, _ = svc.Push(ctx, entry(1))
	_, _ = svc.MarkSeen(ctx)
	_, _ = svc.Push(ctx, entry(2))
	_, _ = svc.Push(ctx, entry(3))
	status, _ := svc.Push(ctx, entry(4))

	if status.Seen != 0 || status.UnseenCount != 2 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestStatePersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	store := localcache.NewMemoryStore()
	svc := newService(t, store)
	_, _ = svc.Push(ctx, entry(1))
	_, _ = svc.Push(ctx, entry(2))
	_, _ = svc.MarkSeen(ctx)
	_, _ = svc.Push(ctx, entry(3))

	restarted := newService(t, store)
	status := restarted.Status()
	if len(status.Feed) != 3 || status.Seen != 2 || status.UnseenCount != 1 {
		t.Fatalf("unexpected restored status %+v", status)
	}
}

func TestCorruptWatermarkStartsAtZero(t *testing.T) {
	ctx := context.Background()
	store := localcache.NewMemoryStore()
	_ = store.Set(ctx, localcache.KeyNotificationsSeen, "many")

	svc := newService(t, store)
	if svc.Status().Seen != 0 {
		t.Fatal("expected watermark reset")
	}
}

func TestWatermarkClampedToFeedLength(t *testing.T) {
	ctx := context.Background()
	store := localcache.NewMemoryStore()
	_ = store.Set(ctx, localcache.KeyNotificationsSeen, "7")

	svc := newService(t, store)
	if svc.Status().Seen != 0 {
		t.Fatalf("watermark should not exceed an empty feed, got %d", svc.Status().Seen)
	}
}

func TestClearIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newService(t, store)
	_, _ = svc.Push(ctx, entry(1))
	_, _ = svc.Push(ctx, entry(2))
	_, _ = svc.MarkSeen(ctx)

	store.removeErr = errors.New("device storage locked")
	if err := svc.Clear(ctx); !pkgerrors.IsCode(err, pkgerrors.CodeLocalStorage) {
		t.Fatalf("expected local storage error, got %v", err)
	}
	if status := svc.Status(); len(status.Feed) != 2 || status.Seen != 2 {
		t.Fatalf("failed clear changed state: %+v", status)
	}

	store.removeErr = nil
	if err := svc.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if status := svc.Status(); len(status.Feed) != 0 || status.Seen != 0 {
		t.Fatalf("expected empty state, got %+v", status)
	}
	if _, found, _ := store.Get(ctx, localcache.KeyNotificationsSeen); found {
		t.Fatal("watermark key should be removed")
	}
	if _, found, _ := store.Get(ctx, localcache.KeyNotificationFeed); found {
		t.Fatal("feed key should be removed")
	}
}

func TestPushKeepsMemoryOnPersistFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newService(t, store)
	store.setErr = errors.New("quota exceeded")

	status, err := svc.Push(ctx, entry(1))
	if !pkgerrors.IsCode(err, pkgerrors.CodeLocalStorage) {
		t.Fatalf("expected local storage error, got %v", err)
	}
	if len(status.Feed) != 1 || !status.Unseen {
		t.Fatalf("in-memory feed should hold the entry: %+v", status)
	}
}
