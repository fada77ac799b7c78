package localcache

import (
	"context"
	"strings"
)

// Keys used by the device-local lists and counters.
const (
	KeyScanHistory       = "scan_history"
	KeyNotificationFeed  = "notification_feed"
	KeyNotificationsSeen = "notifications_seen_count"
	KeyAllergyProfile    = "allergy_profile"
)

// ProfileKey scopes the allergy profile to one user. An empty userID selects the anonymous
// profile under KeyAllergyProfile.
func ProfileKey(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return KeyAllergyProfile
	}
	return KeyAllergyProfile + ":user:" + userID
}

// Store is the device-local durable key/value cache.
type Store interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// MultiRemove deletes every key or none of them.
	MultiRemove(ctx context.Context, keys ...string) error
}

type namespaced struct {
	inner  Store
	prefix string
}

// WithNamespace scopes every key of store under namespace.
func WithNamespace(store Store, namespace string) Store {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return store
	}
	return &namespaced{inner: store, prefix: namespace + ":"}
}

func (n *namespaced) key(k string) string {
	return n.prefix + k
}

func (n *namespaced) Get(ctx context.Context, key string) (string, bool, error) {
	return n.inner.Get(ctx, n.key(key))
}

func (n *namespaced) Set(ctx context.Context, key, value string) error {
	return n.inner.Set(ctx, n.key(key), value)
}

func (n *namespaced) Remove(ctx context.Context, key string) error {
	return n.inner.Remove(ctx, n.key(key))
}

func (n *namespaced) MultiRemove(ctx context.Context, keys ...string) error {
	scoped := make([]string, len(keys))
	for i, k := range keys {
		scoped[i] = n.key(k)
	}
	return n.inner.MultiRemove(ctx, scoped...)
}
