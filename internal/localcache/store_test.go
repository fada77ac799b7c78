package localcache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/allergyscan/pkg/redis"
)

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	store := NewSQLStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func storeImplementations(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory":     NewMemoryStore(),
		"sqlite":     newSQLStore(t),
		"namespaced": WithNamespace(NewMemoryStore(), "device-1"),
		"redis":      NewRedisStore(newFakeRedis(), "device-1"),
	}
}

func TestStoreContract(t *testing.T) {
	for name, store := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, found, err := store.Get(ctx, KeyScanHistory)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, store.Set(ctx, KeyScanHistory, `[{"id":"a"}]`))
			require.NoError(t, store.Set(ctx, KeyScanHistory, `[{"id":"b"}]`))
			value, found, err := store.Get(ctx, KeyScanHistory)
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, `[{"id":"b"}]`, value)

			require.NoError(t, store.Set(ctx, KeyNotificationFeed, "[]"))
			require.NoError(t, store.Set(ctx, KeyNotificationsSeen, "3"))
			require.NoError(t, store.MultiRemove(ctx, KeyNotificationFeed, KeyNotificationsSeen))
			for _, key := range []string{KeyNotificationFeed, KeyNotificationsSeen} {
				_, found, err := store.Get(ctx, key)
				require.NoError(t, err)
				assert.False(t, found, key)
			}

			require.NoError(t, store.Remove(ctx, KeyScanHistory))
			_, found, err = store.Get(ctx, KeyScanHistory)
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, store.Remove(ctx, "missing"))
			require.NoError(t, store.MultiRemove(ctx))
		})
	}
}

func TestNamespacesIsolateDevices(t *testing.T) {
	ctx := context.Background()
	shared := NewMemoryStore()
	first := WithNamespace(shared, "device-1")
	second := WithNamespace(shared, "device-2")

	require.NoError(t, first.Set(ctx, KeyScanHistory, "one"))
	_, found, err := second.Get(ctx, KeyScanHistory)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = shared.Get(ctx, "device-1:"+KeyScanHistory)
	require.NoError(t, err)
	assert.True(t, found)

	assert.Same(t, shared, WithNamespace(shared, " "))
}

func TestRedisStoreUsesDeviceKeysAndSingleDel(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	store := NewRedisStore(client, "device-9")

	require.NoError(t, store.Set(ctx, KeyNotificationFeed, "[]"))
	_, ok := client.data["as:local:device-9:notification_feed"]
	assert.True(t, ok)

	require.NoError(t, store.MultiRemove(ctx, KeyNotificationFeed, KeyNotificationsSeen))
	require.Len(t, client.delCalls, 1)
	assert.Equal(t, []string{"as:local:device-9:notification_feed", "as:local:device-9:notifications_seen_count"}, client.delCalls[0])
}

func TestRedisStorePropagatesErrors(t *testing.T) {
	client := newFakeRedis()
	client.err = errors.New("connection refused")
	store := NewRedisStore(client, "device-1")

	_, _, err := store.Get(context.Background(), KeyScanHistory)
	assert.Error(t, err)
	assert.Error(t, store.MultiRemove(context.Background(), KeyScanHistory))
}

type fakeRedis struct {
	data     map[string]string
	delCalls [][]string
	err      error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	value, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.data[key] = fmt.Sprint(value)
	return nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	if f.err != nil {
		return f.err
	}
	f.delCalls = append(f.delCalls, keys)
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeRedis) LocalKey(deviceID, name string) string {
	return (&redis.Client{}).LocalKey(deviceID, name)
}

func TestProfileKeyIsPerIdentity(t *testing.T) {
	assert.Equal(t, KeyAllergyProfile, ProfileKey(""))
	assert.Equal(t, KeyAllergyProfile, ProfileKey("  "))
	assert.Equal(t, "allergy_profile:user:alice", ProfileKey("alice"))
	assert.NotEqual(t, ProfileKey("alice"), ProfileKey("bob"))
}
