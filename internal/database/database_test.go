package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name   string
	Items  []string
	Voters map[int64]string
}

func testBackends(t *testing.T) map[string]Database {
	t.Helper()

	bolt, err := NewBoltDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	redis, err := NewRedisDatabase(mr.Addr(), 0)
	require.NoError(t, err)

	backends := map[string]Database{
		BackendMemory: NewInMemoryDatabase(),
		BackendBolt:   bolt,
		BackendRedis:  redis,
	}

	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		mongo, err := NewMongoDatabase(uri, "boto_sort_test")
		require.NoError(t, err)
		backends[BackendMongo] = mongo
	}

	t.Cleanup(func() {
		for _, db := range backends {
			assert.NoError(t, db.Close())
		}
	})
	return backends
}

func TestDatabase(t *testing.T) {
	for name, db := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			var got record
			require.ErrorIs(t, db.GetObject("records", "missing", &got), ErrKeyNotFound)

			want := record{
				Name:   "first",
				Items:  []string{"a", "b"},
				Voters: map[int64]string{42: "ana", -7: "bob"},
			}
			require.NoError(t, db.SaveObject("records", "1", want))
			require.NoError(t, db.GetObject("records", "1", &got))
			assert.Equal(t, want, got)

			// overwrite
			want.Name = "second"
			require.NoError(t, db.SaveObject("records", "1", want))
			got = record{}
			require.NoError(t, db.GetObject("records", "1", &got))
			assert.Equal(t, "second", got.Name)

			// buckets are separate namespaces
			require.ErrorIs(t, db.GetObject("other", "1", &got), ErrKeyNotFound)
		})
	}
}

func TestInMemoryDecodeErrors(t *testing.T) {
	db := NewInMemoryDatabase()
	require.NoError(t, db.SaveObject("records", "1", record{Name: "x"}))

	var s string
	require.Error(t, db.GetObject("records", "1", &s))

	var r record
	require.Error(t, db.GetObject("records", "1", r))
}

func TestInMemoryCopiesObjects(t *testing.T) {
	db := NewInMemoryDatabase()
	saved := record{Voters: map[int64]string{1: "ana"}}
	require.NoError(t, db.SaveObject("records", "1", saved))

	saved.Voters[2] = "bob"

	var got record
	require.NoError(t, db.GetObject("records", "1", &got))
	assert.Len(t, got.Voters, 1)

	got.Voters[3] = "eve"
	var again record
	require.NoError(t, db.GetObject("records", "1", &again))
	assert.Len(t, again.Voters, 1)
}

func TestRedisTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	db, err := NewRedisDatabase(mr.Addr(), time.Minute)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SaveObject("records", "1", record{Name: "x"}))
	assert.Equal(t, time.Minute, mr.TTL("records:1"))

	mr.FastForward(2 * time.Minute)
	var got record
	require.ErrorIs(t, db.GetObject("records", "1", &got), ErrKeyNotFound)
}

func TestNew(t *testing.T) {
	db, err := New(Config{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryDatabase{}, db)

	db, err = New(Config{Backend: BackendBolt, BoltPath: filepath.Join(t.TempDir(), "new.db")})
	require.NoError(t, err)
	assert.IsType(t, &BoltDatabase{}, db)
	require.NoError(t, db.Close())

	_, err = New(Config{Backend: "sqlite"})
	require.ErrorIs(t, err, ErrUnknownBackend)
}

func TestConfigValidate(t *testing.T) {
	for _, b := range Backends {
		cfg := Config{Backend: b}
		assert.NoError(t, cfg.Validate())
	}
	cfg := Config{Backend: "etcd"}
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownBackend)
}
