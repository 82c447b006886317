package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu    sync.Mutex
	snaps [][]Document
}

func (c *collector) on(docs []Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, docs)
}

func (c *collector) last() []Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.snaps) == 0 {
		return nil
	}
	return c.snaps[len(c.snaps)-1]
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func backends(t *testing.T) map[string]Store {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(rdb, "test"),
	}
}

func TestStoreCRUD(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			id, err := s.Create(ctx, "artigos", map[string]any{"title": "Treino A", "id": "ignored"})
			require.NoError(t, err)
			require.NotEmpty(t, id)

			require.NoError(t, s.CreateWithID(ctx, "artigos", "fixed", map[string]any{"title": "Dieta", "n": 3}))

			all, err := s.GetAll(ctx, "artigos")
			require.NoError(t, err)
			assert.Equal(t, []string{id, "fixed"}, ids(all))
			_, hasID := all[0].Fields["id"]
			assert.False(t, hasID)

			require.NoError(t, s.Update(ctx, "artigos", "fixed", map[string]any{"n": 4}))
			doc, err := s.Get(ctx, "artigos", "fixed")
			require.NoError(t, err)
			assert.Equal(t, "Dieta", doc.Fields["title"])
			assert.Equal(t, float64(4), doc.Fields["n"])

			err = s.Update(ctx, "artigos", "missing", map[string]any{"n": 1})
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = s.Get(ctx, "artigos", "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Delete(ctx, "artigos", id))
			require.NoError(t, s.Delete(ctx, "artigos", id), "delete is idempotent")
			all, err = s.GetAll(ctx, "artigos")
			require.NoError(t, err)
			assert.Equal(t, []string{"fixed"}, ids(all))

			empty, err := s.GetAll(ctx, "nothing")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestStoreReplaceKeepsPosition(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.CreateWithID(ctx, "c", "a", map[string]any{"v": 1}))
			require.NoError(t, s.CreateWithID(ctx, "c", "b", map[string]any{"v": 2}))
			require.NoError(t, s.CreateWithID(ctx, "c", "a", map[string]any{"w": 3}))
			all, err := s.GetAll(ctx, "c")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids(all))
			_, stale := all[0].Fields["v"]
			assert.False(t, stale, "CreateWithID replaces the document")
		})
	}
}

func TestStoreSubscribeFullSnapshots(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, id := range []string{"a1", "a2", "a3"} {
				require.NoError(t, s.CreateWithID(ctx, "academias", id, map[string]any{"name": id}))
			}

			var c collector
			sub, err := s.Subscribe(ctx, "academias", c.on)
			require.NoError(t, err)
			require.Equal(t, 1, c.count(), "initial snapshot is delivered before Subscribe returns")
			assert.Len(t, c.last(), 3)

			// another client deletes a document
			require.NoError(t, s.Delete(ctx, "academias", "a2"))
			assert.Eventually(t, func() bool { return len(c.last()) == 2 }, 2*time.Second, 10*time.Millisecond)
			assert.ElementsMatch(t, []string{"a1", "a3"}, ids(c.last()))

			require.NoError(t, s.Update(ctx, "academias", "a1", map[string]any{"blocked": true}))
			assert.Eventually(t, func() bool {
				last := c.last()
				return len(last) == 2 && last[0].Fields["blocked"] == true
			}, 2*time.Second, 10*time.Millisecond)

			require.NoError(t, sub.Close())
			require.NoError(t, sub.Close())
			n := c.count()
			require.NoError(t, s.Delete(ctx, "academias", "a3"))
			time.Sleep(50 * time.Millisecond)
			assert.Equal(t, n, c.count(), "no emission after Close")
		})
	}
}

func TestMemorySubscribeContextCancel(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	_, err := s.Subscribe(ctx, "users", func([]Document) {})
	require.NoError(t, err)
	assert.Equal(t, 1, s.Subscribers("users"))
	cancel()
	assert.Eventually(t, func() bool { return s.Subscribers("users") == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryCallerCannotMutateStoredFields(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	fields := map[string]any{"name": "x"}
	require.NoError(t, s.CreateWithID(ctx, "c", "1", fields))
	fields["name"] = "y"
	doc, err := s.Get(ctx, "c", "1")
	require.NoError(t, err)
	doc.Fields["name"] = "z"
	again, err := s.Get(ctx, "c", "1")
	require.NoError(t, err)
	assert.Equal(t, "x", again.Fields["name"])
}
