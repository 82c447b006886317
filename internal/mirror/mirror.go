// Package mirror keeps an in-memory copy of one remote collection.
//
// Each emission from the store replaces the copy wholesale; nothing is
// merged.  Order is whatever the store delivers.
package mirror

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/labstack/gommon/log"

	"github.com/fitfusion/admin-console/internal/model"
	"github.com/fitfusion/admin-console/internal/store"
)

var logger = log.New("mirror")

// Mirror is a live view of a collection.  It must be closed when the screen
// that opened it goes away.
type Mirror struct {
	collection string
	snap       atomic.Pointer[[]store.Document]
	emissions  atomic.Int64

	mu       sync.Mutex
	watchers map[int]chan []store.Document
	nextW    int
	closed   bool

	sub       store.Subscription
	closeOnce sync.Once
}

// Open subscribes to collection.  The first snapshot is in place when Open
// returns for stores that deliver it synchronously.
func Open(ctx context.Context, s store.Store, collection string) (*Mirror, error) {
	m := &Mirror{collection: collection, watchers: map[int]chan []store.Document{}}
	empty := []store.Document{}
	m.snap.Store(&empty)
	sub, err := s.Subscribe(ctx, collection, m.replace)
	if err != nil {
		return nil, err
	}
	m.sub = sub
	return m, nil
}

func (m *Mirror) replace(docs []store.Document) {
	m.snap.Store(&docs)
	m.emissions.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.watchers {
		// keep only the newest snapshot for slow readers
		select {
		case <-ch:
		default:
		}
		ch <- docs
	}
}

// Collection returns the mirrored collection name.
func (m *Mirror) Collection() string { return m.collection }

// Snapshot returns the current list.  Callers must not modify it.
func (m *Mirror) Snapshot() []store.Document { return *m.snap.Load() }

// Emissions counts snapshots received so far.
func (m *Mirror) Emissions() int64 { return m.emissions.Load() }

// Watch returns a channel receiving every later snapshot (slow readers only
// see the newest one) and a func to stop watching.  The channel is closed by
// stop or by Close.
func (m *Mirror) Watch() (<-chan []store.Document, func()) {
	ch := make(chan []store.Document, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextW
	m.nextW++
	m.watchers[id] = ch
	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if w, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(w)
		}
	}
}

// Close releases the subscription.  Calling it again does nothing.
func (m *Mirror) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = m.sub.Close()
		m.mu.Lock()
		m.closed = true
		for id, ch := range m.watchers {
			delete(m.watchers, id)
			close(ch)
		}
		m.mu.Unlock()
	})
	return err
}

// Entities decodes a snapshot into typed entities.  Documents that do not
// decode are logged and left out.
func Entities[T any](docs []store.Document) []T {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := model.Decode[T](d.ID, d.Fields)
		if err != nil {
			logger.Warnf("skip document %s: %v", d.ID, err)
			continue
		}
		out = append(out, v)
	}
	return out
}
