package store

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type memCollection struct {
	order []string
	docs  map[string]map[string]any
}

// MemoryStore keeps collections in process.  Subscribers are called
// synchronously, in registration order, before the mutating call returns, so
// callbacks must not write back into the store.
type MemoryStore struct {
	mu          sync.RWMutex
	deliver     sync.Mutex // serializes mutate+notify so emissions never go stale
	collections map[string]*memCollection
	subs        map[string]map[int]OnChange
	nextSub     int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: map[string]*memCollection{},
		subs:        map[string]map[int]OnChange{},
	}
}

func (s *MemoryStore) coll(name string) *memCollection {
	c, ok := s.collections[name]
	if !ok {
		c = &memCollection{docs: map[string]map[string]any{}}
		s.collections[name] = c
	}
	return c
}

func (s *MemoryStore) snapshotLocked(name string) []Document {
	c, ok := s.collections[name]
	if !ok {
		return []Document{}
	}
	out := make([]Document, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, Document{ID: id, Fields: copyFields(c.docs[id])})
	}
	return out
}

func (s *MemoryStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(collection), nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collection]
	if !ok {
		return Document{}, errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	f, ok := c.docs[id]
	if !ok {
		return Document{}, errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	return Document{ID: id, Fields: copyFields(f)}, nil
}

func (s *MemoryStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.CreateWithID(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) CreateWithID(ctx context.Context, collection, id string, fields map[string]any) error {
	if id == "" {
		return errors.New("empty document id")
	}
	norm, err := normalize(fields)
	if err != nil {
		return err
	}
	return s.mutate(ctx, collection, func(c *memCollection) error {
		if _, exists := c.docs[id]; !exists {
			c.order = append(c.order, id)
		}
		c.docs[id] = norm
		return nil
	})
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	norm, err := normalize(fields)
	if err != nil {
		return err
	}
	return s.mutate(ctx, collection, func(c *memCollection) error {
		cur, ok := c.docs[id]
		if !ok {
			return errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
		}
		for k, v := range norm {
			cur[k] = v
		}
		return nil
	})
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	return s.mutate(ctx, collection, func(c *memCollection) error {
		if _, ok := c.docs[id]; !ok {
			return nil
		}
		delete(c.docs, id)
		for i, v := range c.order {
			if v == id {
				c.order = append(c.order[:i:i], c.order[i+1:]...)
				break
			}
		}
		return nil
	})
}

func (s *MemoryStore) mutate(ctx context.Context, collection string, fn func(*memCollection) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	if err := fn(s.coll(collection)); err != nil {
		s.mu.Unlock()
		return err
	}
	snap := s.snapshotLocked(collection)
	subs := make([]OnChange, 0, len(s.subs[collection]))
	for i := 0; i < s.nextSub; i++ {
		if f, ok := s.subs[collection][i]; ok {
			subs = append(subs, f)
		}
	}
	s.mu.Unlock()

	for _, f := range subs {
		f(cloneDocs(snap))
	}
	return nil
}

type memSub struct {
	once  sync.Once
	done  chan struct{}
	close func()
}

func (m *memSub) Close() error {
	m.once.Do(func() {
		close(m.done)
		m.close()
	})
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection string, fn OnChange) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	if s.subs[collection] == nil {
		s.subs[collection] = map[int]OnChange{}
	}
	s.subs[collection][id] = fn
	snap := s.snapshotLocked(collection)
	s.mu.Unlock()

	fn(snap)

	sub := &memSub{done: make(chan struct{}), close: func() {
		s.mu.Lock()
		delete(s.subs[collection], id)
		s.mu.Unlock()
	}}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				_ = sub.Close()
			case <-sub.done:
			}
		}()
	}
	return sub, nil
}

// Subscribers reports how many live subscriptions a collection has.
func (s *MemoryStore) Subscribers(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[collection])
}

func copyFields(f map[string]any) map[string]any {
	out := make(map[string]any, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func cloneDocs(docs []Document) []Document {
	out := make([]Document, len(docs))
	for i, d := range docs {
		out[i] = Document{ID: d.ID, Fields: copyFields(d.Fields)}
	}
	return out
}
