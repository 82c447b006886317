package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const maxTxRetries = 5

// RedisStore keeps each collection in a hash (id -> JSON fields) next to a
// sorted set recording insertion order.  Every write publishes the id on the
// collection's change channel; subscribers re-read the whole collection.
//
// Keys, for prefix p and collection c:
//
//	p:c          hash of documents
//	p:c:order    zset id -> insertion sequence
//	p:c:seq      insertion counter
//	p:changes:c  pub/sub channel
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	log    *log.Logger
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	l := log.New("store")
	return &RedisStore{rdb: rdb, prefix: prefix, log: l}
}

func (s *RedisStore) docsKey(c string) string  { return s.prefix + ":" + c }
func (s *RedisStore) orderKey(c string) string { return s.prefix + ":" + c + ":order" }
func (s *RedisStore) seqKey(c string) string   { return s.prefix + ":" + c + ":seq" }
func (s *RedisStore) channel(c string) string  { return s.prefix + ":changes:" + c }

func (s *RedisStore) GetAll(ctx context.Context, collection string) ([]Document, error) {
	ids, err := s.rdb.ZRange(ctx, s.orderKey(collection), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", collection)
	}
	out := make([]Document, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	vals, err := s.rdb.HMGet(ctx, s.docsKey(collection), ids...).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", collection)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// removed between ZRANGE and HMGET
			continue
		}
		fields, err := decodeFields(raw)
		if err != nil {
			s.log.Warnf("skip %s/%s: %v", collection, ids[i], err)
			continue
		}
		out = append(out, Document{ID: ids[i], Fields: fields})
	}
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, collection, id string) (Document, error) {
	raw, err := s.rdb.HGet(ctx, s.docsKey(collection), id).Result()
	if errors.Is(err, redis.Nil) {
		return Document{}, errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
	}
	if err != nil {
		return Document{}, errors.Wrapf(err, "get %s/%s", collection, id)
	}
	fields, err := decodeFields(raw)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Fields: fields}, nil
}

func (s *RedisStore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.CreateWithID(ctx, collection, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *RedisStore) CreateWithID(ctx context.Context, collection, id string, fields map[string]any) error {
	if id == "" {
		return errors.New("empty document id")
	}
	raw, err := encodeFields(fields)
	if err != nil {
		return err
	}
	seq, err := s.rdb.Incr(ctx, s.seqKey(collection)).Result()
	if err != nil {
		return errors.Wrapf(err, "sequence %s", collection)
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.docsKey(collection), id, raw)
		pipe.ZAddNX(ctx, s.orderKey(collection), redis.Z{Score: float64(seq), Member: id})
		pipe.Publish(ctx, s.channel(collection), id)
		return nil
	})
	return errors.Wrapf(err, "create %s/%s", collection, id)
}

func (s *RedisStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	patch, err := normalize(fields)
	if err != nil {
		return err
	}
	key := s.docsKey(collection)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, key, id).Result()
		if errors.Is(err, redis.Nil) {
			return errors.Wrapf(ErrNotFound, "%s/%s", collection, id)
		}
		if err != nil {
			return err
		}
		cur, err := decodeFields(raw)
		if err != nil {
			return err
		}
		for k, v := range patch {
			cur[k] = v
		}
		merged, err := encodeFields(cur)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, id, merged)
			pipe.Publish(ctx, s.channel(collection), id)
			return nil
		})
		return err
	}
	for i := 0; i < maxTxRetries; i++ {
		err = s.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrapf(err, "update %s/%s", collection, id)
	}
	return err
}

func (s *RedisStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, s.docsKey(collection), id)
		pipe.ZRem(ctx, s.orderKey(collection), id)
		pipe.Publish(ctx, s.channel(collection), id)
		return nil
	})
	return errors.Wrapf(err, "delete %s/%s", collection, id)
}

type redisSub struct {
	once   sync.Once
	cancel context.CancelFunc
	ps     *redis.PubSub
	done   chan struct{}
}

// Close stops delivery and waits for the listener to exit.  It must not be
// called from inside the OnChange callback.
func (r *redisSub) Close() error {
	var err error
	r.once.Do(func() {
		r.cancel()
		err = r.ps.Close()
		<-r.done
	})
	return err
}

func (s *RedisStore) Subscribe(ctx context.Context, collection string, fn OnChange) (Subscription, error) {
	ps := s.rdb.Subscribe(ctx, s.channel(collection))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Wrapf(err, "subscribe %s", collection)
	}
	// subscribed before the first read, so no change is missed
	snap, err := s.GetAll(ctx, collection)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}
	fn(snap)

	sctx, cancel := context.WithCancel(ctx)
	sub := &redisSub{cancel: cancel, ps: ps, done: make(chan struct{})}
	ch := ps.Channel()
	go func() {
		defer close(sub.done)
		for {
			select {
			case <-sctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				docs, err := s.GetAll(sctx, collection)
				if err != nil {
					if sctx.Err() == nil {
						s.log.Errorf("refresh %s: %v", collection, err)
					}
					continue
				}
				fn(docs)
			}
		}
	}()
	return sub, nil
}

func encodeFields(fields map[string]any) (string, error) {
	norm, err := normalize(fields)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(norm)
	if err != nil {
		return "", errors.Wrap(err, "marshal fields")
	}
	return string(raw), nil
}

func decodeFields(raw string) (map[string]any, error) {
	out := map[string]any{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, errors.Wrap(err, "decode fields")
	}
	return out, nil
}
