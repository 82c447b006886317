package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fitfusion/admin-console/internal/identity"
	"github.com/fitfusion/admin-console/internal/notice"
	"github.com/fitfusion/admin-console/internal/queue"
	"github.com/fitfusion/admin-console/internal/repository"
	"github.com/fitfusion/admin-console/internal/store"
	"github.com/fitfusion/admin-console/internal/utils"
)

// recordingStore logs every write and can fail chosen ones.
type recordingStore struct {
	*store.MemoryStore
	mu     sync.Mutex
	writes []string
	failOn map[string]error // "op collection"
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: store.NewMemoryStore(), failOn: map[string]error{}}
}

func (r *recordingStore) record(op, collection, id string, fields map[string]any) error {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, fmt.Sprintf("%s %s/%s [%s]", op, collection, id, strings.Join(keys, ",")))
	return r.failOn[op+" "+collection]
}

func (r *recordingStore) Writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

func (r *recordingStore) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = nil
}

func (r *recordingStore) Create(ctx context.Context, c string, f map[string]any) (string, error) {
	if err := r.record("create", c, "", f); err != nil {
		return "", err
	}
	return r.MemoryStore.Create(ctx, c, f)
}

func (r *recordingStore) CreateWithID(ctx context.Context, c, id string, f map[string]any) error {
	if err := r.record("set", c, id, f); err != nil {
		return err
	}
	return r.MemoryStore.CreateWithID(ctx, c, id, f)
}

func (r *recordingStore) Update(ctx context.Context, c, id string, f map[string]any) error {
	if err := r.record("update", c, id, f); err != nil {
		return err
	}
	return r.MemoryStore.Update(ctx, c, id, f)
}

func (r *recordingStore) Delete(ctx context.Context, c, id string) error {
	if err := r.record("delete", c, id, nil); err != nil {
		return err
	}
	return r.MemoryStore.Delete(ctx, c, id)
}

// countingIdentity counts calls into a real local provider.
type countingIdentity struct {
	identity.Provider
	mu      sync.Mutex
	creates int
	verifys int
}

func (c *countingIdentity) CreateCredential(ctx context.Context, email, secret string) (identity.Credential, error) {
	c.mu.Lock()
	c.creates++
	c.mu.Unlock()
	return c.Provider.CreateCredential(ctx, email, secret)
}

func (c *countingIdentity) VerifyCredential(ctx context.Context, email, secret string) (string, error) {
	c.mu.Lock()
	c.verifys++
	c.mu.Unlock()
	return c.Provider.VerifyCredential(ctx, email, secret)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.PushNotificationEvent
	err    error
}

func (f *fakePublisher) PublishPush(_ context.Context, ev queue.PushNotificationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return f.err
}

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store   *recordingStore
	idp     *countingIdentity
	push    *fakePublisher
	orch    *Orchestrator
	notices *notice.Queue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := newRecordingStore()
	idp := &countingIdentity{Provider: identity.NewLocal(repository.NewMemoryCredentialRepo(), utils.NewBcryptHasher(4), "k", 5)}
	push := &fakePublisher{}
	orch := NewOrchestrator(s, idp, utils.NewBcryptHasher(4), push)
	orch.SetClock(func() time.Time { return fixedNow })
	return &fixture{store: s, idp: idp, push: push, orch: orch, notices: notice.New(time.Hour)}
}

func (f *fixture) screen(t *testing.T, k *Kind) *Screen {
	t.Helper()
	s, err := OpenScreen(context.Background(), k, f.store, f.orch, f.notices)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func (f *fixture) notice() string {
	m, ok := f.notices.Current()
	if !ok {
		return ""
	}
	return m.Text
}

func stageAll(t *testing.T, e *Editor, fields map[string]any) {
	t.Helper()
	for k, v := range fields {
		require.NoError(t, e.Stage(k, v), k)
	}
}
