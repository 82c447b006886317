package service

import (
	"context"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/fitfusion/admin-console/internal/model"
	"github.com/fitfusion/admin-console/internal/notice"
	"github.com/fitfusion/admin-console/internal/store"
)

// Workspace is everything one signed-in session has open: its screens and
// its notice queue.  Screens are opened on first use.
type Workspace struct {
	Token   string
	Notices *notice.Queue

	store store.Store
	orch  *Orchestrator
	ctx   context.Context
	stop  context.CancelFunc

	transient bool
	expires   time.Time // zero when the token carries no known expiry
	lastUsed  time.Time // guarded by Sessions.mu

	mu      sync.Mutex
	admin   model.Admin
	screens map[string]*Screen
	closed  bool
}

// Transient reports whether the workspace lives for one request only.  Its
// holder must Close it when done.
func (w *Workspace) Transient() bool { return w.transient }

// Admin returns who signed in with this session, when known.
func (w *Workspace) Admin() model.Admin {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.admin
}

// Screen returns the named screen, opening its mirror if needed.
func (w *Workspace) Screen(name string) (*Screen, error) {
	k, ok := Kinds[name]
	if !ok {
		return nil, ErrUnknownScreen
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, context.Canceled
	}
	if s, ok := w.screens[name]; ok {
		return s, nil
	}
	s, err := OpenScreen(w.ctx, k, w.store, w.orch, w.Notices)
	if err != nil {
		return nil, err
	}
	w.screens[name] = s
	return s, nil
}

// Close tears down every open screen.  Calling it again does nothing.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	var first error
	for name, s := range w.screens {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
		delete(w.screens, name)
	}
	w.Notices.Close()
	w.stop()
	return first
}

// TokenCheck validates a session token and returns its expiry.
type TokenCheck func(token string) (expires time.Time, ok bool)

// Sessions maps session tokens to workspaces.  Workspaces idle for longer
// than the idle TTL, or whose token has expired, are closed by Sweep.
type Sessions struct {
	store     store.Store
	orch      *Orchestrator
	noticeTTL time.Duration
	check     TokenCheck
	idleTTL   time.Duration
	now       func() time.Time
	log       *log.Logger

	mu      sync.Mutex
	byToken map[string]*Workspace
}

func NewSessions(s store.Store, orch *Orchestrator, noticeTTL time.Duration) *Sessions {
	return &Sessions{store: s, orch: orch, noticeTTL: noticeTTL, now: time.Now, log: log.New("sessions"), byToken: map[string]*Workspace{}}
}

// SetTokenCheck makes Get register workspaces only for tokens check accepts.
// Without a check every token is trusted.
func (s *Sessions) SetTokenCheck(check TokenCheck) { s.check = check }

// SetIdleTTL sets how long an unused workspace is kept.  Zero keeps it until
// its token expires.
func (s *Sessions) SetIdleTTL(d time.Duration) { s.idleTTL = d }

// SetClock replaces the clock used for idle and expiry bookkeeping.
func (s *Sessions) SetClock(now func() time.Time) { s.now = now }

func (s *Sessions) newWorkspace(token string, admin model.Admin) *Workspace {
	ctx, cancel := context.WithCancel(context.Background())
	return &Workspace{
		Token:    token,
		Notices:  notice.New(s.noticeTTL),
		store:    s.store,
		orch:     s.orch,
		ctx:      ctx,
		stop:     cancel,
		lastUsed: s.now(),
		admin:    admin,
		screens:  map[string]*Screen{},
	}
}

// Open starts a fresh workspace for token, replacing any earlier one.
func (s *Sessions) Open(token string, admin model.Admin) *Workspace {
	w := s.newWorkspace(token, admin)
	if s.check != nil {
		w.expires, _ = s.check(token)
	}
	s.mu.Lock()
	old := s.byToken[token]
	s.byToken[token] = w
	s.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
	return w
}

// Get returns the workspace for token.  A valid token the process has not
// seen yet (e.g. after a restart) gets an anonymous registered workspace.
// An empty, invalid or expired token gets a transient one that is not
// registered; the caller closes it.
func (s *Sessions) Get(token string) *Workspace {
	now := s.now()
	s.mu.Lock()
	if w, ok := s.byToken[token]; ok && (w.expires.IsZero() || now.Before(w.expires)) {
		w.lastUsed = now
		s.mu.Unlock()
		return w
	}
	s.mu.Unlock()

	var expires time.Time
	if token == "" {
		return s.transient(token)
	}
	if s.check != nil {
		exp, ok := s.check(token)
		if !ok {
			_ = s.Drop(token)
			return s.transient(token)
		}
		expires = exp
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.byToken[token]; ok {
		w.lastUsed = now
		return w
	}
	w := s.newWorkspace(token, model.Admin{})
	w.expires = expires
	s.byToken[token] = w
	return w
}

func (s *Sessions) transient(token string) *Workspace {
	w := s.newWorkspace(token, model.Admin{})
	w.transient = true
	return w
}

// Drop closes and forgets the workspace for token.
func (s *Sessions) Drop(token string) error {
	s.mu.Lock()
	w := s.byToken[token]
	delete(s.byToken, token)
	s.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Close()
}

// Sweep closes every workspace that has been idle longer than the idle TTL
// or whose token has expired, and reports how many it closed.
func (s *Sessions) Sweep() int {
	now := s.now()
	var stale []*Workspace
	s.mu.Lock()
	for token, w := range s.byToken {
		idle := s.idleTTL > 0 && now.Sub(w.lastUsed) > s.idleTTL
		expired := !w.expires.IsZero() && !now.Before(w.expires)
		if idle || expired {
			stale = append(stale, w)
			delete(s.byToken, token)
		}
	}
	s.mu.Unlock()
	for _, w := range stale {
		_ = w.Close()
	}
	return len(stale)
}

// Run sweeps every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Sweep(); n > 0 {
				s.log.Infof("closed %d idle sessions", n)
			}
		}
	}
}

// Len reports the number of live workspaces.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken)
}

// CloseAll drops every workspace; used on shutdown.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	all := s.byToken
	s.byToken = map[string]*Workspace{}
	s.mu.Unlock()
	for _, w := range all {
		_ = w.Close()
	}
}
