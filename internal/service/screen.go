package service

import (
	"context"

	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/fitfusion/admin-console/internal/mirror"
	"github.com/fitfusion/admin-console/internal/notice"
	"github.com/fitfusion/admin-console/internal/store"
)

// Screen is one console page: a live mirror of its collection, the form
// editor, the pending confirmations and the session's notice queue.
type Screen struct {
	Kind     *Kind
	Mirror   *mirror.Mirror
	Editor   *Editor
	Confirms *Confirmations

	notices *notice.Queue
	orch    *Orchestrator
	log     *log.Logger
}

// OpenScreen subscribes the screen's mirror.
func OpenScreen(ctx context.Context, k *Kind, s store.Store, orch *Orchestrator, notices *notice.Queue) (*Screen, error) {
	m, err := mirror.Open(ctx, s, k.Collection)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", k.Screen)
	}
	return &Screen{
		Kind:     k,
		Mirror:   m,
		Editor:   NewEditor(k),
		Confirms: NewConfirmations(),
		notices:  notices,
		orch:     orch,
		log:      log.New("console"),
	}, nil
}

func (s *Screen) find(id string) (store.Document, bool) {
	for _, d := range s.Mirror.Snapshot() {
		if d.ID == id {
			return d, true
		}
	}
	return store.Document{}, false
}

// BeginCreate opens the form with an empty draft.
func (s *Screen) BeginCreate() error {
	return s.Editor.OpenCreate(s.orch.Now())
}

// BeginEdit opens the form on a copy of the mirrored document.
func (s *Screen) BeginEdit(id string) error {
	d, ok := s.find(id)
	if !ok {
		return ErrNotFound
	}
	return s.Editor.OpenEdit(id, d.Fields)
}

// Commit persists the open draft in the mode its state implies.  Exactly one
// notice is posted per commit; on success the form closes.  The commit
// ignores cancellation of ctx once started.
func (s *Screen) Commit(ctx context.Context) (string, error) {
	d, mode, err := s.Editor.current()
	if err != nil {
		return "", err
	}
	id, err := s.orch.Commit(context.WithoutCancel(ctx), s.Kind, d, mode)
	if err != nil {
		s.log.Warnf("%s %s failed: %v", mode, s.Kind.Collection, err)
		s.notices.Failure(s.Kind.Messages.SaveFailed + ": " + Reason(err))
		return "", err
	}
	s.Editor.finish(d.gen)
	if mode == Update {
		s.notices.Success(s.Kind.Messages.Updated)
	} else {
		s.notices.Success(s.Kind.Messages.Created)
	}
	return id, nil
}

// RequestDelete registers a delete awaiting confirmation.  No store call is
// made here.
func (s *Screen) RequestDelete(id string) (Pending, error) {
	if _, ok := s.find(id); !ok {
		return Pending{}, ErrNotFound
	}
	k := s.Kind
	return s.Confirms.Request("delete", id, k.Messages.ConfirmDelete, func(ctx context.Context) error {
		if err := s.orch.Delete(ctx, k, id); err != nil {
			s.log.Warnf("delete %s/%s failed: %v", k.Collection, id, err)
			s.notices.Failure(k.Messages.DeleteFailed + ": " + Reason(err))
			return err
		}
		s.notices.Success(k.Messages.Deleted)
		return nil
	}), nil
}

// RequestToggle registers the flip of a boolean field, computed from the
// value currently mirrored.
func (s *Screen) RequestToggle(id, field string) (Pending, error) {
	t, ok := s.Kind.Toggles[field]
	if !ok {
		return Pending{}, errors.Wrap(ErrUnknownToggle, field)
	}
	d, ok := s.find(id)
	if !ok {
		return Pending{}, ErrNotFound
	}
	cur, _ := d.Fields[field].(bool)
	next := !cur
	k := s.Kind
	return s.Confirms.Request(field, id, t.Prompt(next), func(ctx context.Context) error {
		if err := s.orch.Toggle(ctx, k, id, field, next); err != nil {
			s.log.Warnf("toggle %s/%s.%s failed: %v", k.Collection, id, field, err)
			s.notices.Failure(t.Failed(next) + ": " + Reason(err))
			return err
		}
		s.notices.Success(t.Done(next))
		return nil
	}), nil
}

// Resolve answers a pending confirmation.  An accepted action runs to
// completion even if ctx is cancelled.
func (s *Screen) Resolve(ctx context.Context, confirmationID string, accept bool) error {
	return s.Confirms.Resolve(context.WithoutCancel(ctx), confirmationID, accept)
}

// Close tears the screen down and releases its subscription.
func (s *Screen) Close() error {
	s.Editor.Cancel()
	return s.Mirror.Close()
}
