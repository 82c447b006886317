package service

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// EditorState is the per-screen form state.
type EditorState int

const (
	Closed EditorState = iota
	Creating
	Editing
)

func (s EditorState) String() string {
	switch s {
	case Creating:
		return "CREATING"
	case Editing:
		return "EDITING"
	}
	return "CLOSED"
}

// Mode is the commit flavour.
type Mode int

const (
	Create Mode = iota
	Update
)

func (m Mode) String() string {
	if m == Update {
		return "UPDATE"
	}
	return "CREATE"
}

// Draft is the not yet persisted copy being created (empty ID) or edited.
type Draft struct {
	ID      string
	Fields  map[string]any
	Touched map[string]bool
	secret  string
	gen     uint64
}

// NewDraft copies fields into a fresh draft.  A stored secretHash is never
// carried into a draft.
func NewDraft(id string, fields map[string]any) *Draft {
	d := &Draft{ID: id, Fields: make(map[string]any, len(fields)), Touched: map[string]bool{}}
	for k, v := range fields {
		if k == "secretHash" || k == "id" {
			continue
		}
		d.Fields[k] = v
	}
	return d
}

// SetSecret stages a plaintext secret.  An empty value means "unchanged".
func (d *Draft) SetSecret(s string) { d.secret = s }

// HasSecret reports whether a new secret was staged.
func (d *Draft) HasSecret() bool { return d.secret != "" }

func (d *Draft) clone() *Draft {
	c := NewDraft(d.ID, d.Fields)
	for k := range d.Touched {
		c.Touched[k] = true
	}
	c.secret = d.secret
	c.gen = d.gen
	return c
}

// EditorView is the read-only shape of an editor for rendering.
type EditorView struct {
	State        string         `json:"state"`
	DraftID      string         `json:"draftId,omitempty"`
	Fields       map[string]any `json:"fields,omitempty"`
	SecretStaged bool           `json:"secretStaged"`
}

// Editor is the CLOSED -> CREATING | EDITING(id) -> CLOSED state machine of
// one screen.  It holds at most one draft.
type Editor struct {
	kind *Kind

	mu    sync.Mutex
	state EditorState
	draft *Draft
	gen   uint64
}

func NewEditor(k *Kind) *Editor { return &Editor{kind: k} }

func (e *Editor) open(state EditorState, d *Draft) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Closed {
		return ErrBusy
	}
	e.gen++
	d.gen = e.gen
	e.state = state
	e.draft = d
	return nil
}

// OpenCreate starts an empty draft seeded with the kind's defaults.
func (e *Editor) OpenCreate(now time.Time) error {
	var fields map[string]any
	if e.kind.defaults != nil {
		fields = e.kind.defaults(now)
	}
	return e.open(Creating, NewDraft("", fields))
}

// OpenEdit starts editing a copy of an existing document.
func (e *Editor) OpenEdit(id string, fields map[string]any) error {
	if id == "" {
		return ErrNotFound
	}
	return e.open(Editing, NewDraft(id, fields))
}

// Stage applies one field delta to the draft without touching the store.
func (e *Editor) Stage(field string, value any) error {
	if !e.kind.Stageable(field) {
		return errors.Wrap(ErrUnknownField, field)
	}
	if field == SecretField {
		s, ok := value.(string)
		if !ok && value != nil {
			return errors.Wrapf(ErrInvalidValue, "campo %s", field)
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.draft == nil {
			return ErrNoDraft
		}
		e.draft.secret = s
		return nil
	}
	if e.kind.check != nil {
		if err := e.kind.check(field, value); err != nil {
			return err
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft == nil {
		return ErrNoDraft
	}
	e.draft.Fields[field] = value
	e.draft.Touched[field] = true
	return nil
}

// Cancel discards the draft.
func (e *Editor) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Closed
	e.draft = nil
}

func (e *Editor) State() EditorState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Editor) View() EditorView {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := EditorView{State: e.state.String()}
	if e.draft != nil {
		v.DraftID = e.draft.ID
		v.Fields = NewDraft("", e.draft.Fields).Fields
		v.SecretStaged = e.draft.HasSecret()
	}
	return v
}

// current hands out a copy of the draft and the commit mode it implies.
func (e *Editor) current() (*Draft, Mode, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case Creating:
		return e.draft.clone(), Create, nil
	case Editing:
		return e.draft.clone(), Update, nil
	}
	return nil, Create, ErrNoDraft
}

// finish closes the form if it still holds the draft with generation gen.
func (e *Editor) finish(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.draft != nil && e.draft.gen == gen {
		e.state = Closed
		e.draft = nil
	}
}
