package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Pending is a destructive action waiting for the user's answer.  No store
// call is made until it is accepted.
type Pending struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	TargetID  string    `json:"targetId"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"createdAt"`

	run func(ctx context.Context) error
}

// Confirmations holds the pending actions of one screen.  Asking again for
// the same action on the same target replaces the earlier request.
type Confirmations struct {
	mu      sync.Mutex
	pending map[string]*Pending
}

func NewConfirmations() *Confirmations {
	return &Confirmations{pending: map[string]*Pending{}}
}

func (c *Confirmations) Request(action, targetID, prompt string, run func(context.Context) error) Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, p := range c.pending {
		if p.Action == action && p.TargetID == targetID {
			delete(c.pending, id)
		}
	}
	p := &Pending{
		ID:        uuid.NewString(),
		Action:    action,
		TargetID:  targetID,
		Prompt:    prompt,
		CreatedAt: time.Now().UTC(),
		run:       run,
	}
	c.pending[p.ID] = p
	return *p
}

// Resolve answers a pending request.  Declining drops it and does nothing
// else; accepting runs the action once.
func (c *Confirmations) Resolve(ctx context.Context, id string, accept bool) error {
	c.mu.Lock()
	p, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		return ErrNoConfirmation
	}
	if !accept {
		return nil
	}
	return p.run(ctx)
}

// List returns the pending requests, oldest first.
func (c *Confirmations) List() []Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Pending, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
