package repository

import (
	"context"
	"sync"
	"time"
)

// MemoryCredentialRepo is the in-process CredentialStore used in dev and tests.
type MemoryCredentialRepo struct {
	mu      sync.RWMutex
	byEmail map[string]Credential
}

func NewMemoryCredentialRepo() *MemoryCredentialRepo {
	return &MemoryCredentialRepo{byEmail: map[string]Credential{}}
}

func (r *MemoryCredentialRepo) Create(ctx context.Context, c Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Email = NormalizeEmail(c.Email)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byEmail[c.Email]; ok {
		return ErrEmailExists
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	r.byEmail[c.Email] = c
	return nil
}

func (r *MemoryCredentialRepo) GetByEmail(ctx context.Context, email string) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return c, nil
}
