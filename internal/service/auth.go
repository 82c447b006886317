package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/fitfusion/admin-console/internal/identity"
	"github.com/fitfusion/admin-console/internal/mirror"
	"github.com/fitfusion/admin-console/internal/model"
	"github.com/fitfusion/admin-console/internal/store"
)

// Auth is the admin login flow: the email must belong to an admin document
// before the identity provider is even asked.
type Auth struct {
	store    store.Store
	identity identity.Provider
	sessions *Sessions
	orch     *Orchestrator
}

func NewAuth(s store.Store, idp identity.Provider, sessions *Sessions, orch *Orchestrator) *Auth {
	return &Auth{store: s, identity: idp, sessions: sessions, orch: orch}
}

func (a *Auth) findAdmin(ctx context.Context, email string) (model.Admin, bool, error) {
	docs, err := a.store.GetAll(ctx, model.CollectionAdmins)
	if err != nil {
		return model.Admin{}, false, errors.Wrap(err, "load admins")
	}
	want := strings.ToLower(strings.TrimSpace(email))
	for _, adm := range mirror.Entities[model.Admin](docs) {
		if strings.ToLower(strings.TrimSpace(adm.Email)) == want {
			return adm, true, nil
		}
	}
	return model.Admin{}, false, nil
}

// Login returns a session token and opens the session's workspace.
func (a *Auth) Login(ctx context.Context, email, secret string) (string, model.Admin, error) {
	if strings.TrimSpace(email) == "" || secret == "" {
		return "", model.Admin{}, ErrInvalidLoginForm
	}
	adm, ok, err := a.findAdmin(ctx, email)
	if err != nil {
		return "", model.Admin{}, err
	}
	if !ok {
		return "", model.Admin{}, ErrNotAdmin
	}
	token, err := a.identity.VerifyCredential(ctx, email, secret)
	if err != nil {
		return "", model.Admin{}, err
	}
	adm.SecretHash = ""
	a.sessions.Open(token, adm)
	return token, adm, nil
}

// Logout closes the session's screens.
func (a *Auth) Logout(token string) error {
	if token == "" {
		return nil
	}
	return a.sessions.Drop(token)
}

// Bootstrap makes sure an admin with email exists, creating it (credential,
// admin document and companion account) through the regular create path.
// It reports whether an admin was created.
func (a *Auth) Bootstrap(ctx context.Context, name, email, secret string) (bool, error) {
	if _, ok, err := a.findAdmin(ctx, email); err != nil || ok {
		return false, err
	}
	d := NewDraft("", map[string]any{"name": name, "email": email})
	d.SetSecret(secret)
	if _, err := a.orch.Commit(ctx, Admins, d, Create); err != nil {
		return false, err
	}
	return true, nil
}
