// Package identity issues and verifies console credentials.  Errors carry a
// message fit to show the user as is.
package identity

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/fitfusion/admin-console/internal/repository"
	"github.com/fitfusion/admin-console/internal/utils"
)

// MinSecretLen is the shortest secret accepted by CreateCredential.
const MinSecretLen = 6

var (
	ErrEmailExists        = errors.New("Este email já está em uso.")
	ErrInvalidEmail       = errors.New("O email informado é inválido.")
	ErrWeakSecret         = errors.New("A senha deve ter pelo menos 6 caracteres.")
	ErrInvalidCredentials = errors.New("Email ou senha incorretos.")
)

// Credential is the result of a successful registration.
type Credential struct {
	ID    string
	Token string
}

// Provider is the identity provider seen by the console.
type Provider interface {
	CreateCredential(ctx context.Context, email, secret string) (Credential, error)
	VerifyCredential(ctx context.Context, email, secret string) (string, error)
}

// Local keeps credentials in a repository.CredentialStore and signs session
// tokens itself.
type Local struct {
	repo      repository.CredentialStore
	hasher    utils.Hasher
	jwtSecret string
	ttlMin    int
	validate  *validator.Validate
	newID     func() string
}

func NewLocal(repo repository.CredentialStore, hasher utils.Hasher, jwtSecret string, ttlMin int) *Local {
	return &Local{
		repo:      repo,
		hasher:    hasher,
		jwtSecret: jwtSecret,
		ttlMin:    ttlMin,
		validate:  validator.New(),
		newID:     uuid.NewString,
	}
}

func (l *Local) CreateCredential(ctx context.Context, email, secret string) (Credential, error) {
	email = repository.NormalizeEmail(email)
	if err := l.validate.Var(email, "required,email"); err != nil {
		return Credential{}, ErrInvalidEmail
	}
	if len([]rune(secret)) < MinSecretLen {
		return Credential{}, ErrWeakSecret
	}
	hash, err := l.hasher.Hash(secret)
	if err != nil {
		return Credential{}, errors.Wrap(err, "hash credential")
	}
	c := repository.Credential{ID: l.newID(), Email: email, PasswordHash: hash}
	if err := l.repo.Create(ctx, c); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return Credential{}, ErrEmailExists
		}
		return Credential{}, errors.Wrap(err, "store credential")
	}
	tok, err := utils.NewSessionToken(l.jwtSecret, c.ID, email, l.ttlMin)
	if err != nil {
		return Credential{}, err
	}
	return Credential{ID: c.ID, Token: tok.Token}, nil
}

func (l *Local) VerifyCredential(ctx context.Context, email, secret string) (string, error) {
	c, err := l.repo.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", errors.Wrap(err, "load credential")
	}
	if !utils.VerifyPassword(c.PasswordHash, secret) {
		return "", ErrInvalidCredentials
	}
	tok, err := utils.NewSessionToken(l.jwtSecret, c.ID, c.Email, l.ttlMin)
	if err != nil {
		return "", err
	}
	return tok.Token, nil
}
