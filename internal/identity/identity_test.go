package identity

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitfusion/admin-console/internal/repository"
	"github.com/fitfusion/admin-console/internal/utils"
)

type failingRepo struct{}

func (failingRepo) Create(context.Context, repository.Credential) error {
	return errors.New("connection refused")
}

func (failingRepo) GetByEmail(context.Context, string) (repository.Credential, error) {
	return repository.Credential{}, errors.New("connection refused")
}

func newLocal() *Local {
	return NewLocal(repository.NewMemoryCredentialRepo(), utils.NewBcryptHasher(4), "k", 5)
}

func TestCreateCredential(t *testing.T) {
	ctx := context.Background()
	l := newLocal()

	c, err := l.CreateCredential(ctx, "Dono@Gym.com", "abc123")
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.NotEmpty(t, c.Token)
	sub, email, err := utils.SessionClaims("k", c.Token)
	require.NoError(t, err)
	assert.Equal(t, c.ID, sub)
	assert.Equal(t, "dono@gym.com", email)

	tests := []struct {
		name   string
		email  string
		secret string
		want   error
	}{
		{"duplicate", "dono@gym.com", "abc123", ErrEmailExists},
		{"weak", "new@gym.com", "12345", ErrWeakSecret},
		{"bad email", "not-an-email", "abc123", ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.CreateCredential(ctx, tt.email, tt.secret)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateCredentialStoreFailure(t *testing.T) {
	l := NewLocal(failingRepo{}, utils.NewBcryptHasher(4), "k", 5)
	_, err := l.CreateCredential(context.Background(), "a@b.com", "abc123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestVerifyCredential(t *testing.T) {
	ctx := context.Background()
	l := newLocal()
	c, err := l.CreateCredential(ctx, "admin@fit.com", "s3nh4!")
	require.NoError(t, err)

	tok, err := l.VerifyCredential(ctx, "ADMIN@fit.com", "s3nh4!")
	require.NoError(t, err)
	sub, _, err := utils.SessionClaims("k", tok)
	require.NoError(t, err)
	assert.Equal(t, c.ID, sub)

	_, err = l.VerifyCredential(ctx, "admin@fit.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = l.VerifyCredential(ctx, "ghost@fit.com", "s3nh4!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
