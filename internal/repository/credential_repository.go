package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Credential mirrors the 'credentials' table.  PasswordHash is a bcrypt
// hash; plaintext secrets never reach this layer.
type Credential struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CredentialStore is what the identity provider needs from storage.
type CredentialStore interface {
	Create(ctx context.Context, c Credential) error
	GetByEmail(ctx context.Context, email string) (Credential, error)
}

const schema = `CREATE TABLE IF NOT EXISTS credentials (
	id            CHAR(36)     NOT NULL PRIMARY KEY,
	email         VARCHAR(255) NOT NULL UNIQUE,
	password_hash VARCHAR(255) NOT NULL,
	created_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

type CredentialRepo struct{ DB *sql.DB }

func NewCredentialRepo(db *sql.DB) *CredentialRepo { return &CredentialRepo{DB: db} }

// EnsureSchema creates the credentials table when it does not exist.
func (r *CredentialRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, schema)
	return err
}

// NormalizeEmail lowercases and trims an email for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a credential.  A duplicate email yields ErrEmailExists.
func (r *CredentialRepo) Create(ctx context.Context, c Credential) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO credentials (id, email, password_hash) VALUES (?,?,?)",
		c.ID, NormalizeEmail(c.Email), c.PasswordHash)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return ErrEmailExists
		}
		return err
	}
	return nil
}

// GetByEmail fetches a credential by normalized email.
func (r *CredentialRepo) GetByEmail(ctx context.Context, email string) (Credential, error) {
	var c Credential
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,created_at FROM credentials WHERE email=? LIMIT 1",
		NormalizeEmail(email)).Scan(&c.ID, &c.Email, &c.PasswordHash, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Credential{}, ErrNotFound
	}
	return c, err
}
