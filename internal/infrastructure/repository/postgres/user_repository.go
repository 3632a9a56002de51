package postgres

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/enterprise-rag/internal/core/domain"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082902)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS users (
	username TEXT PRIMARY KEY,
	role TEXT NOT NULL,
	salt TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *UserRepository) GetUser(ctx context.Context, username string) (*domain.StoredUser, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT username, role, salt, password_hash
FROM users
WHERE username = $1
`, username)

	var user domain.StoredUser
	if err := row.Scan(&user.Username, &user.Role, &user.Salt, &user.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrUnauthorized, "get user", fmt.Errorf("unknown user"))
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

func (r *UserRepository) CreateUser(ctx context.Context, user domain.StoredUser) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (username, role, salt, password_hash, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (username) DO NOTHING
`, user.Username, user.Role, user.Salt, user.PasswordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// SeedUser creates the account record if it does not exist yet. Idempotent so both
// api and worker can run it at startup.
func (r *UserRepository) SeedUser(ctx context.Context, username, password, role string) error {
	salt, err := NewSalt()
	if err != nil {
		return err
	}
	return r.CreateUser(ctx, domain.StoredUser{
		User: domain.User{
			Username: username,
			Role:     role,
		},
		Salt:         salt,
		PasswordHash: HashPassword(salt, password),
	})
}

// Authenticate checks credentials and returns the public identity. Unknown
// user and wrong password are indistinguishable to the caller.
func (r *UserRepository) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	stored, err := r.GetUser(ctx, username)
	if err != nil {
		return domain.User{}, err
	}
	if !VerifyPassword(stored, password) {
		return domain.User{}, domain.WrapError(domain.ErrUnauthorized, "authenticate", fmt.Errorf("invalid credentials"))
	}
	return stored.User, nil
}

func NewSalt() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

func HashPassword(salt, password string) string {
	sum := sha256.Sum256([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}

func VerifyPassword(user *domain.StoredUser, password string) bool {
	if user == nil {
		return false
	}
	expected := HashPassword(user.Salt, password)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(user.PasswordHash)) == 1
}
