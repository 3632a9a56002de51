package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/enterprise-rag/internal/core/domain"
)

func TestGetUserUnknownIsUnauthorized(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT username, role, salt, password_hash").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetUser(context.Background(), "ghost")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGetUserScansRole(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{"username", "role", "salt", "password_hash"}).
		AddRow("admin", "admin", "abcd", "ffff")
	mock.ExpectQuery("SELECT username, role, salt, password_hash").
		WithArgs("admin").
		WillReturnRows(rows)

	user, err := repo.GetUser(context.Background(), "admin")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user.Role != domain.RoleAdmin {
		t.Fatalf("role = %q", user.Role)
	}
}

func TestPasswordHashingRoundTrip(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt() error = %v", err)
	}
	user := &domain.StoredUser{
		User:         domain.User{Username: "u", Role: domain.RoleViewer},
		Salt:         salt,
		PasswordHash: HashPassword(salt, "correct horse"),
	}
	if !VerifyPassword(user, "correct horse") {
		t.Fatalf("correct password rejected")
	}
	if VerifyPassword(user, "wrong") {
		t.Fatalf("wrong password accepted")
	}
	if VerifyPassword(nil, "anything") {
		t.Fatalf("nil user accepted")
	}
}

func TestHashDependsOnSalt(t *testing.T) {
	if HashPassword("salt-a", "pw") == HashPassword("salt-b", "pw") {
		t.Fatalf("same hash for different salts")
	}
}
