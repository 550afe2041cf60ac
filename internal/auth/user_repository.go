package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// UserRepository defines the interface for user account persistence.
type UserRepository interface {
	// Create inserts a new user and fills in the generated ID. A nil
	// Credentials field creates a guest account.
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByLogin(ctx context.Context, login string) (*User, error)
	// SetCredentials promotes a user in place by setting login and
	// password hash together.
	SetCredentials(ctx context.Context, id int64, creds Credentials) error
	Count(ctx context.Context) (int, error)
}

// SQLiteUserRepository implements UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// Create inserts a new user account and sets the generated ID.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	var login, passwordHash sql.NullString
	if user.Credentials != nil {
		login = sql.NullString{String: user.Credentials.Login, Valid: true}
		passwordHash = sql.NullString{String: user.Credentials.PasswordHash, Valid: true}
	}

	result, err := r.db.ExecContext(ctx,
		"INSERT INTO users (login, password_hash) VALUES (?, ?)",
		login, passwordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrLoginExists
		}
		return fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading new user id: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID retrieves a user by their unique ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.getUser(ctx, "SELECT id, login, password_hash FROM users WHERE id = ?", id)
}

// GetByLogin retrieves a user by their login.
func (r *SQLiteUserRepository) GetByLogin(ctx context.Context, login string) (*User, error) {
	return r.getUser(ctx, "SELECT id, login, password_hash FROM users WHERE login = ?", login)
}

// SetCredentials sets login and password hash together on an existing user.
func (r *SQLiteUserRepository) SetCredentials(ctx context.Context, id int64, creds Credentials) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET login = ?, password_hash = ? WHERE id = ?",
		creds.Login, creds.PasswordHash, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrLoginExists
		}
		return fmt.Errorf("setting credentials: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Count returns the total number of user accounts.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// getUser executes a query and scans a single user result.
func (r *SQLiteUserRepository) getUser(ctx context.Context, query string, args ...any) (*User, error) {
	var u User
	var login, passwordHash sql.NullString

	err := r.db.QueryRowContext(ctx, query, args...).Scan(&u.ID, &login, &passwordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	// login and password_hash are both present or both absent (schema CHECK).
	if login.Valid && passwordHash.Valid {
		u.Credentials = &Credentials{Login: login.String, PasswordHash: passwordHash.String}
	}

	return &u, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "unique constraint"))
}
