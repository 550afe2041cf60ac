package parking

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/parkshare/parkshare-core/internal/auth"
)

var testSigningKey = []byte("test-secret-key-at-least-32-characters-long")

// testDB creates a temporary SQLite database with the domain schema applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "parking-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			login TEXT UNIQUE,
			password_hash TEXT,
			CHECK ((login IS NULL) = (password_hash IS NULL))
		) STRICT;

		CREATE TABLE parkings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			owner_id INTEGER NOT NULL REFERENCES users(id)
		) STRICT;

		CREATE TABLE parkings_consumers (
			parking_id INTEGER NOT NULL REFERENCES parkings(id),
			consumer_id INTEGER NOT NULL REFERENCES users(id)
		) STRICT;
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	return db
}

// testService builds a Service over a fresh temp database.
func testService(t *testing.T) (*Service, auth.UserRepository) {
	t.Helper()

	db := testDB(t)
	users := auth.NewUserRepository(db)
	svc := NewService(users, NewRepository(db), NewMembershipRepository(db), testSigningKey)
	return svc, users
}

// registerAndLogin registers a fresh account and returns its caller identity.
func registerAndLogin(t *testing.T, svc *Service, login, password string) auth.Caller {
	t.Helper()
	ctx := context.Background()

	if err := svc.Register(ctx, login, password, auth.Anonymous()); err != nil {
		t.Fatalf("Register(%q) error = %v", login, err)
	}
	id, _, err := svc.Login(ctx, login, password)
	if err != nil {
		t.Fatalf("Login(%q) error = %v", login, err)
	}
	return auth.Identified(id)
}
