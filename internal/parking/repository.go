package parking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Repository defines the interface for parking persistence.
type Repository interface {
	// Create inserts a new parking and fills in the generated ID.
	Create(ctx context.Context, p *Parking) error
	GetByID(ctx context.Context, id int64) (*Parking, error)
	// FindByNameAndPassword matches a parking by exact name and password
	// equality (the join secret is compared as stored, not re-hashed).
	FindByNameAndPassword(ctx context.Context, name, password string) (*Parking, error)
	// ListByOwner returns all parkings owned by the user, in storage order.
	ListByOwner(ctx context.Context, ownerID int64) ([]Parking, error)
}

// MembershipRepository defines the interface for membership persistence.
type MembershipRepository interface {
	// Add inserts a membership row. Duplicates are allowed.
	Add(ctx context.Context, parkingID, consumerID int64) error
	// ListByConsumer returns the user's memberships in storage order.
	ListByConsumer(ctx context.Context, consumerID int64) ([]Membership, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewRepository creates a new SQLite-backed parking repository.
func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new parking and sets the generated ID.
func (r *SQLiteRepository) Create(ctx context.Context, p *Parking) error {
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO parkings (name, password, owner_id) VALUES (?, ?, ?)",
		p.Name, p.Password, p.OwnerID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrNameTaken
		}
		return fmt.Errorf("creating parking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading new parking id: %w", err)
	}
	p.ID = id
	return nil
}

// GetByID retrieves a parking by its unique ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Parking, error) {
	return r.getParking(ctx,
		"SELECT id, name, password, owner_id FROM parkings WHERE id = ?", id)
}

// FindByNameAndPassword matches a parking by exact (name, password) equality.
func (r *SQLiteRepository) FindByNameAndPassword(ctx context.Context, name, password string) (*Parking, error) {
	return r.getParking(ctx,
		"SELECT id, name, password, owner_id FROM parkings WHERE name = ? AND password = ?",
		name, password)
}

// ListByOwner returns all parkings owned by the user, oldest first.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID int64) ([]Parking, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, name, password, owner_id FROM parkings WHERE owner_id = ? ORDER BY id",
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing parkings: %w", err)
	}
	defer rows.Close()

	var parkings []Parking
	for rows.Next() {
		var p Parking
		if err := rows.Scan(&p.ID, &p.Name, &p.Password, &p.OwnerID); err != nil {
			return nil, fmt.Errorf("scanning parking: %w", err)
		}
		parkings = append(parkings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating parkings: %w", err)
	}
	return parkings, nil
}

// getParking executes a query and scans a single parking result.
func (r *SQLiteRepository) getParking(ctx context.Context, query string, args ...any) (*Parking, error) {
	var p Parking
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&p.ID, &p.Name, &p.Password, &p.OwnerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParkingNotFound
		}
		return nil, fmt.Errorf("scanning parking: %w", err)
	}
	return &p, nil
}

// SQLiteMembershipRepository implements MembershipRepository using SQLite.
type SQLiteMembershipRepository struct {
	db *sql.DB
}

// NewMembershipRepository creates a new SQLite-backed membership repository.
func NewMembershipRepository(db *sql.DB) *SQLiteMembershipRepository {
	return &SQLiteMembershipRepository{db: db}
}

// Add inserts a membership row. No uniqueness is enforced: joining the
// same parking twice records two rows.
func (r *SQLiteMembershipRepository) Add(ctx context.Context, parkingID, consumerID int64) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO parkings_consumers (parking_id, consumer_id) VALUES (?, ?)",
		parkingID, consumerID,
	)
	if err != nil {
		return fmt.Errorf("adding membership: %w", err)
	}
	return nil
}

// ListByConsumer returns the user's memberships in insertion order.
func (r *SQLiteMembershipRepository) ListByConsumer(ctx context.Context, consumerID int64) ([]Membership, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT parking_id, consumer_id FROM parkings_consumers WHERE consumer_id = ? ORDER BY rowid",
		consumerID)
	if err != nil {
		return nil, fmt.Errorf("listing memberships: %w", err)
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		var m Membership
		if err := rows.Scan(&m.ParkingID, &m.ConsumerID); err != nil {
			return nil, fmt.Errorf("scanning membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating memberships: %w", err)
	}
	return memberships, nil
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "unique constraint"))
}
