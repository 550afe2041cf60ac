package parking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/parkshare/parkshare-core/internal/auth"
)

// Service is the membership authorizer. It consumes the optional identity
// resolved by the auth gate plus domain state to decide who may read a
// parking's secret, who may register or promote credentials, and how join
// requests resolve.
//
// Every operation runs under one exclusive lock for its full read-then-write
// sequence, released on all exit paths. This serialises domain mutations —
// correct but a throughput ceiling under contention. The hasher and token
// functions it calls are stateless and remain lock-free.
type Service struct {
	mu          sync.Mutex
	users       auth.UserRepository
	parkings    Repository
	memberships MembershipRepository
	signingKey  []byte
}

// NewService creates a membership authorizer over the given repositories.
// The signing key is the process-wide token secret, never rotated within
// a process lifetime.
func NewService(users auth.UserRepository, parkings Repository, memberships MembershipRepository, signingKey []byte) *Service {
	return &Service{
		users:       users,
		parkings:    parkings,
		memberships: memberships,
		signingKey:  signingKey,
	}
}

// Register creates credentials for the given login. An anonymous caller
// gets a fresh account; an identified caller must name an existing guest,
// which is promoted in place. An already-taken login fails with
// ErrLoginInUse; re-registering an already-credentialed account fails
// with ErrUnauthorized.
func (s *Service) Register(ctx context.Context, login, password string, caller auth.Caller) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.users.GetByLogin(ctx, login)
	if err == nil {
		return ErrLoginInUse
	}
	if !errors.Is(err, auth.ErrUserNotFound) {
		return fmt.Errorf("looking up login: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		// Hashing cannot fail on user input; this is a deployment defect.
		return fmt.Errorf("hashing password: %w", err)
	}
	creds := auth.Credentials{Login: login, PasswordHash: hash}

	id, identified := caller.ID()
	if !identified {
		user := &auth.User{Credentials: &creds}
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, auth.ErrLoginExists) {
				return ErrLoginInUse
			}
			return fmt.Errorf("creating user: %w", err)
		}
		return nil
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("looking up caller: %w", err)
	}
	if !user.IsGuest() {
		return ErrUnauthorized
	}

	if err := s.users.SetCredentials(ctx, id, creds); err != nil {
		if errors.Is(err, auth.ErrLoginExists) {
			return ErrLoginInUse
		}
		return fmt.Errorf("promoting guest: %w", err)
	}
	return nil
}

// Login verifies the credentials and mints a token for the account,
// returning the account id alongside the token so callers can attribute
// the session without re-parsing it. Unknown login, guest account, and
// password mismatch are a single undifferentiated ErrWrongCredentials.
// A token-signing failure is NOT masked as a credential error: it
// indicates a deployment defect and propagates as an internal failure.
func (s *Service) Login(ctx context.Context, login, password string) (int64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return 0, "", ErrWrongCredentials
		}
		return 0, "", fmt.Errorf("looking up login: %w", err)
	}
	if user.IsGuest() {
		return 0, "", ErrWrongCredentials
	}
	if !auth.VerifyPassword(password, user.Credentials.PasswordHash) {
		return 0, "", ErrWrongCredentials
	}

	token, err := auth.IssueToken(user.ID, s.signingKey)
	if err != nil {
		return 0, "", fmt.Errorf("issuing token: %w", err)
	}
	return user.ID, token, nil
}

// Create inserts a new parking owned by the caller. The parking secret is
// stored as given — cleartext, matching the equality-based join.
func (s *Service) Create(ctx context.Context, name, password string, caller auth.Caller) (*Parking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ownerID, identified := caller.ID()
	if !identified {
		return nil, ErrNoPermission
	}

	p := &Parking{Name: name, Password: password, OwnerID: ownerID}
	if err := s.parkings.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadSecret returns the parking including its stored password. Only the
// owner may read it; an anonymous caller, a missing parking, and a
// non-owner caller all fail with ErrNoPermission.
func (s *Service) ReadSecret(ctx context.Context, parkingID int64, caller auth.Caller) (*Parking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	callerID, identified := caller.ID()
	if !identified {
		return nil, ErrNoPermission
	}

	p, err := s.parkings.GetByID(ctx, parkingID)
	if err != nil {
		if errors.Is(err, ErrParkingNotFound) {
			return nil, ErrNoPermission
		}
		return nil, fmt.Errorf("looking up parking: %w", err)
	}
	if p.OwnerID != callerID {
		return nil, ErrNoPermission
	}
	return p, nil
}

// Join resolves a join request against the parking matching the given
// name and password exactly. An identified caller joins as themselves; an
// anonymous caller is provisioned a guest account and receives a fresh
// token alongside the membership, so a first-time joiner becomes a
// durable, re-authenticatable participant. The membership row is inserted
// without de-duplication.
func (s *Service) Join(ctx context.Context, name, password string, caller auth.Caller) (*JoinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.parkings.FindByNameAndPassword(ctx, name, password)
	if err != nil {
		if errors.Is(err, ErrParkingNotFound) {
			return nil, ErrWrongParking
		}
		return nil, fmt.Errorf("matching parking: %w", err)
	}

	consumerID, identified := caller.ID()
	var token string
	if !identified {
		guest := &auth.User{}
		if err := s.users.Create(ctx, guest); err != nil {
			return nil, fmt.Errorf("provisioning guest: %w", err)
		}
		token, err = auth.IssueToken(guest.ID, s.signingKey)
		if err != nil {
			return nil, fmt.Errorf("issuing guest token: %w", err)
		}
		consumerID = guest.ID
	}

	if err := s.memberships.Add(ctx, p.ID, consumerID); err != nil {
		return nil, err
	}

	return &JoinResult{Token: token, Parking: p}, nil
}

// ListVisible returns the caller's joined parkings in reverse of their
// membership insertion order, followed by the caller's owned parkings,
// each with the secret stripped. The ordering is a caller-visible
// contract, not an incidental detail.
func (s *Service) ListVisible(ctx context.Context, caller auth.Caller) ([]Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	callerID, identified := caller.ID()
	if !identified {
		return nil, ErrNoPermission
	}

	memberships, err := s.memberships.ListByConsumer(ctx, callerID)
	if err != nil {
		return nil, err
	}

	visible := make([]Summary, 0, len(memberships))
	for i := len(memberships) - 1; i >= 0; i-- {
		p, err := s.parkings.GetByID(ctx, memberships[i].ParkingID)
		if err != nil {
			return nil, fmt.Errorf("loading joined parking %d: %w", memberships[i].ParkingID, err)
		}
		visible = append(visible, p.Summary())
	}

	owned, err := s.parkings.ListByOwner(ctx, callerID)
	if err != nil {
		return nil, err
	}
	for i := range owned {
		visible = append(visible, owned[i].Summary())
	}

	return visible, nil
}
