package auth

import "errors"

// Credentials holds a user's login and password hash. The two always
// travel together: a user either has both (registered) or neither (guest).
type Credentials struct {
	Login        string `json:"login"`
	PasswordHash string `json:"-"` // never serialised
}

// User represents an account. Guests are provisioned automatically during
// an anonymous parking join and carry no credentials until they register.
type User struct {
	ID          int64        `json:"id"`
	Credentials *Credentials `json:"credentials,omitempty"`
}

// IsGuest reports whether the user has no login credentials.
func (u *User) IsGuest() bool {
	return u.Credentials == nil
}

// Caller is the resolved authentication state of a request: either an
// identified subject or anonymous. Construct with Identified or Anonymous;
// the zero value is anonymous.
type Caller struct {
	id         int64
	identified bool
}

// Anonymous returns a Caller with no identity.
func Anonymous() Caller {
	return Caller{}
}

// Identified returns a Caller bound to the given subject ID.
func Identified(id int64) Caller {
	return Caller{id: id, identified: true}
}

// ID returns the subject ID and whether the caller is identified.
// Callers must check the second return value before using the ID.
func (c Caller) ID() (int64, bool) {
	return c.id, c.identified
}

// IsAnonymous reports whether the caller carries no identity.
func (c Caller) IsAnonymous() bool {
	return !c.identified
}

// Sentinel errors for auth operations.
var (
	// ErrNoAuthHeader means the Authorization header was absent (or not
	// valid UTF-8, which is treated identically).
	ErrNoAuthHeader = errors.New("no authorization header")

	// ErrInvalidAuthHeader means the Authorization header was present but
	// did not carry a bearer token.
	ErrInvalidAuthHeader = errors.New("invalid authorization header")

	// ErrInvalidToken means the bearer token failed signature, algorithm,
	// expiry, or format checks.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenCreation means signing a new token failed. This indicates a
	// deployment defect (bad key material), not user input.
	ErrTokenCreation = errors.New("token creation failed")

	// ErrUserNotFound is returned by repositories when no user matches.
	ErrUserNotFound = errors.New("user not found")

	// ErrLoginExists is returned when an insert or update would violate
	// login uniqueness.
	ErrLoginExists = errors.New("login already exists")
)
