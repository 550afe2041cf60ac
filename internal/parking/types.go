package parking

import "errors"

// Parking represents a shared parking resource. Password is the parking's
// join secret, stored and compared as cleartext (join is an equality
// match, not a hash verify) and readable only by the owner.
type Parking struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Password string `json:"password"`
	OwnerID  int64  `json:"ownerId"`
}

// Summary is a parking with the secret stripped, as returned by listings.
type Summary struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	OwnerID int64  `json:"ownerId"`
}

// Summary returns the parking without its password field.
func (p *Parking) Summary() Summary {
	return Summary{ID: p.ID, Name: p.Name, OwnerID: p.OwnerID}
}

// Membership is a (parking, consumer) pairing granting a joined,
// non-owner participant. Rows are kept in insertion order and are never
// de-duplicated: re-joining an already-joined parking inserts another row.
type Membership struct {
	ParkingID  int64 `json:"parkingId"`
	ConsumerID int64 `json:"consumerId"`
}

// JoinResult is the outcome of a successful join. Token is set only when
// the caller was anonymous and a guest account was provisioned for them.
type JoinResult struct {
	Token   string
	Parking *Parking
}

// Sentinel errors for authorization decisions. None are retryable; each
// maps to a terminal rejection of the current request.
var (
	// ErrNoPermission means the caller is not the parking's owner (or is
	// anonymous, or the parking does not exist — indistinguishable).
	ErrNoPermission = errors.New("no permission")

	// ErrLoginInUse means the requested login already belongs to a user.
	ErrLoginInUse = errors.New("login in use")

	// ErrUnauthorized means an identified caller tried to register over an
	// already-credentialed account (or one that does not exist).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrWrongCredentials is the single undifferentiated login failure:
	// unknown login, guest account, and password mismatch all map here so
	// login existence never leaks.
	ErrWrongCredentials = errors.New("wrong credentials")

	// ErrWrongParking means no parking matched the given name and password.
	ErrWrongParking = errors.New("wrong parking")

	// ErrNameTaken means a parking with the requested name already exists.
	ErrNameTaken = errors.New("parking name taken")

	// ErrParkingNotFound is returned by repositories when no parking matches.
	ErrParkingNotFound = errors.New("parking not found")
)
