package auth

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// bearerPrefix is the literal scheme prefix expected on the header.
const bearerPrefix = "Bearer "

// Mode selects how the gate treats an absent Authorization header.
type Mode int

const (
	// Obligatory rejects the request on any extraction or validation failure.
	Obligatory Mode = iota

	// Optional resolves an absent header to an anonymous Caller. A caller
	// who attempted authentication and failed (malformed header, invalid
	// token) is still rejected, never silently treated as anonymous.
	Optional
)

// Authorize resolves a raw Authorization header value into a Caller.
//
// Extraction errors: an absent header (or one that is not valid UTF-8,
// treated identically) yields ErrNoAuthHeader; a header without the
// "Bearer " prefix yields ErrInvalidAuthHeader. Validation errors yield
// ErrInvalidToken. In Optional mode only ErrNoAuthHeader is forgiven.
func Authorize(header string, mode Mode, secret []byte) (Caller, error) {
	raw, err := bearerToken(header)
	if err != nil {
		if mode == Optional && errors.Is(err, ErrNoAuthHeader) {
			return Anonymous(), nil
		}
		return Anonymous(), err
	}

	id, err := ParseToken(raw, secret)
	if err != nil {
		return Anonymous(), ErrInvalidToken
	}

	return Identified(id), nil
}

// bearerToken extracts the token from an Authorization header value.
func bearerToken(header string) (string, error) {
	if header == "" || !utf8.ValidString(header) {
		return "", ErrNoAuthHeader
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", ErrInvalidAuthHeader
	}
	return strings.TrimPrefix(header, bearerPrefix), nil
}
