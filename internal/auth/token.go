package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the fixed lifetime of an issued token.
const TokenTTL = 60 * time.Hour

// Claims is the token payload: the subject's user ID plus expiry.
// The wire shape is exactly {"id": <integer>, "exp": <unix-seconds>}.
type Claims struct {
	UserID int64 `json:"id"`
	jwt.RegisteredClaims
}

// IssueToken mints a signed HS512 token for the given subject, expiring
// TokenTTL from now. Signing failure wraps ErrTokenCreation; an unsigned
// token is never returned.
func IssueToken(subject int64, secret []byte) (string, error) {
	claims := Claims{
		UserID: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenCreation, err)
	}
	return signed, nil
}

// ParseToken validates a token's signature, algorithm, and expiry, and
// returns the embedded subject ID. Only HS512 is accepted; anything else,
// including a tampered payload or elapsed expiry, yields ErrInvalidToken.
func ParseToken(tokenString string, secret []byte) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, ErrInvalidToken
	}

	return claims.UserID, nil
}
