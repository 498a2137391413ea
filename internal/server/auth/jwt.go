// Package auth holds the credential primitives of the server: JWT issuing and
// parsing, password hashing and hashing of tokens kept at rest.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the claim set carried by both access and refresh tokens. The
// subject is the user id and the registered "jti" is the session id shared
// by the pair.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// UserID returns the token subject.
func (c *Claims) UserID() string { return c.Subject }

// SessionID returns the jti claim.
func (c *Claims) SessionID() string { return c.ID }

// TokenIssuer signs and parses HS256 tokens with a key injected at
// construction time. Rotating the key means building a new issuer; tokens
// signed with the old key stop verifying.
type TokenIssuer struct {
	secretKey []byte
	now       func() time.Time
}

func NewTokenIssuer(secretKey []byte) *TokenIssuer {
	return &TokenIssuer{secretKey: secretKey, now: time.Now}
}

// Issue signs a token for the given subject that expires ttl from now and
// returns it together with the expiry written into it.
func (i *TokenIssuer) Issue(subjectID, username, fullName, role string, ttl time.Duration, sessionID string) (string, time.Time, error) {
	now := i.now()
	expiresAt := jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: expiresAt,
		},
		Username: username,
		FullName: fullName,
		Role:     role,
	})

	tokenString, err := token.SignedString(i.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("error signing token: %w", err)
	}

	return tokenString, expiresAt.Time, nil
}

// Parse verifies signature, algorithm, structure and expiry. Expired tokens
// yield common.ErrTokenExpired; every other failure yields
// common.ErrInvalidToken.
func (i *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return i.secretKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, common.ErrInvalidToken
	}

	return claims, nil
}
