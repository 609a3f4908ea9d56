package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "health-portal"

// SessionClaims is the payload of the session cookie. Subject carries the
// user id and ID (jti) the server-side session id.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserType UserType `json:"user_type"`
}

// TokenSigner issues and verifies HS256 session tokens.
type TokenSigner struct {
	key []byte
	now func() time.Time
}

func NewTokenSigner(secret string, now func() time.Time) (*TokenSigner, error) {
	if secret == "" {
		return nil, errors.New("session secret is empty")
	}
	if now == nil {
		now = time.Now
	}
	return &TokenSigner{key: []byte(secret), now: now}, nil
}

func (t *TokenSigner) Sign(sess *Session) (string, error) {
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   sess.UserID.String(),
			ID:        sess.ID.String(),
			IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
		UserType: sess.UserType,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer and expiry and returns the principal the
// token names. The caller still has to check the session store.
func (t *TokenSigner) Parse(token string) (*Principal, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid session token: %w", err)
	}

	userType, err := ParseUserType(string(claims.UserType))
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}
	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid session id: %w", err)
	}
	return &Principal{UserType: userType, UserID: userID, SessionID: sessionID}, nil
}
