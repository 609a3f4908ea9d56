package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// UserType is the kind of account a session belongs to.
type UserType string

const (
	UserDoctor   UserType = "doctor"
	UserPatient  UserType = "patient"
	UserFacility UserType = "facility"
)

func ParseUserType(s string) (UserType, error) {
	switch UserType(s) {
	case UserDoctor, UserPatient, UserFacility:
		return UserType(s), nil
	}
	return "", fmt.Errorf("unknown user type %q", s)
}

// Principal identifies the caller of a request.
type Principal struct {
	UserType  UserType  `json:"user_type"`
	UserID    uuid.UUID `json:"user_id"`
	SessionID uuid.UUID `json:"-"`
}

// Is reports whether the principal is the given account.
func (p *Principal) Is(t UserType, id uuid.UUID) bool {
	return p != nil && p.UserType == t && p.UserID == id
}

type contextKey string

const principalKey contextKey = "principal"

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated caller, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

// setPrincipal stores p on both the request context and the echo context
// keys read by the access logger.
func setPrincipal(c echo.Context, p *Principal) {
	c.SetRequest(c.Request().WithContext(WithPrincipal(c.Request().Context(), p)))
	c.Set("user_type", string(p.UserType))
	c.Set("user_id", p.UserID.String())
}
