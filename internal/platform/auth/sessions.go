package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/healthportal/portal/pkg/clock"
)

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// Sessions ties the session store, token signer and cookie together.
type Sessions struct {
	store  SessionStore
	signer *TokenSigner
	cookie CookieConfig
	clock  clock.Clock
	logger zerolog.Logger
}

func NewSessions(store SessionStore, signer *TokenSigner, cookie CookieConfig, clk clock.Clock, logger zerolog.Logger) *Sessions {
	if clk == nil {
		clk = clock.System{}
	}
	if cookie.Name == "" {
		cookie.Name = "_portal_session"
	}
	return &Sessions{store: store, signer: signer, cookie: cookie, clock: clk, logger: logger}
}

// Start creates a session for the account, writes it to the store and
// returns the signed token.
func (s *Sessions) Start(ctx context.Context, userType UserType, userID uuid.UUID) (*Session, string, error) {
	now := s.clock.Now()
	sess := &Session{
		ID:        uuid.New(),
		UserType:  userType,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cookie.TTL),
	}
	if err := s.store.Save(ctx, sess, s.cookie.TTL); err != nil {
		return nil, "", fmt.Errorf("save session: %w", err)
	}
	token, err := s.signer.Sign(sess)
	if err != nil {
		return nil, "", err
	}
	return sess, token, nil
}

// End revokes the session server-side.
func (s *Sessions) End(ctx context.Context, p *Principal) error {
	if p == nil {
		return nil
	}
	return s.store.Delete(ctx, p.SessionID)
}

// SetCookie writes the session cookie on the response.
func (s *Sessions) SetCookie(c echo.Context, token string, expires time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     s.cookie.Name,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(s.cookie.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (s *Sessions) ClearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     s.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Sessions) tokenFrom(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if ck, err := c.Cookie(s.cookie.Name); err == nil {
		return ck.Value
	}
	return ""
}

// Authenticate resolves the session cookie (or a Bearer token carrying the
// same value) into a Principal. Requests without a valid live session
// continue anonymously; Authorize decides whether that is allowed.
func (s *Sessions) Authenticate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := s.tokenFrom(c)
			if token == "" {
				return next(c)
			}

			p, err := s.signer.Parse(token)
			if err != nil {
				s.logger.Debug().Err(err).Msg("rejected session token")
				return next(c)
			}

			ctx := c.Request().Context()
			sess, err := s.store.Get(ctx, p.SessionID)
			if errors.Is(err, ErrSessionNotFound) {
				return next(c)
			}
			if err != nil {
				s.logger.Error().Err(err).Msg("session lookup failed")
				return echo.NewHTTPError(http.StatusServiceUnavailable, "session store unavailable")
			}
			if sess.UserID != p.UserID || sess.UserType != p.UserType {
				return next(c)
			}

			setPrincipal(c, p)
			return next(c)
		}
	}
}
