package auth

import (
	"errors"
	"fmt"
	"net/http"

	casbin "github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/labstack/echo/v4"
)

// Role names used as casbin subjects. Every user type inherits
// authenticated, which inherits anonymous.
const (
	RoleAnonymous     = "anonymous"
	RoleAuthenticated = "authenticated"
)

var ErrForbidden = errors.New("forbidden")

// rbacModel matches the request path with keyMatch2 (":id" and "/*"
// placeholders) and the method with a regex so one rule can list several.
const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch2(r.obj, p.obj) && regexMatch(r.act, "^(" + p.act + ")$")
`

const (
	read      = "GET|HEAD"
	write     = "POST|PUT|PATCH|DELETE"
	readWrite = "GET|HEAD|POST|PUT|PATCH|DELETE"
)

// DefaultPolicies is the route access table for the portal API. Directory
// reads and account registration are public; everything touching
// appointments or patient records needs a session.
var DefaultPolicies = [][]string{
	{RoleAnonymous, "/health", read},
	{RoleAnonymous, "/metrics", read},
	{RoleAnonymous, "/api/v1/session", "POST"},

	{RoleAnonymous, "/api/v1/hospitals", read + "|POST"},
	{RoleAnonymous, "/api/v1/hospitals/*", read},
	{RoleAnonymous, "/api/v1/clinics", read + "|POST"},
	{RoleAnonymous, "/api/v1/clinics/*", read},
	{RoleAnonymous, "/api/v1/doctors", read + "|POST"},
	{RoleAnonymous, "/api/v1/doctors/*", read},
	{RoleAnonymous, "/api/v1/specializations", read},
	{RoleAnonymous, "/api/v1/patients", "POST"},

	{RoleAuthenticated, "/api/v1/session", "GET|DELETE"},
	{RoleAuthenticated, "/api/v1/feed", read},
	{RoleAuthenticated, "/api/v1/appointments", read + "|POST"},
	{RoleAuthenticated, "/api/v1/appointments/*", readWrite},
	{RoleAuthenticated, "/api/v1/patients", read},
	{RoleAuthenticated, "/api/v1/patients/*", read},

	{string(UserPatient), "/api/v1/patients/:id", write},
	{string(UserDoctor), "/api/v1/doctors/:id", write},
	{string(UserFacility), "/api/v1/hospitals/:id", write},
	{string(UserFacility), "/api/v1/clinics/:id", write},

	{string(UserDoctor), "/api/v1/dashboard/doctor", read},
	{string(UserPatient), "/api/v1/dashboard/patient", read},
	{string(UserFacility), "/api/v1/dashboard/facility", read},
}

var defaultGroupings = [][]string{
	{string(UserDoctor), RoleAuthenticated},
	{string(UserPatient), RoleAuthenticated},
	{string(UserFacility), RoleAuthenticated},
	{RoleAuthenticated, RoleAnonymous},
}

// Authorizer answers route-level access questions with casbin.
type Authorizer struct {
	enforcer *casbin.Enforcer
}

// NewAuthorizer builds an enforcer from the embedded model and the given
// policies (DefaultPolicies when nil).
func NewAuthorizer(policies [][]string) (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}

	if policies == nil {
		policies = DefaultPolicies
	}
	if _, err := e.AddPolicies(policies); err != nil {
		return nil, fmt.Errorf("add policies: %w", err)
	}
	if _, err := e.AddGroupingPolicies(defaultGroupings); err != nil {
		return nil, fmt.Errorf("add role groupings: %w", err)
	}
	return &Authorizer{enforcer: e}, nil
}

// Allowed reports whether subject may perform method on path.
func (a *Authorizer) Allowed(subject, path, method string) (bool, error) {
	return a.enforcer.Enforce(subject, path, method)
}

func subjectOf(p *Principal) string {
	if p == nil {
		return RoleAnonymous
	}
	return string(p.UserType)
}

// Authorize enforces DefaultPolicies on every request. Anonymous callers get
// 401 so clients know to sign in; signed-in callers get 403.
func (a *Authorizer) Authorize() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFromContext(c.Request().Context())
			ok, err := a.Allowed(subjectOf(p), c.Request().URL.Path, c.Request().Method)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "authorization failed")
			}
			if ok {
				return next(c)
			}
			if p == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			return echo.NewHTTPError(http.StatusForbidden, ErrForbidden.Error())
		}
	}
}
