package middleware // reusable HTTP middleware for the console

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ProtectedPrefixes are the console screens that require a session.
var ProtectedPrefixes = []string{"/home", "/gyms", "/articles", "/admins", "/notifications", "/notice"}

// SessionTokenKey is the echo context key holding the session token once the
// gate has admitted a request.
const SessionTokenKey = "session_token"

// Decision is the outcome of classifying one navigation.  Redirect is only
// set when Allow is false.
type Decision struct {
	Allow    bool
	Redirect string
}

// Gate classifies navigations as allowed or redirected to the login page.
// Only the presence of a token is checked; whoever issued it already
// verified the credential.
type Gate struct {
	prefixes  []string
	loginPath string
}

// NewGate builds a gate redirecting to loginPath.  With no prefixes the
// ProtectedPrefixes list is used.
func NewGate(loginPath string, prefixes ...string) *Gate {
	if len(prefixes) == 0 {
		prefixes = ProtectedPrefixes
	}
	return &Gate{prefixes: prefixes, loginPath: loginPath}
}

// Protected reports whether path falls under one of the gate's prefixes.
func (g *Gate) Protected(path string) bool {
	for _, p := range g.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Classify is a pure function of path and token.
func (g *Gate) Classify(path, token string) Decision {
	if !g.Protected(path) || token != "" {
		return Decision{Allow: true}
	}
	return Decision{Redirect: g.loginPath}
}

// Middleware reads the session token from cookieName and applies Classify.
// Denied navigations get a 302 to the login path; admitted ones carry the
// token under SessionTokenKey.
func (g *Gate) Middleware(cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := ""
			if ck, err := c.Cookie(cookieName); err == nil {
				token = ck.Value
			}
			d := g.Classify(c.Request().URL.Path, token)
			if !d.Allow {
				return c.Redirect(http.StatusFound, d.Redirect)
			}
			if token != "" {
				c.Set(SessionTokenKey, token)
			}
			return next(c)
		}
	}
}

// SessionToken returns the token stored by the gate, or "".
func SessionToken(c echo.Context) string {
	if s, ok := c.Get(SessionTokenKey).(string); ok {
		return s
	}
	return ""
}
