package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Ahnjunghyeon/test-login-sub000/internal/identity"
	"github.com/labstack/echo/v4"
)

// Authenticator resolves a session token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*identity.Session, error)
}

// bearerToken extracts "Bearer <token>" from the Authorization header. Browsers
// cannot set headers on WebSocket upgrades, so access_token is accepted there.
func bearerToken(c echo.Context) (string, bool, error) {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		if t := c.QueryParam("access_token"); t != "" && c.IsWebSocket() {
			return t, true, nil
		}
		return "", false, nil
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", true, echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
	}
	return parts[1], true, nil
}

func attach(c echo.Context, sess *identity.Session) {
	req := c.Request()
	c.SetRequest(req.WithContext(identity.WithSession(req.Context(), sess)))
}

// SessionAuth rejects requests without a valid session with 401.
func SessionAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, present, err := bearerToken(c)
			if err != nil {
				return err
			}
			if !present {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
			}
			sess, err := auth.Authenticate(c.Request().Context(), token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired session")
			}
			attach(c, sess)
			return next(c)
		}
	}
}

// OptionalAuth attaches a session when a valid token is presented and
// otherwise continues signed out.
func OptionalAuth(auth Authenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, present, err := bearerToken(c)
			if err == nil && present {
				if sess, err := auth.Authenticate(c.Request().Context(), token); err == nil {
					attach(c, sess)
				}
			}
			return next(c)
		}
	}
}
