package middleware

import (
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// SessionCookieName is the cookie holding the Firebase session of a merchant.
const SessionCookieName = "session"

// RequireAuth returns a middleware that verifies Firebase session cookies.
// Browsers are redirected to the login page, API clients get a 401.
func RequireAuth(authClient *auth.Client) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if authClient == nil {
				return deny(c, "/login?error=auth_not_configured")
			}

			cookie, err := c.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				return deny(c, "/login")
			}

			decodedToken, err := authClient.VerifySessionCookieAndCheckRevoked(c.Request().Context(), cookie.Value)
			if err != nil {
				log.Debug().Err(err).Msg("rejected admin session cookie")
				c.SetCookie(&http.Cookie{
					Name:     SessionCookieName,
					Value:    "",
					MaxAge:   -1,
					HttpOnly: true,
					Path:     "/",
				})
				return deny(c, "/login")
			}

			// Set user info in context for downstream handlers
			c.Set("userUID", decodedToken.UID)
			if email, ok := decodedToken.Claims["email"].(string); ok {
				c.Set("userEmail", email)
			}
			if name, ok := decodedToken.Claims["name"].(string); ok {
				c.Set("userName", name)
			}

			return next(c)
		}
	}
}

func deny(c echo.Context, loginURL string) error {
	if wantsJSON(c) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Please log in to continue.")
	}
	return c.Redirect(http.StatusTemporaryRedirect, loginURL)
}

func wantsJSON(c echo.Context) bool {
	req := c.Request()
	return strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) ||
		strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}
