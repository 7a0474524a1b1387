package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	checkoutCookieName = "checkout_session"
	checkoutSessionKey = "checkoutSession"
)

// CheckoutSession makes sure every checkout request carries a session id
// cookie. The id keys the server-side session store.
func CheckoutSession(ttl time.Duration, secure bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := ""
			if cookie, err := c.Cookie(checkoutCookieName); err == nil {
				if _, err := uuid.Parse(cookie.Value); err == nil {
					id = cookie.Value
				}
			}
			if id == "" {
				id = uuid.NewString()
			}

			c.SetCookie(&http.Cookie{
				Name:     checkoutCookieName,
				Value:    id,
				MaxAge:   int(ttl.Seconds()),
				HttpOnly: true,
				Secure:   secure,
				Path:     "/",
				SameSite: http.SameSiteLaxMode,
			})
			c.Set(checkoutSessionKey, id)

			return next(c)
		}
	}
}

// SessionID returns the checkout session id set by CheckoutSession.
func SessionID(c echo.Context) string {
	id, _ := c.Get(checkoutSessionKey).(string)
	return id
}
