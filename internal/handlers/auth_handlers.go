package handlers

import (
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"mollie_bridge_echo/internal/middleware"
	"mollie_bridge_echo/web/templates/pages"
)

// sessionExpiry is how long an admin stays signed in
const sessionExpiry = 5 * 24 * time.Hour

// FirebaseWebConfig is the public Firebase configuration used by the login page.
type FirebaseWebConfig struct {
	APIKey     string
	AuthDomain string
	ProjectID  string
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authClient   *auth.Client
	web          FirebaseWebConfig
	secureCookie bool
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authClient *auth.Client, web FirebaseWebConfig, secureCookie bool) *AuthHandler {
	return &AuthHandler{authClient: authClient, web: web, secureCookie: secureCookie}
}

// LoginPage renders the login page
func (h *AuthHandler) LoginPage(c echo.Context) error {
	props := pages.LoginPageProps{
		Title:              "Sign in",
		FirebaseAPIKey:     h.web.APIKey,
		FirebaseAuthDomain: h.web.AuthDomain,
		FirebaseProjectID:  h.web.ProjectID,
	}
	if c.QueryParam("error") == "auth_not_configured" {
		props.Error = "Sign-in is not configured on this server."
	}
	return pages.LoginPage(props).Render(c.Request().Context(), c.Response())
}

// HandleLogin verifies the Firebase ID token and creates a session cookie
func (h *AuthHandler) HandleLogin(c echo.Context) error {
	if h.authClient == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "Firebase not initialized",
		})
	}

	// Get ID Token from Authorization Header
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Missing authorization header",
		})
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Invalid authorization format",
		})
	}

	token, err := h.authClient.VerifyIDToken(c.Request().Context(), tokenString)
	if err != nil {
		log.Warn().Err(err).Msg("rejected login token")
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error": "Invalid token",
		})
	}

	cookieValue, err := h.authClient.SessionCookie(c.Request().Context(), tokenString, sessionExpiry)
	if err != nil {
		log.Error().Err(err).Str("uid", token.UID).Msg("failed to create session cookie")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to create session",
		})
	}

	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    cookieValue,
		MaxAge:   int(sessionExpiry.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookie,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})

	log.Info().Str("uid", token.UID).Msg("admin signed in")

	return c.JSON(http.StatusOK, map[string]string{
		"status": "success",
	})
}

// HandleLogout clears the session cookie
func (h *AuthHandler) HandleLogout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
		Path:     "/",
	})

	return c.JSON(http.StatusOK, map[string]string{
		"status": "logged out",
	})
}
