package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"mollie_bridge_echo/internal/apperr"
	"mollie_bridge_echo/web/templates/pages"
	"mollie_bridge_echo/web/templates/shared"
)

var publicPrefixes = []string{"/checkout", "/payment", "/login", "/auth", "/static"}

// CustomErrorHandler renders error pages for browsers and JSON for API clients.
// Domain errors are mapped to a status through apperr.
func CustomErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	errorMessage := ""

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if msg, ok := he.Message.(string); ok && msg != "" {
			errorMessage = msg
		}
	} else {
		code = apperr.HTTPStatus(err)
		if code < http.StatusInternalServerError {
			errorMessage = apperr.Message(err)
		}
	}

	errorTitle, fallback := describeStatus(code)
	if errorMessage == "" {
		errorMessage = fallback
	}

	event := log.Warn()
	if code >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Int("status", code).
		Str("kind", apperr.Kind(err)).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Msg("request failed")

	if wantsJSON(c) || strings.HasPrefix(c.Request().URL.Path, "/api") {
		if jerr := c.JSON(code, map[string]string{"error": errorMessage, "kind": apperr.Kind(err)}); jerr != nil {
			log.Error().Err(jerr).Msg("failed to write error response")
		}
		return
	}

	props := pages.ErrorPageProps{
		Title: errorTitle,
		Breadcrumbs: []shared.Breadcrumb{
			{Title: "Settings", URL: "/admin/settings"},
			{Title: "Error", URL: ""},
		},
		UserEmail:    getString(c, "userEmail"),
		ErrorTitle:   errorTitle,
		ErrorMessage: errorMessage,
	}

	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(code)

	var renderErr error
	if isPublicPath(c.Request().URL.Path) {
		renderErr = pages.PublicErrorPage(props).Render(c.Request().Context(), c.Response())
	} else {
		renderErr = pages.ErrorPage(props).Render(c.Request().Context(), c.Response())
	}
	if renderErr != nil {
		log.Error().Err(renderErr).Msg("failed to render error page")
	}
}

func describeStatus(code int) (title, message string) {
	switch code {
	case http.StatusNotFound:
		return "Page Not Found", "The page you're looking for doesn't exist."
	case http.StatusForbidden:
		return "Access Denied", "You don't have permission to access this resource."
	case http.StatusUnauthorized:
		return "Unauthorized", "Please log in to continue."
	case http.StatusBadRequest:
		return "Bad Request", "The request could not be processed."
	case http.StatusConflict:
		return "Payment In Progress", "A payment for this order is already being processed."
	case http.StatusUnprocessableEntity:
		return "Payment Not Possible", "The payment could not be started with the selected options."
	case http.StatusTooManyRequests:
		return "Too Many Requests", "Please wait a moment and try again."
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return "Payment Provider Unavailable", "The payment provider could not be reached. Please try again later."
	default:
		return "Internal Server Error", "Something went wrong. Please try again later."
	}
}

func isPublicPath(path string) bool {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func getString(c echo.Context, key string) string {
	s, _ := c.Get(key).(string)
	return s
}
