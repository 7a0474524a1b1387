package pages

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"mollie_bridge_echo/web/templates/shared"
)

type LoginPageProps struct {
	Title              string
	Error              string
	FirebaseAPIKey     string
	FirebaseAuthDomain string
	FirebaseProjectID  string
}

// LoginPage renders the merchant sign-in page. The browser signs in with
// Firebase and posts the ID token to /auth/login.
func LoginPage(props LoginPageProps) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		html := `<section class="login"><h1>Sign in</h1>`
		if props.Error != "" {
			html += `<p class="error">` + templ.EscapeString(props.Error) + `</p>`
		}
		html += `<div id="firebase-login"` +
			` data-api-key="` + templ.EscapeString(props.FirebaseAPIKey) + `"` +
			` data-auth-domain="` + templ.EscapeString(props.FirebaseAuthDomain) + `"` +
			` data-project-id="` + templ.EscapeString(props.FirebaseProjectID) + `"></div>` +
			`<script type="module" src="/static/login.js"></script></section>`
		_, err := io.WriteString(w, html)
		return err
	})

	return shared.Layout(props.Title, nil, body)
}
