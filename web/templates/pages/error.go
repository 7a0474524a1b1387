package pages

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"mollie_bridge_echo/web/templates/shared"
)

type ErrorPageProps struct {
	Title        string
	Breadcrumbs  []shared.Breadcrumb
	UserEmail    string
	ErrorTitle   string
	ErrorMessage string
	BackLink     string
	BackText     string
}

// ErrorPage is the error page shown inside the admin area.
func ErrorPage(props ErrorPageProps) templ.Component {
	return shared.Layout(props.Title, props.Breadcrumbs, errorBody(props, true))
}

// PublicErrorPage is the branded error page shown to customers.
func PublicErrorPage(props ErrorPageProps) templ.Component {
	return shared.Layout(props.Title, nil, errorBody(props, false))
}

func errorBody(props ErrorPageProps, admin bool) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		html := `<section class="error">`
		if admin && props.UserEmail != "" {
			html += `<p class="user">Signed in as ` + templ.EscapeString(props.UserEmail) + `</p>`
		}
		html += `<h1>` + templ.EscapeString(props.ErrorTitle) + `</h1>` +
			`<p>` + templ.EscapeString(props.ErrorMessage) + `</p>`
		if props.BackLink != "" {
			text := props.BackText
			if text == "" {
				text = "Go back"
			}
			html += `<a class="button" href="` + templ.EscapeString(props.BackLink) + `">` + templ.EscapeString(text) + `</a>`
		}
		html += `</section>`
		_, err := io.WriteString(w, html)
		return err
	})
}
