package shared

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Breadcrumb represents a navigation trail entry. An empty URL marks the current page.
type Breadcrumb struct {
	Title string
	URL   string
}

// Layout wraps body in the common HTML document.
func Layout(title string, breadcrumbs []Breadcrumb, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`+
			`<meta name="viewport" content="width=device-width, initial-scale=1">`+
			`<title>`+templ.EscapeString(title)+`</title>`+
			`<link rel="stylesheet" href="/static/app.css"></head><body>`); err != nil {
			return err
		}
		if err := Breadcrumbs(breadcrumbs).Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<main class="container">`); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</main></body></html>`)
		return err
	})
}

// Breadcrumbs renders the navigation trail.
func Breadcrumbs(items []Breadcrumb) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(items) == 0 {
			return nil
		}
		if _, err := io.WriteString(w, `<nav class="breadcrumbs"><ol>`); err != nil {
			return err
		}
		for _, b := range items {
			var item string
			if b.URL == "" {
				item = `<li aria-current="page">` + templ.EscapeString(b.Title) + `</li>`
			} else {
				item = `<li><a href="` + templ.EscapeString(b.URL) + `">` + templ.EscapeString(b.Title) + `</a></li>`
			}
			if _, err := io.WriteString(w, item); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</ol></nav>`)
		return err
	})
}
