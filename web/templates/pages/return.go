package pages

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"mollie_bridge_echo/web/templates/shared"
)

type ReturnPageProps struct {
	Title    string
	Outcome  string
	OrderID  uint
	Heading  string
	Message  string
	RetryURL string
}

// ReturnPage shows the payment result after the customer comes back from the gateway.
func ReturnPage(props ReturnPageProps) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		html := fmt.Sprintf(`<section class="payment-result payment-result--%s">`, templ.EscapeString(props.Outcome)) +
			`<h1>` + templ.EscapeString(props.Heading) + `</h1>` +
			`<p>` + templ.EscapeString(props.Message) + `</p>`
		if props.OrderID != 0 {
			html += fmt.Sprintf(`<p class="order">Order #%d</p>`, props.OrderID)
		}
		if props.RetryURL != "" {
			html += `<a class="button" href="` + templ.EscapeString(props.RetryURL) + `">Try again</a>`
		}
		html += `</section>`
		_, err := io.WriteString(w, html)
		return err
	})

	return shared.Layout(props.Title, nil, body)
}
