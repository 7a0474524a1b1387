package pages

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"mollie_bridge_echo/internal/gateway"
	"mollie_bridge_echo/internal/services"
	"mollie_bridge_echo/web/templates/shared"
)

type CheckoutFormProps struct {
	Title          string
	OrderID        uint
	Amount         string
	Methods        []services.MethodOption
	SelectedMethod string
	Issuers        []gateway.Issuer
	SelectedIssuer string
	IssuerURL      string
	PayURL         string
	ErrorMessage   string
}

// CheckoutForm lets the customer pick a method and, where offered, an issuer.
func CheckoutForm(props CheckoutFormProps) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		fmt.Fprintf(&b, `<h1>Pay order #%d</h1><p class="amount">%s</p>`, props.OrderID, templ.EscapeString(props.Amount))
		if props.ErrorMessage != "" {
			b.WriteString(`<p class="error">` + templ.EscapeString(props.ErrorMessage) + `</p>`)
		}

		b.WriteString(`<form method="post" action="` + templ.EscapeString(props.PayURL) + `">`)
		if len(props.Methods) == 0 {
			b.WriteString(`<p>No payment methods are available for this order.</p>`)
		}
		for _, m := range props.Methods {
			checked := ""
			if m.ID == props.SelectedMethod {
				checked = " checked"
			}
			disabled := ""
			if m.Error != "" {
				disabled = " disabled"
			}
			b.WriteString(`<label class="method">`)
			b.WriteString(`<input type="radio" name="method" value="` + templ.EscapeString(m.ID) + `"` + checked + disabled + `>`)
			if m.Image != "" {
				b.WriteString(`<img src="` + templ.EscapeString(m.Image) + `" alt="">`)
			}
			b.WriteString(templ.EscapeString(m.Title) + `</label>`)
		}

		if len(props.Issuers) > 0 {
			b.WriteString(`<label for="issuer">Select your bank</label>`)
			b.WriteString(`<select id="issuer" name="issuer" data-issuer-url="` + templ.EscapeString(props.IssuerURL) + `">`)
			b.WriteString(`<option value="">-</option>`)
			for _, is := range props.Issuers {
				selected := ""
				if is.ID == props.SelectedIssuer {
					selected = " selected"
				}
				b.WriteString(`<option value="` + templ.EscapeString(is.ID) + `"` + selected + `>` + templ.EscapeString(is.Name) + `</option>`)
			}
			b.WriteString(`</select>`)
		}

		b.WriteString(`<button type="submit">Continue to payment</button></form>`)
		b.WriteString(`<script src="/static/checkout.js" defer></script>`)

		_, err := io.WriteString(w, b.String())
		return err
	})

	return shared.Layout(props.Title, nil, body)
}
