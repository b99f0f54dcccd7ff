// Package notify renders the order summary and delivers it to the store
// administrator.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	textTemplate "text/template"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/storefront/internal/domain"
)

const dateLayout = "Monday, January 2, 2006"

// Summary is the rendered notification content.
type Summary struct {
	Subject string
	HTML    string
	Text    string
}

var htmlSummary = template.Must(template.New("summary").Funcs(template.FuncMap{"money": FormatMoney}).Parse(`
<h2 style="font-size: 18px;">New Order Received</h2>
<p><strong style="font-size: 20px;">Store Name: {{.StoreName}}</strong></p>
<p><strong style="font-size: 16px;">Store Email:</strong> {{.StoreEmail}}</p>
<p><strong style="font-size: 16px;">Address:</strong> {{.Address}}</p>
<p><strong style="font-size: 16px;">Order Number:</strong> {{.Number}}</p>
<p><strong style="font-size: 16px;">Order Date:</strong> {{.Date}}</p>
<h3 style="font-size: 16px;">Order Details:</h3>
<table style="width: 100%; border-collapse: collapse; margin-top: 10px;">
  <thead>
    <tr>
      <th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Product</th>
      <th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Quantity</th>
      <th style="padding: 10px; text-align: left; border: 1px solid #ddd;">Subtotal</th>
    </tr>
  </thead>
  <tbody>
{{- range .Lines}}
    <tr>
      <td style="padding: 10px; border: 1px solid #ddd;">{{.Name}}</td>
      <td style="padding: 10px; border: 1px solid #ddd;">{{.Quantity}}</td>
      <td style="padding: 10px; border: 1px solid #ddd;">{{money .Subtotal}}</td>
    </tr>
{{- end}}
  </tbody>
</table>
<p><strong style="font-size: 16px;">Total Amount:</strong> {{money .Total}}</p>
<div style="margin-top: 20px;">
  <h3 style="font-size: 16px;">Order Fulfillment</h3>
  <p style="font-size: 16px;">Date: __________________________________</p>
  <p style="font-size: 16px;">Signature: _______________________________</p>
</div>
`))

var textSummary = textTemplate.Must(textTemplate.New("summary").Funcs(textTemplate.FuncMap{"money": FormatMoney}).Parse(
	`New order {{.Number}} from {{.StoreName}} <{{.StoreEmail}}>
Address: {{.Address}}
Order Date: {{.Date}}
{{range .Lines}}
- {{.Name}} x {{.Quantity}}: {{money .Subtotal}}
{{- end}}

Total Amount: {{money .Total}}
{{- if .Attached}}

Please find the attached PDF for the order details.
{{- end}}
`))

type summaryView struct {
	StoreName  string
	StoreEmail string
	Address    string
	Number     string
	Date       string
	Lines      []domain.OrderLine
	Total      decimal.Decimal
	Attached   bool
}

func newSummaryView(event domain.OrderPlacedEvent) summaryView {
	return summaryView{
		StoreName:  event.StoreName,
		StoreEmail: event.StoreEmail,
		Address:    event.Address.String(),
		Number:     domain.FormatOrderNumber(event.OrderNumber),
		Date:       event.PlacedAt.Format(dateLayout),
		Lines:      event.Lines,
		Total:      event.Total,
	}
}

// RenderSummary builds the mail content for event. attached selects the
// plain text variant that points at the PDF.
func RenderSummary(event domain.OrderPlacedEvent, attached bool) (Summary, error) {
	view := newSummaryView(event)
	view.Attached = attached

	var html, text bytes.Buffer
	if err := htmlSummary.Execute(&html, view); err != nil {
		return Summary{}, fmt.Errorf("render html summary: %w", err)
	}
	if err := textSummary.Execute(&text, view); err != nil {
		return Summary{}, fmt.Errorf("render text summary: %w", err)
	}

	return Summary{
		Subject: "New Order from " + event.StoreName,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

// FormatMoney renders an amount in won with thousands separators. Fractions
// are kept only when present.
func FormatMoney(amount decimal.Decimal) string {
	return "₩" + groupDigits(amount)
}

func groupDigits(amount decimal.Decimal) string {
	s := amount.StringFixed(2)
	s = strings.TrimSuffix(s, ".00")

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		return sign + b.String() + "." + frac
	}
	return sign + b.String()
}
