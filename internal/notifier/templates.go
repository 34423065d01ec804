package notifier

import (
	"fmt"
	"strings"

	"github.com/akbarsho/storefront-backend/internal/orders"
)

// ConfirmationSubject renders the email subject with a shortened order id.
func ConfirmationSubject(event orders.OrderPlacedEvent) string {
	shortID := event.OrderID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	return fmt.Sprintf("Order confirmation #%s", shortID)
}

// ConfirmationBody renders the plain-text and HTML bodies.
func ConfirmationBody(event orders.OrderPlacedEvent) (plain, html string) {
	name := strings.TrimSpace(event.UserName)
	if name == "" {
		name = "there"
	}
	total := FormatPrice(event.TotalPrice)

	plain = fmt.Sprintf(
		"Hi %s,\n\nThanks for your order %s.\nItems: %d\nTotal: %s\nPayment: %s\n\nWe'll let you know when it ships.\n",
		name, event.OrderID, event.LineCount, total, paymentLabel(event.PaymentMethod),
	)

	html = fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 22px;">Thanks for your order</h1>
	<p>Hi %s,</p>
	<p>We received your order <strong>%s</strong>.</p>
	<table style="width: 100%%; border-collapse: collapse;">
		<tr><td style="padding: 8px 0;">Items</td><td style="text-align: right;">%d</td></tr>
		<tr><td style="padding: 8px 0;">Payment</td><td style="text-align: right;">%s</td></tr>
		<tr><td style="padding: 8px 0; border-top: 1px solid #eee;"><strong>Total</strong></td><td style="text-align: right; border-top: 1px solid #eee;"><strong>%s</strong></td></tr>
	</table>
	<p>We'll let you know when it ships.</p>
</body>
</html>`,
		name, event.OrderID, event.LineCount, paymentLabel(event.PaymentMethod), total,
	)
	return plain, html
}

// FormatPrice renders integer cents as dollars.
func FormatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

func paymentLabel(method string) string {
	switch method {
	case "card":
		return "Card"
	case "bank_transfer":
		return "Bank transfer"
	case "cash_on_delivery":
		return "Cash on delivery"
	default:
		return method
	}
}
