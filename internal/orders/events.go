package orders

import "time"

// OrderPlacedEvent is published on the orders topic after a successful
// checkout. The notifier worker turns it into a confirmation email.
type OrderPlacedEvent struct {
	OrderID       string    `json:"orderId"`
	UserID        string    `json:"userId"`
	UserEmail     string    `json:"userEmail"`
	UserName      string    `json:"userName"`
	TotalPrice    int64     `json:"totalPrice"`
	PaymentMethod string    `json:"paymentMethod"`
	LineCount     int       `json:"lineCount"`
	CreatedAt     time.Time `json:"createdAt"`
}
