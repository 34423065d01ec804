package orders

import (
	"time"

	"github.com/akbarsho/storefront-backend/internal/registry"
	"github.com/akbarsho/storefront-backend/pkg/docstore"
	"github.com/akbarsho/storefront-backend/pkg/types"
)

const ordersCollection = "orders"

// Status is the order lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether the status is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransition encodes the allowed lifecycle moves. Completed and cancelled
// are terminal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCancelled
	case StatusProcessing:
		return to == StatusCompleted || to == StatusCancelled
	}
	return false
}

// Order is a placed order as read back from the store.
type Order struct {
	OrderID       string              `json:"orderId"`
	UserID        string              `json:"userId,omitempty"`
	Lines         []registry.CartLine `json:"items"`
	ShippingInfo  types.ShippingInfo  `json:"shippingInfo"`
	PaymentMethod string              `json:"paymentMethod"`
	TotalPrice    int64               `json:"totalPrice"`
	Status        Status              `json:"status"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// PlaceOrderInput is the checkout snapshot. Lines come from the caller, not a
// live re-read, so a concurrent cart mutation cannot shift the total.
type PlaceOrderInput struct {
	ShippingInfo  types.ShippingInfo  `json:"shippingInfo" validate:"required"`
	PaymentMethod string              `json:"paymentMethod" validate:"required,oneof=card bank_transfer cash_on_delivery"`
	Lines         []registry.CartLine `json:"items" validate:"required,min=1"`
}

func itemFields(line registry.CartLine) map[string]any {
	return map[string]any{
		"lineId":     line.LineID,
		"productId":  line.ProductID,
		"variantKey": line.VariantKey,
		"quantity":   line.Quantity,
		"price":      line.UnitPrice,
		"title":      line.Title,
		"image":      line.Image,
		"addedAt":    line.AddedAt.UTC().Format(time.RFC3339Nano),
	}
}

func orderFields(order Order) map[string]any {
	items := make([]any, 0, len(order.Lines))
	for _, line := range order.Lines {
		items = append(items, itemFields(line))
	}
	return map[string]any{
		"items":         items,
		"shippingInfo":  order.ShippingInfo.Fields(),
		"totalPrice":    order.TotalPrice,
		"paymentMethod": order.PaymentMethod,
		"status":        string(order.Status),
		"createdAt":     order.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func orderFromDocument(doc docstore.Document) Order {
	order := Order{
		OrderID:       doc.ID,
		UserID:        doc.String("userId"),
		PaymentMethod: doc.String("paymentMethod"),
		TotalPrice:    doc.Int64("totalPrice"),
		Status:        Status(doc.String("status")),
		CreatedAt:     doc.Time("createdAt"),
	}
	if shipping, ok := doc.Fields["shippingInfo"].(map[string]any); ok {
		sub := docstore.Document{Fields: shipping}
		order.ShippingInfo = types.ShippingInfo{
			FirstName:  sub.String("firstName"),
			LastName:   sub.String("lastName"),
			Email:      sub.String("email"),
			Phone:      sub.String("phone"),
			Address:    sub.String("address"),
			City:       sub.String("city"),
			PostalCode: sub.String("postalCode"),
			Country:    sub.String("country"),
		}
	}
	if items, ok := doc.Fields["items"].([]any); ok {
		for _, raw := range items {
			fields, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			sub := docstore.Document{Fields: fields}
			order.Lines = append(order.Lines, registry.CartLine{
				LineID:     sub.String("lineId"),
				ProductID:  sub.String("productId"),
				VariantKey: sub.String("variantKey"),
				Quantity:   sub.Int64("quantity"),
				UnitPrice:  sub.Int64("price"),
				Title:      sub.String("title"),
				Image:      sub.String("image"),
				AddedAt:    sub.Time("addedAt"),
			})
		}
	}
	return order
}
