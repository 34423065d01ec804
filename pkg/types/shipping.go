package types

import "strings"

// ShippingInfo carries the delivery details captured at checkout.
type ShippingInfo struct {
	FirstName  string `json:"firstName" validate:"required"`
	LastName   string `json:"lastName" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Phone      string `json:"phone" validate:"required"`
	Address    string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// Sanitized returns a copy with every field trimmed. The backing store must
// never receive an unrepresentable absence, so blank stays blank rather than
// being dropped.
func (s ShippingInfo) Sanitized() ShippingInfo {
	return ShippingInfo{
		FirstName:  strings.TrimSpace(s.FirstName),
		LastName:   strings.TrimSpace(s.LastName),
		Email:      strings.TrimSpace(s.Email),
		Phone:      strings.TrimSpace(s.Phone),
		Address:    strings.TrimSpace(s.Address),
		City:       strings.TrimSpace(s.City),
		PostalCode: strings.TrimSpace(s.PostalCode),
		Country:    strings.TrimSpace(s.Country),
	}
}

// Complete reports whether every required field is non-blank.
func (s ShippingInfo) Complete() bool {
	for _, field := range []string{
		s.FirstName, s.LastName, s.Email, s.Phone,
		s.Address, s.City, s.PostalCode, s.Country,
	} {
		if strings.TrimSpace(field) == "" {
			return false
		}
	}
	return true
}

// Fields flattens the shipping info into a document field map.
func (s ShippingInfo) Fields() map[string]any {
	return map[string]any{
		"firstName":  s.FirstName,
		"lastName":   s.LastName,
		"email":      s.Email,
		"phone":      s.Phone,
		"address":    s.Address,
		"city":       s.City,
		"postalCode": s.PostalCode,
		"country":    s.Country,
	}
}
