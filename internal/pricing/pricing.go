package pricing

import (
	"sort"
	"strings"

	pkgerrors "github.com/akbarsho/storefront-backend/pkg/errors"
)

// Product is the catalog view the resolver prices against. Prices are cents.
type Product struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Image       string        `json:"image,omitempty"`
	Category    string        `json:"category,omitempty"`
	BasePrice   int64         `json:"basePrice"`
	VariantAxes []VariantAxis `json:"variantAxes,omitempty"`
}

// VariantAxis is one selectable dimension, e.g. size or color.
type VariantAxis struct {
	Name    string          `json:"name"`
	Options []VariantOption `json:"options"`
}

// VariantOption is one value on an axis with its price delta in cents.
type VariantOption struct {
	Value     string `json:"value"`
	PriceDiff int64  `json:"priceDiff"`
}

// Quote is the priced outcome of a variant selection. The label and key are
// persisted on the cart line, so later catalog edits never rewrite history.
type Quote struct {
	UnitPrice  int64  `json:"unitPrice"`
	Label      string `json:"label"`
	VariantKey string `json:"variantKey"`
}

// Resolve computes the effective unit price for a selection of variant axes:
// base price plus the sum of each chosen option's delta. Selections naming an
// unknown axis or value contribute zero. Deterministic: same inputs, same quote.
func Resolve(product Product, selections map[string]string) Quote {
	price := product.BasePrice
	label := product.Title

	chosen := make([]string, 0, len(selections))
	for _, axis := range product.VariantAxes {
		value, ok := selections[axis.Name]
		if !ok || value == "" {
			continue
		}
		for _, opt := range axis.Options {
			if opt.Value == value {
				price += opt.PriceDiff
				chosen = append(chosen, value)
				break
			}
		}
	}

	if len(chosen) > 0 {
		label = product.Title + " — " + strings.Join(chosen, " / ")
	}

	return Quote{
		UnitPrice:  price,
		Label:      label,
		VariantKey: EncodeVariantKey(product, selections),
	}
}

// EncodeVariantKey renders a selection as "axis:value|axis:value" over the
// sorted names of axes the product actually has. A product without axes, or a
// selection touching none of them, encodes to the empty key.
func EncodeVariantKey(product Product, selections map[string]string) string {
	axes := make(map[string][]VariantOption, len(product.VariantAxes))
	for _, axis := range product.VariantAxes {
		axes[axis.Name] = axis.Options
	}

	parts := make([]string, 0, len(selections))
	for name, value := range selections {
		options, ok := axes[name]
		if !ok || value == "" {
			continue
		}
		for _, opt := range options {
			if opt.Value == value {
				parts = append(parts, name+":"+value)
				break
			}
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// ValidateSelections rejects selections naming axes or values the product
// does not offer. Unknown entries are a caller mistake, not a silent zero.
func ValidateSelections(product Product, selections map[string]string) error {
	axes := make(map[string]map[string]struct{}, len(product.VariantAxes))
	for _, axis := range product.VariantAxes {
		values := make(map[string]struct{}, len(axis.Options))
		for _, opt := range axis.Options {
			values[opt.Value] = struct{}{}
		}
		axes[axis.Name] = values
	}

	for name, value := range selections {
		values, ok := axes[name]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown variant axis "+name)
		}
		if _, ok := values[value]; !ok {
			return pkgerrors.New(pkgerrors.CodeValidation, "unknown value "+value+" for axis "+name)
		}
	}
	return nil
}
