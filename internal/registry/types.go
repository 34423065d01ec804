package registry

import (
	"time"

	"github.com/akbarsho/storefront-backend/pkg/docstore"
)

const (
	cartCollection      = "cart"
	favoritesCollection = "favorites"
)

// CartLine is one merged entry in a user's cart. Identity is
// (ProductID, VariantKey); LineID is the opaque document id.
type CartLine struct {
	LineID     string    `json:"lineId"`
	ProductID  string    `json:"productId"`
	VariantKey string    `json:"variantKey"`
	Quantity   int64     `json:"quantity"`
	UnitPrice  int64     `json:"price"`
	Title      string    `json:"title"`
	Image      string    `json:"image"`
	AddedAt    time.Time `json:"addedAt"`
}

// Candidate is the caller-supplied half of an upsert. The registry assigns
// LineID and AddedAt itself.
type Candidate struct {
	ProductID  string `json:"productId" validate:"required"`
	VariantKey string `json:"variantKey"`
	Quantity   int64  `json:"quantity" validate:"required,gte=1"`
	UnitPrice  int64  `json:"price" validate:"gte=0"`
	Title      string `json:"title" validate:"required"`
	Image      string `json:"image"`
}

// Favorite is a liked product. Uniqueness is per product id; variants do not
// split favorites.
type Favorite struct {
	ProductID string    `json:"productId"`
	Title     string    `json:"title"`
	Image     string    `json:"image"`
	UnitPrice int64     `json:"price"`
	AddedAt   time.Time `json:"addedAt"`
}

func lineFields(line CartLine) map[string]any {
	return map[string]any{
		"productId":  line.ProductID,
		"variantKey": line.VariantKey,
		"quantity":   line.Quantity,
		"price":      line.UnitPrice,
		"title":      line.Title,
		"image":      line.Image,
		"addedAt":    line.AddedAt.UTC().Format(time.RFC3339Nano),
	}
}

func lineFromDocument(doc docstore.Document) CartLine {
	return CartLine{
		LineID:     doc.ID,
		ProductID:  doc.String("productId"),
		VariantKey: doc.String("variantKey"),
		Quantity:   doc.Int64("quantity"),
		UnitPrice:  doc.Int64("price"),
		Title:      doc.String("title"),
		Image:      doc.String("image"),
		AddedAt:    doc.Time("addedAt"),
	}
}

func linesFromDocuments(docs []docstore.Document) []CartLine {
	lines := make([]CartLine, 0, len(docs))
	for _, doc := range docs {
		lines = append(lines, lineFromDocument(doc))
	}
	return lines
}

func favoriteFields(fav Favorite) map[string]any {
	return map[string]any{
		"productId": fav.ProductID,
		"title":     fav.Title,
		"image":     fav.Image,
		"price":     fav.UnitPrice,
		"addedAt":   fav.AddedAt.UTC().Format(time.RFC3339Nano),
	}
}

func favoriteFromDocument(doc docstore.Document) Favorite {
	return Favorite{
		ProductID: doc.String("productId"),
		Title:     doc.String("title"),
		Image:     doc.String("image"),
		UnitPrice: doc.Int64("price"),
		AddedAt:   doc.Time("addedAt"),
	}
}

func favoritesFromDocuments(docs []docstore.Document) []Favorite {
	favs := make([]Favorite, 0, len(docs))
	for _, doc := range docs {
		favs = append(favs, favoriteFromDocument(doc))
	}
	return favs
}
