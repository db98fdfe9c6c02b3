package domain

import (
	"encoding/json"
	"strings"
)

// DefaultProductImage is substituted wherever a cart line carries no usable
// image reference, so the UI layer can always render something.
const DefaultProductImage = "/images/product-placeholder.png"

// Variant represents a selected product variant on a cart line.
// Its prices, when present, override the product-level prices for that line.
type Variant struct {
	ID            int64    `json:"id"`
	UnitPrice     *float64 `json:"unit_price,omitempty"`      // Pointer for nullable fields
	UnitSalePrice *float64 `json:"unit_sale_price,omitempty"` // Pointer for nullable fields
}

// CartLine is one fully normalized entry in a cart, the only shape ever
// published to the UI layer. IDs are server-assigned once persisted; guest
// carts assign a sequential client-side index instead.
type CartLine struct {
	ID            int64    `json:"id"`
	ProductID     int64    `json:"product_id"`
	ProductName   string   `json:"product_name"`
	ProductImages []string `json:"product_images"` // Never empty after normalization
	UnitPrice     float64  `json:"unit_price"`
	UnitSalePrice *float64 `json:"unit_sale_price,omitempty"`
	Variant       *Variant `json:"variant,omitempty"`
	Quantity      int      `json:"quantity"`
}

// EffectivePrice resolves the price a line is actually sold at:
// variant sale price, then variant price, then product sale price, then
// product price. Resolved on every call so a price update is never served
// from a stale copy.
func (l *CartLine) EffectivePrice() float64 {
	if l.Variant != nil {
		if l.Variant.UnitSalePrice != nil {
			return *l.Variant.UnitSalePrice
		}
		if l.Variant.UnitPrice != nil {
			return *l.Variant.UnitPrice
		}
	}
	if l.UnitSalePrice != nil {
		return *l.UnitSalePrice
	}
	return l.UnitPrice
}

// ImageList tolerates the two shapes the persisted guest cart has carried
// over time: a single JSON string or a JSON array of strings.
type ImageList []string

func (il *ImageList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*il = ImageList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*il = ImageList(many)
	return nil
}

// GuestRecord is the raw shape persisted under the guest cart storage key.
// It is never handed to the UI directly; Normalize produces the CartLine.
type GuestRecord struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"product_id"`
	ProductName   string    `json:"product_name"`
	Images        ImageList `json:"images"`
	UnitPrice     float64   `json:"unit_price"`
	UnitSalePrice *float64  `json:"unit_sale_price,omitempty"`
	Variant       *Variant  `json:"variant,omitempty"`
	Quantity      int       `json:"quantity"`
}

// Normalize maps a raw guest record into the published CartLine shape.
// Image normalization: blank entries are replaced by the placeholder and an
// empty list becomes exactly one placeholder entry.
func (r *GuestRecord) Normalize() CartLine {
	return CartLine{
		ID:            r.ID,
		ProductID:     r.ProductID,
		ProductName:   r.ProductName,
		ProductImages: NormalizeImages(r.Images),
		UnitPrice:     r.UnitPrice,
		UnitSalePrice: r.UnitSalePrice,
		Variant:       r.Variant,
		Quantity:      r.Quantity,
	}
}

// NormalizeImages guarantees at least one non-blank image reference.
func NormalizeImages(images []string) []string {
	if len(images) == 0 {
		return []string{DefaultProductImage}
	}
	normalized := make([]string, 0, len(images))
	for _, img := range images {
		if strings.TrimSpace(img) == "" {
			normalized = append(normalized, DefaultProductImage)
			continue
		}
		normalized = append(normalized, img)
	}
	return normalized
}

// DecodeGuestCart parses the persisted guest cart payload. Malformed JSON is
// treated as an empty cart rather than an error; a half-written value in
// local storage must never break the storefront.
func DecodeGuestCart(data []byte) []GuestRecord {
	if len(data) == 0 {
		return []GuestRecord{}
	}
	var records []GuestRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return []GuestRecord{}
	}
	return records
}

// EncodeGuestCart serializes guest records for persistence.
func EncodeGuestCart(records []GuestRecord) ([]byte, error) {
	if records == nil {
		records = []GuestRecord{}
	}
	return json.Marshal(records)
}
