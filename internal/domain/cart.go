package domain

import "time"

// CanonicalCurrency is the only currency amounts are stored and charged in.
// Display conversions are derived from it and never written back.
const CanonicalCurrency = "NGN"

// LineKey identifies a distinct purchasable variant within a cart.
// Two lines with the same key are the same logical line.
type LineKey struct {
	ProductID int64
	Size      string
	Color     string
}

type CartLine struct {
	ProductID int64     `json:"product_id" bson:"product_id"`
	Name      string    `json:"name" bson:"name"`
	UnitPrice int64     `json:"unit_price" bson:"unit_price"` // minor units, canonical currency
	Quantity  int       `json:"quantity" bson:"quantity"`
	Size      string    `json:"size" bson:"size"`
	Color     string    `json:"color" bson:"color"`
	SKU       string    `json:"sku" bson:"sku"`
	Image     string    `json:"image" bson:"image"`
	AddedAt   time.Time `json:"-" bson:"added_at"`
}

func (l CartLine) Key() LineKey {
	return LineKey{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"-"`
	SessionID string     `bson:"session_id" json:"session_id"`
	Items     []CartLine `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// Subtotal is the sum of unit_price * quantity over all lines,
// in the canonical currency. No display conversion is ever applied here.
func (c *Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// FindLine returns the index of the line matching key, or -1.
func (c *Cart) FindLine(key LineKey) int {
	for i, item := range c.Items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}
