package domain

// Product is supplied by the catalog. The purchase pipeline only reads it.
type Product struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Price  int64    `json:"price"` // minor units, canonical currency
	SKU    string   `json:"sku"`
	Image  string   `json:"image"`
	Sizes  []string `json:"sizes"`
	Colors []string `json:"colors"`
	Stock  int      `json:"stock"`
}
