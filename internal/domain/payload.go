package domain

// ShippingInfo is collected per checkout attempt and not persisted
// beyond the order it produces.
type ShippingInfo struct {
	CustomerName string `json:"customer_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Street       string `json:"street"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

// CheckoutPayload is the frozen snapshot assembled at submit time.
// The cart may keep changing after submission; the payload must not.
type CheckoutPayload struct {
	CartItems       []CartLine `json:"cart_items"`
	ShippingAddress Address    `json:"shipping_address"`
	Email           string     `json:"email"`
	TotalAmount     int64      `json:"total_amount"`
	Currency        string     `json:"currency"`
	CustomerName    string     `json:"customer_name"`
	CustomerPhone   string     `json:"customer_phone"`
	Notes           string     `json:"notes"`
}
