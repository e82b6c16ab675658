package checkout

import (
	"github.com/INNOCENT-010/storefront-checkout/internal/domain"
)

// Assemble turns a validated cart and shipping form into the canonical
// checkout payload. The lines are deep-copied so later cart mutations are
// not observable through an already-produced payload, and the total is
// recomputed from the lines themselves; a client-cached total is never
// trusted.
func Assemble(lines []domain.CartLine, shipping domain.ShippingInfo, notes string) domain.CheckoutPayload {
	items := make([]domain.CartLine, len(lines))
	copy(items, lines)

	var total int64
	for _, line := range items {
		total += line.UnitPrice * int64(line.Quantity)
	}

	return domain.CheckoutPayload{
		CartItems: items,
		ShippingAddress: domain.Address{
			Street:     shipping.Street,
			City:       shipping.City,
			State:      shipping.State,
			PostalCode: shipping.PostalCode,
			Country:    shipping.Country,
		},
		Email:         shipping.Email,
		TotalAmount:   total,
		Currency:      domain.CanonicalCurrency,
		CustomerName:  shipping.CustomerName,
		CustomerPhone: shipping.Phone,
		Notes:         notes,
	}
}
