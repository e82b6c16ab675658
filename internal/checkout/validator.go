package checkout

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/INNOCENT-010/storefront-checkout/internal/domain"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	// Nigerian mobile numbers: 11-digit local format or +234 international.
	phoneRe = regexp.MustCompile(`^(\+234|0)[0-9]{10}$`)
)

// Validator checks shipping data, cart contents and the total before any
// network call is made. All rules are evaluated eagerly; nothing
// short-circuits, so a single pass reports every violation.
type Validator struct {
	// MaxTotal rejects obviously malformed or adversarial submissions.
	MaxTotal int64
}

func NewValidator(maxTotal int64) *Validator {
	return &Validator{MaxTotal: maxTotal}
}

func (v *Validator) Validate(shipping domain.ShippingInfo, lines []domain.CartLine, totalAmount int64) ValidationErrors {
	var errs ValidationErrors

	errs = append(errs, validateShipping(shipping)...)
	errs = append(errs, validateCart(lines)...)
	errs = append(errs, v.validateTotal(totalAmount)...)

	return errs
}

func validateShipping(s domain.ShippingInfo) ValidationErrors {
	var errs ValidationErrors

	required := []struct {
		field, value string
	}{
		{"customer_name", s.CustomerName},
		{"email", s.Email},
		{"phone", s.Phone},
		{"street", s.Street},
		{"city", s.City},
		{"state", s.State},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, FieldError{Field: f.field, Message: f.field + " is required"})
		}
	}

	if s.Email != "" && !emailRe.MatchString(s.Email) {
		errs = append(errs, FieldError{Field: "email", Message: "invalid email format"})
	}
	if s.Phone != "" && !phoneRe.MatchString(s.Phone) {
		errs = append(errs, FieldError{Field: "phone", Message: "invalid phone number, expected 11-digit local or +234 format"})
	}

	return errs
}

func validateCart(lines []domain.CartLine) ValidationErrors {
	var errs ValidationErrors

	if len(lines) == 0 {
		errs = append(errs, FieldError{Field: "cart", Message: "cart is empty"})
		return errs
	}

	for i, line := range lines {
		if line.ProductID <= 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("cart[%d].product_id", i),
				Message: "product_id must be resolvable",
			})
		}
		if line.Quantity < 1 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("cart[%d].quantity", i),
				Message: "quantity must be at least 1",
			})
		}
		if line.UnitPrice <= 0 {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("cart[%d].unit_price", i),
				Message: "unit_price must be greater than 0",
			})
		}
	}

	return errs
}

func (v *Validator) validateTotal(totalAmount int64) ValidationErrors {
	var errs ValidationErrors

	if totalAmount <= 0 {
		errs = append(errs, FieldError{Field: "total_amount", Message: "amount must be greater than 0"})
	}
	if v.MaxTotal > 0 && totalAmount > v.MaxTotal {
		errs = append(errs, FieldError{
			Field:   "total_amount",
			Message: fmt.Sprintf("amount exceeds the maximum of %d", v.MaxTotal),
		})
	}

	return errs
}
