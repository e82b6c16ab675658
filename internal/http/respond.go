package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/INNOCENT-010/storefront-checkout/internal/checkout"
	"github.com/INNOCENT-010/storefront-checkout/internal/gateway"
	"github.com/INNOCENT-010/storefront-checkout/internal/payments"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// ValidationErrorResponse keeps the full violation list for programmatic
// consumers while the top-level error carries the first one for display.
type ValidationErrorResponse struct {
	Error  string                `json:"error"`
	Code   string                `json:"code"`
	Fields []checkout.FieldError `json:"fields"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handlePipelineError maps the checkout/payment error taxonomy onto HTTP
// statuses. Validation failures are field-level and never collapsed into
// a generic banner; transport, protocol and gateway failures each keep
// their own code so clients pick the right recovery action.
func handlePipelineError(w http.ResponseWriter, err error) {
	var validationErrs checkout.ValidationErrors
	if errors.As(err, &validationErrs) {
		first := validationErrs.First()
		respondJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:  first.Message,
			Code:   "validation_error",
			Fields: validationErrs,
		})
		return
	}

	var netErr *gateway.NetworkError
	if errors.As(err, &netErr) {
		respondError(w, http.StatusServiceUnavailable, "network_error",
			"payment service unreachable, check connection and retry")
		return
	}

	var protoErr *gateway.ProtocolError
	if errors.As(err, &protoErr) {
		log.Printf("gateway protocol error: %v", protoErr)
		respondError(w, http.StatusBadGateway, "protocol_error",
			"payment service returned an unexpected response")
		return
	}

	var gwErr *gateway.GatewayError
	if errors.As(err, &gwErr) {
		// The provider message is preserved verbatim for support diagnostics.
		respondError(w, http.StatusBadGateway, "gateway_error", gwErr.Message)
		return
	}

	if errors.Is(err, payments.ErrReferenceNotFound) {
		respondError(w, http.StatusNotFound, "reference_not_found", "unknown payment reference")
		return
	}

	log.Printf("internal error: %v", err)
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
