package payments

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/INNOCENT-010/storefront-checkout/internal/domain"
)

// VerifySignature checks the provider's HMAC-SHA512 signature over the
// raw webhook body. Comparison is constant-time.
func VerifySignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Channel   string `json:"channel"`
		PaidAt    string `json:"paid_at"`
	} `json:"data"`
}

// ParseEvent decodes a provider webhook body into an Event. The event
// name ("charge.success", "charge.failed") decides the status when the
// data block omits one.
func ParseEvent(body []byte) (Event, error) {
	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return Event{}, fmt.Errorf("decode webhook payload: %w", err)
	}
	if p.Data.Reference == "" {
		return Event{}, fmt.Errorf("webhook payload has no reference")
	}

	ev := Event{
		Type:      p.Event,
		Reference: p.Data.Reference,
		Channel:   p.Data.Channel,
	}

	switch {
	case p.Data.Status != "":
		ev.Status = normalizeEventStatus(p.Data.Status)
	case p.Event == "charge.success":
		ev.Status = domain.TransactionStatusSuccess
	case p.Event == "charge.failed":
		ev.Status = domain.TransactionStatusFailed
	default:
		ev.Status = domain.TransactionStatusPending
	}

	if p.Data.PaidAt != "" {
		if t, err := time.Parse(time.RFC3339, p.Data.PaidAt); err == nil {
			ev.PaidAt = &t
		}
	}

	return ev, nil
}

func normalizeEventStatus(s string) domain.TransactionStatus {
	switch s {
	case "success":
		return domain.TransactionStatusSuccess
	case "failed", "reversed":
		return domain.TransactionStatusFailed
	case "abandoned":
		return domain.TransactionStatusAbandoned
	default:
		return domain.TransactionStatusPending
	}
}
