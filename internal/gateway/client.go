// Package gateway talks to the payment provider. It initializes payment
// attempts and verifies references, translating transport, protocol and
// provider failures into the distinct error kinds callers recover from
// differently.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/INNOCENT-010/storefront-checkout/internal/domain"
)

type InitializeRequest struct {
	Email    string                 `json:"email"`
	Amount   int64                  `json:"amount"` // minor units, canonical currency
	Currency string                 `json:"currency"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type VerifyResult struct {
	Reference       string
	Status          domain.TransactionStatus
	Amount          int64
	Channel         string
	PaidAt          *time.Time
	GatewayResponse string
}

type Client struct {
	baseURL     string
	secretKey   string
	callbackURL string
	httpClient  *http.Client
	cb          *gobreaker.CircuitBreaker[[]byte]
}

// NewClient builds a provider client with a bounded timeout so an
// unreachable backend fails fast instead of hanging.
func NewClient(baseURL, secretKey, callbackURL string, timeout time.Duration) *Client {
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		// Only transport failures trip the breaker. A decline or a
		// malformed body is not a reason to stop calling the provider.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var ne *NetworkError
			return !errors.As(err, &ne)
		},
	})

	return &Client{
		baseURL:     baseURL,
		secretKey:   secretKey,
		callbackURL: callbackURL,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb: cb,
	}
}

type initializeBody struct {
	Email       string                 `json:"email"`
	Amount      int64                  `json:"amount"`
	Currency    string                 `json:"currency"`
	CallbackURL string                 `json:"callback_url,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type initializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

// Initialize posts the payment attempt to the provider. On success the
// caller's only required action is to send the shopper to the
// authorization URL; no polling happens during this phase.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	const op = "initialize"

	body, err := json.Marshal(initializeBody{
		Email:       req.Email,
		Amount:      req.Amount,
		Currency:    req.Currency,
		CallbackURL: c.callbackURL,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal initialize request: %w", err)
	}

	raw, err := c.do(ctx, op, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}

	var resp initializeResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ProtocolError{Op: op, ContentType: "application/json", Detail: "malformed response body"}
	}
	if !resp.Status {
		return nil, &GatewayError{StatusCode: http.StatusOK, Message: resp.Message}
	}

	return &InitializeResult{
		AuthorizationURL: resp.Data.AuthorizationURL,
		AccessCode:       resp.Data.AccessCode,
		Reference:        resp.Data.Reference,
	}, nil
}

type verifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Reference       string `json:"reference"`
		Status          string `json:"status"`
		Amount          int64  `json:"amount"`
		Channel         string `json:"channel"`
		PaidAt          string `json:"paid_at"`
		GatewayResponse string `json:"gateway_response"`
	} `json:"data"`
}

func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	const op = "verify"

	raw, err := c.do(ctx, op, http.MethodGet, "/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, err
	}

	var resp verifyResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ProtocolError{Op: op, ContentType: "application/json", Detail: "malformed response body"}
	}
	if !resp.Status {
		return nil, &GatewayError{StatusCode: http.StatusOK, Message: resp.Message}
	}

	result := &VerifyResult{
		Reference:       resp.Data.Reference,
		Status:          normalizeStatus(resp.Data.Status),
		Amount:          resp.Data.Amount,
		Channel:         resp.Data.Channel,
		GatewayResponse: resp.Data.GatewayResponse,
	}
	if resp.Data.PaidAt != "" {
		if t, errParse := time.Parse(time.RFC3339, resp.Data.PaidAt); errParse == nil {
			result.PaidAt = &t
		}
	}

	return result, nil
}

// normalizeStatus maps provider statuses onto transaction statuses.
// Anything in-flight on the provider side stays pending here.
func normalizeStatus(s string) domain.TransactionStatus {
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

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	raw, err := c.cb.Execute(func() ([]byte, error) {
		return c.roundTrip(ctx, op, method, path, body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &NetworkError{Op: op, Err: err}
	}
	return raw, err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	// A non-JSON body is a protocol error regardless of status code: an
	// HTML error page from a proxy must not read as a gateway decline.
	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType != "application/json" {
		return nil, &ProtocolError{Op: op, ContentType: contentType, Detail: "expected JSON response"}
	}

	if resp.StatusCode >= 400 {
		return nil, mapHTTPError(resp.StatusCode, raw)
	}

	return raw, nil
}

type errorBody struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

func mapHTTPError(status int, raw []byte) error {
	switch status {
	case http.StatusUnauthorized:
		return &GatewayError{StatusCode: status, Message: "invalid gateway credentials"}
	case http.StatusNotFound:
		return &GatewayError{StatusCode: status, Message: "payment endpoint not found"}
	}

	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	msg := eb.Message
	if msg == "" {
		msg = eb.Detail
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &GatewayError{StatusCode: status, Message: msg}
}
