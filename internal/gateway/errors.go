package gateway

import "fmt"

// NetworkError is a connect or transport failure. Retryable: the caller
// should surface "check connection, retry".
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ProtocolError means the gateway answered with something that is not the
// JSON we expect (an HTML error page, a truncated body). Not
// user-correctable; the recovery action differs from a gateway decline, so
// it must never be conflated with GatewayError.
type ProtocolError struct {
	Op          string
	ContentType string
	Detail      string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error during %s: %s (content-type %q)", e.Op, e.Detail, e.ContentType)
}

// GatewayError is a failure the provider itself reported: declined card,
// invalid signature, bad credentials. User-correctable by retrying with
// different payment details. The provider message is preserved verbatim
// for support diagnostics.
type GatewayError struct {
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error (status %d): %s", e.StatusCode, e.Message)
}
