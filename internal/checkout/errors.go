package checkout

import (
	"fmt"
	"strings"
)

// FieldError is a single user-correctable violation. It is recovered
// locally (inline field messages) and never reaches the network.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors carries every violation found in one pass. The UI
// shows First(); programmatic consumers read the full list.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// First returns the first blocking error, for display purposes.
func (v ValidationErrors) First() *FieldError {
	if len(v) == 0 {
		return nil
	}
	return &v[0]
}
