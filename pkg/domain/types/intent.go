package types

import "strings"

// Intent is a classified intent label. The label set is configuration, not
// code: handlers are registered against labels loaded from the assistant
// config file. Only the labels below have hard-wired meaning.
type Intent string

const (
	// IntentUnknown is returned when classification fails or confidence is
	// too low to act on.
	IntentUnknown Intent = "unknown"
	// IntentChat is general conversation or a data question; it routes to
	// the retrieval pipeline instead of a mutating handler.
	IntentChat Intent = "chat"
	// IntentCancel aborts any pending clarification or confirmation.
	IntentCancel Intent = "cancel"
)

// Normalize lowercases and trims the label so config and model output compare
// consistently.
func (i Intent) Normalize() Intent {
	return Intent(strings.ToLower(strings.TrimSpace(string(i))))
}

// String returns the string representation of the intent
func (i Intent) String() string {
	return string(i)
}
