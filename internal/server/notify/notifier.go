// Package notify delivers change notifications to registered devices through
// a push gateway and reports per-address delivery outcomes so the caller can
// reconcile its token registry.
package notify

import "context"

// Outcome classifies what the gateway said about one address.
type Outcome int

const (
	// Delivered means the message was accepted for the address as-is.
	Delivered Outcome = iota
	// Rotated means the message was accepted but the gateway returned a
	// canonical replacement address; the caller should store NewAddress.
	Rotated
	// Invalid means the address is no longer registered and should be
	// removed from the registry.
	Invalid
	// Failed covers transient per-address errors; the registration stays.
	Failed
)

// Result is the per-address outcome of one fan-out, index-aligned with the
// addresses passed to Notify.
type Result struct {
	Address    string
	Outcome    Outcome
	NewAddress string
}

// Notifier sends a data-less "changes available" signal to the given
// addresses. Messages with the same collapse key coalesce on the device.
type Notifier interface {
	Notify(ctx context.Context, addresses []string, collapseKey string) ([]Result, error)
}
