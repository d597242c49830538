package mirror

import "context"

// NoopAdapter is used when no mirror relay is configured. Every call
// reports ErrDisabled so the dispatcher drops the entry without retrying.
type NoopAdapter struct{}

// NewNoopAdapter creates a NoopAdapter.
func NewNoopAdapter() *NoopAdapter {
	return &NoopAdapter{}
}

// MirrorEvent implements Mirror.
func (n *NoopAdapter) MirrorEvent(_ context.Context, _ EventEntry) (*Record, error) {
	return nil, ErrDisabled
}

// MirrorOrderTransition implements Mirror.
func (n *NoopAdapter) MirrorOrderTransition(_ context.Context, _ OrderEntry) (*Record, error) {
	return nil, ErrDisabled
}
