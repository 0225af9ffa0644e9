// Package events carries lingua events over a gocloud.dev pubsub topic so
// separate processes can switch locale or push translation updates to each
// other.
package events

import (
	"context"
)

// HeaderName is the message metadata key holding the event name.
const HeaderName = "lingua.event.name"

// Event is a named message with typed payload. Handling happens in Execute.
type Event interface {
	// Name routes a message to this event.
	Name() string

	// PayloadType returns a fresh pointer the message body is decoded into.
	PayloadType() any

	// Validate rejects a decoded payload before Execute sees it.
	Validate(ctx context.Context, payload any) error

	Execute(ctx context.Context, payload any) error
}
