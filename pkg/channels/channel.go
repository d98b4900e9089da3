// Package channels connects chat transports to the message bus.
package channels

import (
	"context"

	"cachebuster/pkg/bus"
)

// Channel represents a chat transport.
type Channel interface {
	// ID returns the unique channel identifier, used as bus.Message.ChannelID.
	ID() string

	// Name returns the human-readable channel name.
	Name() string

	// Start starts the channel and begins forwarding inbound messages.
	Start(ctx context.Context) error

	// Stop stops the channel gracefully.
	Stop(ctx context.Context) error

	// IsEnabled returns whether the channel should be started.
	IsEnabled() bool

	// SendMessage delivers an outbound message through this channel.
	SendMessage(ctx context.Context, msg *bus.Message) error
}
