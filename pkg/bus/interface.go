// Package bus routes chat messages between transports and the command gateway.
package bus

import (
	"context"
	"time"
)

// MessageType represents the type of message.
type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeReply MessageType = "reply"
)

// Direction tells inbound traffic (transport to gateway) from outbound
// traffic (gateway to transport).
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// Message represents a message flowing through the bus.
type Message struct {
	ID        string      `json:"id"`         // Unique message ID
	ChannelID string      `json:"channel_id"` // Transport name, e.g. "discord"
	ChatID    string      `json:"chat_id"`    // Platform channel the message was posted in
	GuildID   string      `json:"guild_id"`   // Empty for direct messages
	UserID    string      `json:"user_id"`
	Username  string      `json:"username"`
	Bot       bool        `json:"bot"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content"`
	Embeds    []*Embed    `json:"embeds,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	ReplyTo   string      `json:"reply_to"` // ID of message being replied to

	// Member is nil when the author is not a guild member (direct messages).
	Member *Member `json:"member,omitempty"`
}

// Member carries the author's guild membership.
type Member struct {
	RoleIDs []string `json:"role_ids"`
	// Permissions is the resolved permission bitset in the message's channel.
	Permissions int64 `json:"permissions"`
}

// Embed is a rich reply card.
type Embed struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Color       int           `json:"color"`
	Fields      []*EmbedField `json:"fields,omitempty"`
}

// EmbedField is one name/value row of an Embed.
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Handler is a function that processes messages.
type Handler func(ctx context.Context, msg *Message) error

// Bus is the interface for message routing.
type Bus interface {
	// Start starts the message bus.
	Start() error

	// Stop stops the message bus. Messages still queued are dropped.
	Stop() error

	// RegisterHandler registers a handler for one direction of a transport.
	RegisterHandler(dir Direction, channelID string, handler Handler)

	// UnregisterHandlers removes all handlers for a transport.
	UnregisterHandlers(channelID string)

	// SendInbound sends an inbound message (from transport to gateway).
	SendInbound(msg *Message) error

	// SendOutbound sends an outbound message (from gateway to transport).
	SendOutbound(msg *Message) error

	// GetMetrics returns current bus metrics.
	GetMetrics() map[string]uint64
}

// handlerKey indexes handlers by direction and transport.
type handlerKey struct {
	dir       Direction
	channelID string
}
