// Package commands parses chat messages into command invocations, runs the
// framework gates and authorization checks, and invokes command handlers.
package commands

import (
	"context"

	"cachebuster/pkg/bus"
)

// Scope restricts where a command may be invoked.
type Scope int

const (
	// ScopeAny allows guild channels and direct messages.
	ScopeAny Scope = iota
	// ScopeGuild allows guild channels only.
	ScopeGuild
	// ScopeDM allows direct messages only.
	ScopeDM
)

// String returns the scope as shown in help output.
func (s Scope) String() string {
	switch s {
	case ScopeGuild:
		return "Guild only"
	case ScopeDM:
		return "DM only"
	default:
		return "In DM and guilds"
	}
}

// PermissionAdministrator bypasses RequiredPermissions.
const PermissionAdministrator int64 = 1 << 3

// Command represents a prefixed chat command.
type Command struct {
	// Name is the command name as typed after the prefix. Lookup is case-sensitive.
	Name    string
	Aliases []string
	// Description is a short description of what the command does
	Description string
	// Usage shows the arguments, e.g. "<URL>"
	Usage string
	// Group is the heading the command is listed under in help.
	Group string

	// MinArgs and MaxArgs bound the argument count. MaxArgs < 0 means unbounded.
	MinArgs int
	MaxArgs int

	OnlyIn Scope
	// OwnersOnly restricts the command to dispatch.owner_ids.
	OwnersOnly bool
	// OwnerPrivilege lets owners skip the blocklist, disabled, permission and role gates.
	OwnerPrivilege bool
	// AllowedRoles are role IDs of which the member needs at least one.
	AllowedRoles []string
	// RequiredPermissions is a permission bitset the member needs in the channel.
	RequiredPermissions int64
	// Checks run in order after the framework gates.
	Checks Chain
	// RateLimited applies the per-user bucket.
	RateLimited bool

	// Handler is the function that executes the command
	Handler Handler
}

// Handler executes an authorized invocation. A returned error is reported
// to the user generically and logged in full.
type Handler func(ctx context.Context, inv *Invocation) (Response, error)

// Invocation is one parsed command call.
type Invocation struct {
	// ID correlates log records of one invocation.
	ID string
	// MessageID is the chat message that triggered the invocation.
	MessageID string

	UserID   string
	Username string
	Bot      bool
	// Member is nil outside guilds.
	Member *Member
	// GuildID is empty for direct messages.
	GuildID   string
	ChannelID string

	// Command is the name the user typed (possibly an alias).
	Command string
	// Args are the raw arguments in order.
	Args []string
}

// Member is the invoking user's guild membership.
type Member struct {
	RoleIDs     []string
	Permissions int64
}

// HasAnyRole reports whether any of the member's roles is allowed.
func (m *Member) HasAnyRole(allowed func(roleID string) bool) bool {
	if m == nil {
		return false
	}
	for _, id := range m.RoleIDs {
		if allowed(id) {
			return true
		}
	}
	return false
}

// Response is what a handler wants sent back to the invoking channel.
type Response struct {
	Content string
	Embeds  []*bus.Embed
}

// ResultKind classifies the end state of one Dispatch call.
type ResultKind int

const (
	// ResultIgnored means the message was not an invocation; nothing is sent.
	ResultIgnored ResultKind = iota
	// ResultReplied means the handler ran and Response should be sent.
	ResultReplied
	// ResultDispatchError means a gate or check rejected the invocation.
	ResultDispatchError
	// ResultHandlerFailed means the handler returned an error or panicked.
	ResultHandlerFailed
)

// String implements fmt.Stringer.
func (k ResultKind) String() string {
	switch k {
	case ResultIgnored:
		return "ignored"
	case ResultReplied:
		return "replied"
	case ResultDispatchError:
		return "dispatch_error"
	case ResultHandlerFailed:
		return "handler_failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of Dispatch.
type Result struct {
	Kind       ResultKind
	Invocation *Invocation
	Command    *Command
	// Response is set for ResultReplied.
	Response Response
	// Err is a *DispatchError for ResultDispatchError and the handler's
	// error for ResultHandlerFailed.
	Err error
}
