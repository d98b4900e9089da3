package commands

import (
	"fmt"
	"time"
)

// ErrorKind enumerates why the framework refused to run a command.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindCheckFailed
	KindRatelimited
	KindCommandDisabled
	KindBlockedUser
	KindBlockedGuild
	KindBlockedChannel
	KindOnlyForDM
	KindOnlyForGuilds
	KindOnlyForOwners
	KindLackingRole
	KindLackingPermissions
	KindNotEnoughArguments
	KindTooManyArguments
)

var kindNames = map[ErrorKind]string{
	KindCheckFailed:        "check_failed",
	KindRatelimited:        "ratelimited",
	KindCommandDisabled:    "command_disabled",
	KindBlockedUser:        "blocked_user",
	KindBlockedGuild:       "blocked_guild",
	KindBlockedChannel:     "blocked_channel",
	KindOnlyForDM:          "only_for_dm",
	KindOnlyForGuilds:      "only_for_guilds",
	KindOnlyForOwners:      "only_for_owners",
	KindLackingRole:        "lacking_role",
	KindLackingPermissions: "lacking_permissions",
	KindNotEnoughArguments: "not_enough_arguments",
	KindTooManyArguments:   "too_many_arguments",
}

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ReasonFailedCheck is shown when a check denies without a reason.
const ReasonFailedCheck = "You failed a check."

// DispatchError is a rejected invocation. Every kind has a user-facing message.
type DispatchError struct {
	Kind ErrorKind
	// Check names the failing check for KindCheckFailed.
	Check string
	// Reason is the check's user-facing reason for KindCheckFailed.
	Reason string
	// Min, Max and Given describe argument count errors.
	Min, Max, Given int
	// RetryAfter is set for KindRatelimited.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch rejected (%s): %s", e.Kind, e.Message())
}

// Message returns the user-facing text for the error.
func (e *DispatchError) Message() string {
	switch e.Kind {
	case KindCheckFailed:
		if e.Reason == "" {
			return ReasonFailedCheck
		}
		return e.Reason
	case KindRatelimited:
		return "You are being rate-limited."
	case KindCommandDisabled:
		return "This command is disabled."
	case KindBlockedUser:
		return "You are blocked from this command."
	case KindBlockedGuild:
		return "This server is blocked from this command."
	case KindBlockedChannel:
		return "This channel is blocked from this command."
	case KindOnlyForDM:
		return "This command can only be used in DMs."
	case KindOnlyForGuilds:
		return "This command can only be used in servers."
	case KindOnlyForOwners:
		return "This command can only be used by owners."
	case KindLackingRole:
		return "You do not have the requires role(s)."
	case KindLackingPermissions:
		return "You do not have the requires permission(s)."
	case KindNotEnoughArguments:
		return fmt.Sprintf("At least %d arguments must be provided. (You provided %d)", e.Min, e.Given)
	case KindTooManyArguments:
		return fmt.Sprintf("At most %d arguments may be provided. (You provided %d)", e.Max, e.Given)
	default:
		return "Unknown error."
	}
}
