package commands

import (
	"cachebuster/pkg/config"
)

const (
	// ReasonMissingRole is returned by RoleCheck.
	ReasonMissingRole = "You do not have the necessary roles to execute this command."
	// ReasonGuildNotAllowed is returned by GuildCheck.
	ReasonGuildNotAllowed = "This command is not allowed to be run in this server."
)

// Outcome is the verdict of one Check.
type Outcome struct {
	denied bool
	reason string
}

// Allowed returns a passing Outcome.
func Allowed() Outcome {
	return Outcome{}
}

// Denied returns a failing Outcome carrying a user-facing reason.
// An empty reason is shown as ReasonFailedCheck.
func Denied(reason string) Outcome {
	return Outcome{denied: true, reason: reason}
}

// IsAllowed reports whether the check passed.
func (o Outcome) IsAllowed() bool {
	return !o.denied
}

// Reason returns the denial reason, empty when allowed.
func (o Outcome) Reason() string {
	return o.reason
}

// Check is one authorization predicate. Evaluate must not block or mutate cfg.
type Check interface {
	Name() string
	Evaluate(inv *Invocation, cfg *config.Config) Outcome
}

// CheckFunc adapts a function to a Check.
type CheckFunc func(inv *Invocation, cfg *config.Config) Outcome

// Name implements Check.
func (f CheckFunc) Name() string { return "func" }

// Evaluate implements Check.
func (f CheckFunc) Evaluate(inv *Invocation, cfg *config.Config) Outcome { return f(inv, cfg) }

type namedCheck struct {
	name string
	CheckFunc
}

func (c namedCheck) Name() string { return c.name }

// NewCheck returns a Check named name that calls fn.
func NewCheck(name string, fn CheckFunc) Check {
	return namedCheck{name: name, CheckFunc: fn}
}

// Chain is an ordered list of checks.
type Chain []Check

// Evaluate runs the checks in order and stops at the first denial, returning
// it with the failing check's name. Later checks are not evaluated.
func (c Chain) Evaluate(inv *Invocation, cfg *config.Config) (Outcome, string) {
	for _, check := range c {
		if out := check.Evaluate(inv, cfg); !out.IsAllowed() {
			return out, check.Name()
		}
	}
	return Allowed(), ""
}

// RoleCheck allows members holding at least one of allowed_role_ids.
type RoleCheck struct{}

// Name implements Check.
func (RoleCheck) Name() string { return "only_approved_roles" }

// Evaluate implements Check. A missing member is denied.
func (RoleCheck) Evaluate(inv *Invocation, cfg *config.Config) Outcome {
	if inv.Member.HasAnyRole(cfg.IsRoleAllowed) {
		return Allowed()
	}
	return Denied(ReasonMissingRole)
}

// GuildCheck allows invocations from guilds in allowed_guild_ids.
type GuildCheck struct{}

// Name implements Check.
func (GuildCheck) Name() string { return "only_approved_guilds" }

// Evaluate implements Check. Direct messages are denied.
func (GuildCheck) Evaluate(inv *Invocation, cfg *config.Config) Outcome {
	if cfg.IsGuildAllowed(inv.GuildID) {
		return Allowed()
	}
	return Denied(ReasonGuildNotAllowed)
}
