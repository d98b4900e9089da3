package commands

import (
	"context"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cachebuster/pkg/bus"
	"cachebuster/pkg/config"
	"cachebuster/pkg/logger"
)

// Dispatcher turns inbound chat messages into command invocations.
// It is safe for concurrent use.
type Dispatcher struct {
	log      *logger.Logger
	cfg      *config.Config
	registry *Registry
	limiter  *RateLimiter
	newID    func() string
}

// NewDispatcher creates a dispatcher. limiter may be nil.
func NewDispatcher(log *logger.Logger, cfg *config.Config, registry *Registry, limiter *RateLimiter) *Dispatcher {
	return &Dispatcher{
		log:      log,
		cfg:      cfg,
		registry: registry,
		limiter:  limiter,
		newID:    uuid.NewString,
	}
}

// Prefix returns the configured command prefix.
func (d *Dispatcher) Prefix() string {
	return d.cfg.CommandPrefix
}

// Dispatch parses msg, runs the gates and checks, and invokes the handler.
// It never returns an error: every failure is a Result kind.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *bus.Message) Result {
	inv, cmd, ok := d.parse(msg)
	if !ok {
		return Result{Kind: ResultIgnored}
	}

	log := d.log.WithFields(
		zap.String("invocation_id", inv.ID),
		zap.String("command", cmd.Name),
		zap.String("user_id", inv.UserID),
		zap.String("guild_id", inv.GuildID),
	)
	log.Debug("Command received", zap.Strings("args", inv.Args))

	if derr := d.gate(inv, cmd); derr != nil {
		log.Debug("Command rejected", zap.String("kind", derr.Kind.String()))
		return Result{Kind: ResultDispatchError, Invocation: inv, Command: cmd, Err: derr}
	}

	resp, err := d.invoke(ctx, cmd, inv)
	if err != nil {
		return Result{Kind: ResultHandlerFailed, Invocation: inv, Command: cmd, Err: err}
	}
	return Result{Kind: ResultReplied, Invocation: inv, Command: cmd, Response: resp}
}

// parse recognizes "<prefix><name> args..." for a registered name or alias.
// Bots, unprefixed text and unknown names are not invocations.
func (d *Dispatcher) parse(msg *bus.Message) (*Invocation, *Command, bool) {
	if msg == nil || msg.Bot {
		return nil, nil, false
	}

	content := strings.TrimLeftFunc(msg.Content, unicode.IsSpace)
	body, ok := strings.CutPrefix(content, d.cfg.CommandPrefix)
	if !ok {
		return nil, nil, false
	}

	name, rest := splitCommand(body)
	if name == "" {
		return nil, nil, false
	}
	cmd, ok := d.registry.Get(name)
	if !ok {
		d.log.Debug("Unknown command ignored", zap.String("command", name))
		return nil, nil, false
	}

	inv := &Invocation{
		ID:        d.newID(),
		MessageID: msg.ID,
		UserID:    msg.UserID,
		Username:  msg.Username,
		Bot:       msg.Bot,
		GuildID:   msg.GuildID,
		ChannelID: msg.ChatID,
		Command:   name,
		Args:      SplitArgs(rest),
	}
	if msg.Member != nil {
		inv.Member = &Member{
			RoleIDs:     append([]string(nil), msg.Member.RoleIDs...),
			Permissions: msg.Member.Permissions,
		}
	}
	return inv, cmd, true
}

// gate applies the framework gates, the check chain and the rate limit,
// in that order, returning the first failure.
func (d *Dispatcher) gate(inv *Invocation, cmd *Command) *DispatchError {
	given := len(inv.Args)
	if given < cmd.MinArgs {
		return &DispatchError{Kind: KindNotEnoughArguments, Min: cmd.MinArgs, Given: given}
	}
	if cmd.MaxArgs >= 0 && given > cmd.MaxArgs {
		return &DispatchError{Kind: KindTooManyArguments, Max: cmd.MaxArgs, Given: given}
	}

	privileged := cmd.OwnerPrivilege && d.cfg.IsOwner(inv.UserID)

	if !privileged {
		if d.cfg.IsUserBlocked(inv.UserID) {
			return &DispatchError{Kind: KindBlockedUser}
		}
		if d.cfg.IsCommandDisabled(cmd.Name) {
			return &DispatchError{Kind: KindCommandDisabled}
		}
		if d.cfg.IsGuildBlocked(inv.GuildID) {
			return &DispatchError{Kind: KindBlockedGuild}
		}
		if d.cfg.IsChannelBlocked(inv.ChannelID) {
			return &DispatchError{Kind: KindBlockedChannel}
		}
	}

	switch cmd.OnlyIn {
	case ScopeGuild:
		if inv.GuildID == "" {
			return &DispatchError{Kind: KindOnlyForGuilds}
		}
	case ScopeDM:
		if inv.GuildID != "" {
			return &DispatchError{Kind: KindOnlyForDM}
		}
	}

	if cmd.OwnersOnly && !d.cfg.IsOwner(inv.UserID) {
		return &DispatchError{Kind: KindOnlyForOwners}
	}

	if !privileged {
		if cmd.RequiredPermissions != 0 && !hasPermissions(inv.Member, cmd.RequiredPermissions) {
			return &DispatchError{Kind: KindLackingPermissions}
		}
		if len(cmd.AllowedRoles) > 0 && !inv.Member.HasAnyRole(containsFunc(cmd.AllowedRoles)) {
			return &DispatchError{Kind: KindLackingRole}
		}
	}

	if out, check := cmd.Checks.Evaluate(inv, d.cfg); !out.IsAllowed() {
		return &DispatchError{Kind: KindCheckFailed, Check: check, Reason: out.Reason()}
	}

	if cmd.RateLimited {
		if ok, wait := d.limiter.Allow(inv.UserID); !ok {
			return &DispatchError{Kind: KindRatelimited, RetryAfter: wait}
		}
	}

	return nil
}

// invoke runs the handler, turning a panic into an error.
func (d *Dispatcher) invoke(ctx context.Context, cmd *Command, inv *Invocation) (resp Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Command handler panicked",
				zap.String("invocation_id", inv.ID),
				zap.String("command", cmd.Name),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			resp = Response{}
			err = fmt.Errorf("command %s panicked: %v", cmd.Name, r)
		}
	}()

	return cmd.Handler(ctx, inv)
}

func hasPermissions(m *Member, required int64) bool {
	if m == nil {
		return false
	}
	if m.Permissions&PermissionAdministrator != 0 {
		return true
	}
	return m.Permissions&required == required
}

func containsFunc(ids []string) func(string) bool {
	return func(id string) bool { return slices.Contains(ids, id) }
}
