package commands

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"cachebuster/pkg/config"
	"cachebuster/pkg/logger"
)

func expectDispatchError(t *testing.T, res Result, kind ErrorKind) *DispatchError {
	t.Helper()
	if res.Kind != ResultDispatchError {
		t.Fatalf("expected dispatch error, got %s (%v)", res.Kind, res.Err)
	}
	var derr *DispatchError
	if !errors.As(res.Err, &derr) {
		t.Fatalf("expected *DispatchError, got %T", res.Err)
	}
	if derr.Kind != kind {
		t.Fatalf("expected kind %s, got %s", kind, derr.Kind)
	}
	return derr
}

func TestDispatchIgnoresNonInvocations(t *testing.T) {
	h := &recordingHandler{}
	d := newTestDispatcher(testConfig(), purgeLikeCommand(h))

	bot := guildMessage("!clearcache https://cdn.example.com/a.js", testRole)
	bot.Bot = true

	tests := map[string]Result{
		"plain text":      d.Dispatch(context.Background(), guildMessage("hello there", testRole)),
		"other prefix":    d.Dispatch(context.Background(), guildMessage("?clearcache x", testRole)),
		"unknown command": d.Dispatch(context.Background(), guildMessage("!purge x", testRole)),
		"space after":     d.Dispatch(context.Background(), guildMessage("! clearcache x", testRole)),
		"prefix only":     d.Dispatch(context.Background(), guildMessage("!", testRole)),
		"bot author":      d.Dispatch(context.Background(), bot),
		"case sensitive":  d.Dispatch(context.Background(), guildMessage("!ClearCache x", testRole)),
		"nil message":     d.Dispatch(context.Background(), nil),
	}

	for name, res := range tests {
		if res.Kind != ResultIgnored {
			t.Errorf("%s: expected ignored, got %s", name, res.Kind)
		}
	}
	if h.calls != 0 {
		t.Fatalf("handler must not run, ran %d times", h.calls)
	}
}

func TestDispatchAllowsLeadingWhitespace(t *testing.T) {
	h := &recordingHandler{}
	d := newTestDispatcher(testConfig(), purgeLikeCommand(h))

	for _, content := range []string{
		"  !clearcache https://cdn.example.com/a.js",
		"\n\t!clearcache https://cdn.example.com/a.js",
	} {
		res := d.Dispatch(context.Background(), guildMessage(content, testRole))
		if res.Kind != ResultReplied {
			t.Fatalf("%q: expected replied, got %s (%v)", content, res.Kind, res.Err)
		}
	}
	if h.calls != 2 {
		t.Fatalf("expected 2 handler calls, got %d", h.calls)
	}
	if len(h.last.Args) != 1 || h.last.Args[0] != "https://cdn.example.com/a.js" {
		t.Fatalf("unexpected args %q", h.last.Args)
	}
}

func TestDispatchRunsAuthorizedCommand(t *testing.T) {
	h := &recordingHandler{}
	d := newTestDispatcher(testConfig(), purgeLikeCommand(h))

	res := d.Dispatch(context.Background(), guildMessage("!clearcache https://cdn.example.com/a.js", "1", testRole))
	if res.Kind != ResultReplied {
		t.Fatalf("expected replied, got %s (%v)", res.Kind, res.Err)
	}
	if res.Response.Content != "ok" {
		t.Fatalf("unexpected response %+v", res.Response)
	}
	if h.calls != 1 {
		t.Fatalf("expected 1 handler call, got %d", h.calls)
	}

	inv := h.last
	if inv.ID != "inv-1" || inv.MessageID != "msg-1" {
		t.Fatalf("unexpected ids %q %q", inv.ID, inv.MessageID)
	}
	if inv.GuildID != testGuild || inv.ChannelID != testChannel || inv.UserID != testUser {
		t.Fatalf("unexpected invocation context %+v", inv)
	}
	if len(inv.Args) != 1 || inv.Args[0] != "https://cdn.example.com/a.js" {
		t.Fatalf("unexpected args %q", inv.Args)
	}
}

func TestDispatchRoleDenialSkipsHandler(t *testing.T) {
	h := &recordingHandler{}
	d := newTestDispatcher(testConfig(), purgeLikeCommand(h))

	res := d.Dispatch(context.Background(), guildMessage("!clearcache https://cdn.example.com/a.js", "1", "2"))
	derr := expectDispatchError(t, res, KindCheckFailed)
	if derr.Message() != ReasonMissingRole {
		t.Fatalf("unexpected message %q", derr.Message())
	}
	if derr.Check != "only_approved_roles" {
		t.Fatalf("unexpected failing check %q", derr.Check)
	}
	if h.calls != 0 {
		t.Fatalf("handler must not run on denial")
	}
}

func TestDispatchReportsOnlyFirstDenial(t *testing.T) {
	h := &recordingHandler{}
	d := newTestDispatcher(testConfig(), purgeLikeCommand(h))

	msg := guildMessage("!clearcache https://cdn.example.com/a.js", "1")
	msg.GuildID = "999999999999999999"

	derr := expectDispatchError(t, d.Dispatch(context.Background(), msg), KindCheckFailed)
	if derr.Reason != ReasonMissingRole {
		t.Fatalf("expected role reason only, got %q", derr.Reason)
	}
}

func TestDispatchGuildDenial(t *testing.T) {
	h := &recordingHandler{}
	d := newTestDispatcher(testConfig(), purgeLikeCommand(h))

	msg := guildMessage("!clearcache https://cdn.example.com/a.js", testRole)
	msg.GuildID = "999999999999999999"

	derr := expectDispatchError(t, d.Dispatch(context.Background(), msg), KindCheckFailed)
	if derr.Message() != ReasonGuildNotAllowed {
		t.Fatalf("unexpected message %q", derr.Message())
	}
}

func TestDispatchArgumentCount(t *testing.T) {
	h := &recordingHandler{}
	d := newTestDispatcher(testConfig(), purgeLikeCommand(h))

	derr := expectDispatchError(t, d.Dispatch(context.Background(), guildMessage("!clearcache", testRole)), KindNotEnoughArguments)
	if derr.Message() != "At least 1 arguments must be provided. (You provided 0)" {
		t.Fatalf("unexpected message %q", derr.Message())
	}

	derr = expectDispatchError(t, d.Dispatch(context.Background(), guildMessage("!clearcache a b", testRole)), KindTooManyArguments)
	if derr.Message() != "At most 1 arguments may be provided. (You provided 2)" {
		t.Fatalf("unexpected message %q", derr.Message())
	}

	if h.calls != 0 {
		t.Fatalf("handler must not run on bad argument count")
	}
}

func TestDispatchGuildOnlyInDM(t *testing.T) {
	h := &recordingHandler{}
	d := newTestDispatcher(testConfig(), purgeLikeCommand(h))

	msg := guildMessage("!clearcache https://cdn.example.com/a.js")
	msg.GuildID = ""
	msg.Member = nil

	expectDispatchError(t, d.Dispatch(context.Background(), msg), KindOnlyForGuilds)
}

func TestDispatchFrameworkGates(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config, cmd *Command)
		perms  int64
		kind   ErrorKind
	}{
		{
			name:   "blocked user",
			mutate: func(cfg *config.Config, cmd *Command) { cfg.Dispatch.BlockedUserIDs = []string{testUser} },
			kind:   KindBlockedUser,
		},
		{
			name:   "disabled command",
			mutate: func(cfg *config.Config, cmd *Command) { cfg.Dispatch.DisabledCommands = []string{"clearcache"} },
			kind:   KindCommandDisabled,
		},
		{
			name:   "blocked guild",
			mutate: func(cfg *config.Config, cmd *Command) { cfg.Dispatch.BlockedGuildIDs = []string{testGuild} },
			kind:   KindBlockedGuild,
		},
		{
			name:   "blocked channel",
			mutate: func(cfg *config.Config, cmd *Command) { cfg.Dispatch.BlockedChannelIDs = []string{testChannel} },
			kind:   KindBlockedChannel,
		},
		{
			name:   "dm only",
			mutate: func(cfg *config.Config, cmd *Command) { cmd.OnlyIn = ScopeDM },
			kind:   KindOnlyForDM,
		},
		{
			name:   "owners only",
			mutate: func(cfg *config.Config, cmd *Command) { cmd.OwnersOnly = true },
			kind:   KindOnlyForOwners,
		},
		{
			name:   "lacking permissions",
			mutate: func(cfg *config.Config, cmd *Command) { cmd.RequiredPermissions = 1 << 13 },
			perms:  1 << 10,
			kind:   KindLackingPermissions,
		},
		{
			name:   "lacking role",
			mutate: func(cfg *config.Config, cmd *Command) { cmd.AllowedRoles = []string{"424242"} },
			kind:   KindLackingRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{}
			cfg := testConfig()
			cmd := purgeLikeCommand(h)
			tt.mutate(cfg, cmd)
			d := newTestDispatcher(cfg, cmd)

			msg := guildMessage("!clearcache https://cdn.example.com/a.js", testRole)
			msg.Member.Permissions = tt.perms

			expectDispatchError(t, d.Dispatch(context.Background(), msg), tt.kind)
			if h.calls != 0 {
				t.Fatalf("handler must not run")
			}
		})
	}
}

func TestDispatchAdministratorHasAllPermissions(t *testing.T) {
	h := &recordingHandler{}
	cmd := purgeLikeCommand(h)
	cmd.RequiredPermissions = 1 << 13
	d := newTestDispatcher(testConfig(), cmd)

	msg := guildMessage("!clearcache https://cdn.example.com/a.js", testRole)
	msg.Member.Permissions = PermissionAdministrator

	if res := d.Dispatch(context.Background(), msg); res.Kind != ResultReplied {
		t.Fatalf("expected administrator to pass, got %s (%v)", res.Kind, res.Err)
	}
}

func TestDispatchOwnerPrivilege(t *testing.T) {
	h := &recordingHandler{}
	cfg := testConfig()
	cfg.Dispatch.OwnerIDs = []string{testUser}
	cfg.Dispatch.BlockedUserIDs = []string{testUser}

	cmd := purgeLikeCommand(h)
	d := newTestDispatcher(cfg, cmd)
	msg := guildMessage("!clearcache https://cdn.example.com/a.js", testRole)

	expectDispatchError(t, d.Dispatch(context.Background(), msg), KindBlockedUser)

	cmd.OwnerPrivilege = true
	if res := d.Dispatch(context.Background(), msg); res.Kind != ResultReplied {
		t.Fatalf("owner with privilege should bypass blocklist, got %s (%v)", res.Kind, res.Err)
	}
}

func TestDispatchRateLimited(t *testing.T) {
	h := &recordingHandler{}
	d := newTestDispatcher(testConfig(), purgeLikeCommand(h))
	d.limiter = NewRateLimiter(logger.NewNop(), config.RateLimitConfig{
		Enabled: true, PerMinute: 1, Burst: 1, IdleTTLMinutes: 1,
	})

	msg := guildMessage("!clearcache https://cdn.example.com/a.js", testRole)
	if res := d.Dispatch(context.Background(), msg); res.Kind != ResultReplied {
		t.Fatalf("first call should pass, got %s", res.Kind)
	}

	derr := expectDispatchError(t, d.Dispatch(context.Background(), msg), KindRatelimited)
	if derr.RetryAfter <= 0 {
		t.Fatalf("expected positive retry-after, got %v", derr.RetryAfter)
	}
	if h.calls != 1 {
		t.Fatalf("expected 1 handler call, got %d", h.calls)
	}
}

func TestDispatchRateLimitRunsAfterChecks(t *testing.T) {
	h := &recordingHandler{}
	d := newTestDispatcher(testConfig(), purgeLikeCommand(h))
	d.limiter = NewRateLimiter(logger.NewNop(), config.RateLimitConfig{
		Enabled: true, PerMinute: 1, Burst: 1, IdleTTLMinutes: 1,
	})

	denied := guildMessage("!clearcache https://cdn.example.com/a.js")
	for i := 0; i < 3; i++ {
		expectDispatchError(t, d.Dispatch(context.Background(), denied), KindCheckFailed)
	}

	allowed := guildMessage("!clearcache https://cdn.example.com/a.js", testRole)
	if res := d.Dispatch(context.Background(), allowed); res.Kind != ResultReplied {
		t.Fatalf("denied attempts must not consume tokens, got %s", res.Kind)
	}
}

func TestDispatchHandlerFailures(t *testing.T) {
	boom := errors.New("boom")
	failing := &Command{Name: "fail", MaxArgs: -1, Handler: func(ctx context.Context, inv *Invocation) (Response, error) {
		return Response{}, boom
	}}
	panicking := &Command{Name: "panic", MaxArgs: -1, Handler: func(ctx context.Context, inv *Invocation) (Response, error) {
		panic("unexpected")
	}}
	d := newTestDispatcher(testConfig(), failing, panicking)

	res := d.Dispatch(context.Background(), guildMessage("!fail"))
	if res.Kind != ResultHandlerFailed || !errors.Is(res.Err, boom) {
		t.Fatalf("expected handler failure wrapping boom, got %s (%v)", res.Kind, res.Err)
	}

	res = d.Dispatch(context.Background(), guildMessage("!panic"))
	if res.Kind != ResultHandlerFailed || res.Err == nil {
		t.Fatalf("expected panic to become handler failure, got %s", res.Kind)
	}
}

func TestDispatchAlias(t *testing.T) {
	h := &recordingHandler{}
	cmd := purgeLikeCommand(h)
	cmd.Aliases = []string{"cc"}
	d := newTestDispatcher(testConfig(), cmd)

	res := d.Dispatch(context.Background(), guildMessage("!cc https://cdn.example.com/a.js", testRole))
	if res.Kind != ResultReplied {
		t.Fatalf("expected alias to dispatch, got %s (%v)", res.Kind, res.Err)
	}
	if h.last.Command != "cc" || res.Command.Name != "clearcache" {
		t.Fatalf("unexpected command names %q / %q", h.last.Command, res.Command.Name)
	}
}

func TestDispatchErrorCatalog(t *testing.T) {
	tests := []struct {
		err  DispatchError
		want string
	}{
		{DispatchError{Kind: KindCheckFailed, Reason: "custom"}, "custom"},
		{DispatchError{Kind: KindCheckFailed}, "You failed a check."},
		{DispatchError{Kind: KindRatelimited}, "You are being rate-limited."},
		{DispatchError{Kind: KindCommandDisabled}, "This command is disabled."},
		{DispatchError{Kind: KindBlockedUser}, "You are blocked from this command."},
		{DispatchError{Kind: KindBlockedGuild}, "This server is blocked from this command."},
		{DispatchError{Kind: KindBlockedChannel}, "This channel is blocked from this command."},
		{DispatchError{Kind: KindOnlyForDM}, "This command can only be used in DMs."},
		{DispatchError{Kind: KindOnlyForGuilds}, "This command can only be used in servers."},
		{DispatchError{Kind: KindOnlyForOwners}, "This command can only be used by owners."},
		{DispatchError{Kind: KindLackingRole}, "You do not have the requires role(s)."},
		{DispatchError{Kind: KindLackingPermissions}, "You do not have the requires permission(s)."},
		{DispatchError{Kind: KindNotEnoughArguments, Min: 2, Given: 1}, "At least 2 arguments must be provided. (You provided 1)"},
		{DispatchError{Kind: KindTooManyArguments, Max: 1, Given: 3}, "At most 1 arguments may be provided. (You provided 3)"},
		{DispatchError{Kind: KindUnknown}, "Unknown error."},
	}

	for _, tt := range tests {
		if got := tt.err.Message(); got != tt.want {
			t.Errorf("%s: got %q, want %q", tt.err.Kind, got, tt.want)
		}
	}
}

func TestDispatchConcurrentInvocations(t *testing.T) {
	var calls atomic.Int32
	cmd := purgeLikeCommand(nil)
	cmd.Handler = func(ctx context.Context, inv *Invocation) (Response, error) {
		calls.Add(1)
		return Response{Content: inv.Args[0]}, nil
	}
	d := newTestDispatcher(testConfig(), cmd)

	const n = 32
	var wg sync.WaitGroup
	results := make([]Result, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			roles := []string{testRole}
			if i%2 == 1 {
				roles = []string{"999"}
			}
			results[i] = d.Dispatch(context.Background(), guildMessage("!clearcache https://cdn.example.com/a.js", roles...))
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		want := ResultReplied
		if i%2 == 1 {
			want = ResultDispatchError
		}
		if res.Kind != want {
			t.Fatalf("invocation %d: expected %s, got %s", i, want, res.Kind)
		}
	}
	if calls.Load() != n/2 {
		t.Fatalf("expected %d handler calls, got %d", n/2, calls.Load())
	}
}
