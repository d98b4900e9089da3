package commands

import (
	"testing"

	"cachebuster/pkg/config"
)

func TestRoleCheck(t *testing.T) {
	cfg := testConfig().Freeze()

	tests := []struct {
		name    string
		member  *Member
		allowed bool
	}{
		{name: "allowed role", member: &Member{RoleIDs: []string{"1", testRole}}, allowed: true},
		{name: "other roles", member: &Member{RoleIDs: []string{"1", "2"}}, allowed: false},
		{name: "no roles", member: &Member{}, allowed: false},
		{name: "no member", member: nil, allowed: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RoleCheck{}.Evaluate(&Invocation{Member: tt.member, GuildID: testGuild}, cfg)
			if out.IsAllowed() != tt.allowed {
				t.Fatalf("expected allowed=%v, got %v", tt.allowed, out.IsAllowed())
			}
			if !tt.allowed && out.Reason() != ReasonMissingRole {
				t.Fatalf("unexpected reason %q", out.Reason())
			}
		})
	}
}

func TestGuildCheck(t *testing.T) {
	cfg := testConfig().Freeze()

	if out := (GuildCheck{}).Evaluate(&Invocation{GuildID: testGuild}, cfg); !out.IsAllowed() {
		t.Fatalf("expected allowed guild")
	}

	for _, guild := range []string{"999", ""} {
		out := GuildCheck{}.Evaluate(&Invocation{GuildID: guild}, cfg)
		if out.IsAllowed() {
			t.Fatalf("expected guild %q to be denied", guild)
		}
		if out.Reason() != ReasonGuildNotAllowed {
			t.Fatalf("unexpected reason %q", out.Reason())
		}
	}
}

func TestEmptyAllowListsDenyEverything(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedRoleIDs = nil
	cfg.AllowedGuildIDs = nil
	cfg.Freeze()

	inv := &Invocation{GuildID: testGuild, Member: &Member{RoleIDs: []string{testRole}}}
	if (RoleCheck{}).Evaluate(inv, cfg).IsAllowed() || (GuildCheck{}).Evaluate(inv, cfg).IsAllowed() {
		t.Fatalf("empty allow lists must deny")
	}
}

func TestChainShortCircuits(t *testing.T) {
	cfg := testConfig().Freeze()
	evaluated := []string{}

	record := func(name string, out Outcome) Check {
		return NewCheck(name, func(inv *Invocation, cfg *config.Config) Outcome {
			evaluated = append(evaluated, name)
			return out
		})
	}

	chain := Chain{
		record("first", Allowed()),
		record("second", Denied("second says no")),
		record("third", Denied("third says no")),
	}

	out, failed := chain.Evaluate(&Invocation{}, cfg)
	if out.IsAllowed() {
		t.Fatalf("expected denial")
	}
	if failed != "second" || out.Reason() != "second says no" {
		t.Fatalf("unexpected failure %q: %q", failed, out.Reason())
	}
	if len(evaluated) != 2 {
		t.Fatalf("expected evaluation to stop after second check, evaluated %v", evaluated)
	}
}

func TestChainAllowsWhenEmpty(t *testing.T) {
	out, failed := Chain(nil).Evaluate(&Invocation{}, testConfig().Freeze())
	if !out.IsAllowed() || failed != "" {
		t.Fatalf("empty chain must allow")
	}
}

func TestCheckFuncName(t *testing.T) {
	fn := CheckFunc(func(inv *Invocation, cfg *config.Config) Outcome { return Allowed() })
	if fn.Name() != "func" {
		t.Fatalf("unexpected name %q", fn.Name())
	}
	if NewCheck("custom", fn).Name() != "custom" {
		t.Fatalf("NewCheck must carry its name")
	}
}
