package commands

import (
	"context"

	"cachebuster/pkg/bus"
	"cachebuster/pkg/config"
	"cachebuster/pkg/logger"
)

const (
	testRole    = "111111111111111111"
	testGuild   = "333333333333333333"
	testChannel = "555555555555555555"
	testUser    = "777777777777777777"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.AllowedRoleIDs = []string{testRole}
	cfg.AllowedGuildIDs = []string{testGuild}
	cfg.CFServiceToken = "key"
	cfg.ZoneIdentifier = "zone"
	cfg.BotToken = "token"
	cfg.URLPrefix = "https://cdn.example.com/"
	cfg.CommandPrefix = "!"
	return cfg
}

func guildMessage(content string, roles ...string) *bus.Message {
	return &bus.Message{
		ID:        "msg-1",
		ChannelID: "discord",
		ChatID:    testChannel,
		GuildID:   testGuild,
		UserID:    testUser,
		Username:  "tester",
		Type:      bus.MessageTypeText,
		Content:   content,
		Member:    &bus.Member{RoleIDs: roles},
	}
}

// recordingHandler counts calls and echoes the arguments.
type recordingHandler struct {
	calls int
	last  *Invocation
}

func (h *recordingHandler) handle(ctx context.Context, inv *Invocation) (Response, error) {
	h.calls++
	h.last = inv
	return Response{Content: "ok"}, nil
}

func newTestDispatcher(cfg *config.Config, cmds ...*Command) *Dispatcher {
	registry := NewRegistry()
	for _, cmd := range cmds {
		if err := registry.Register(cmd); err != nil {
			panic(err)
		}
	}
	d := NewDispatcher(logger.NewNop(), cfg.Freeze(), registry, nil)
	d.newID = func() string { return "inv-1" }
	return d
}

func purgeLikeCommand(h *recordingHandler) *Command {
	return &Command{
		Name:        "clearcache",
		Group:       "General",
		Description: "Clears the CloudFlare cache for the provided URL.",
		Usage:       "<URL>",
		MinArgs:     1,
		MaxArgs:     1,
		OnlyIn:      ScopeGuild,
		Checks:      Chain{RoleCheck{}, GuildCheck{}},
		RateLimited: true,
		Handler:     h.handle,
	}
}
