package gateway

import (
	"context"

	"go.uber.org/zap"

	"cachebuster/pkg/commands"
	"cachebuster/pkg/logger"
	"cachebuster/pkg/purge"
	"cachebuster/pkg/report"
)

// PurgeCommandName is the chat command that clears a cached file.
const PurgeCommandName = "clearcache"

// NewPurgeCommand builds the clearcache command on top of action.
// Only members of an approved role, inside an approved server, may run it.
func NewPurgeCommand(action *purge.Action, reporter *report.Reporter) *commands.Command {
	return &commands.Command{
		Name:        PurgeCommandName,
		Description: "Clears the CloudFlare cache for the provided URL.",
		Usage:       "<URL>",
		Group:       "General",
		MinArgs:     1,
		MaxArgs:     1,
		OnlyIn:      commands.ScopeGuild,
		Checks:      commands.Chain{commands.RoleCheck{}, commands.GuildCheck{}},
		RateLimited: true,
		Handler: func(ctx context.Context, inv *commands.Invocation) (commands.Response, error) {
			return reporter.RenderOutcome(inv, action.Purge(ctx, inv.Args[0]))
		},
	}
}

// RegisterPurgeCommand adds the clearcache command to registry.
func RegisterPurgeCommand(
	registry *commands.Registry,
	action *purge.Action,
	reporter *report.Reporter,
	log *logger.Logger,
) error {
	if err := registry.Register(NewPurgeCommand(action, reporter)); err != nil {
		return err
	}
	log.Info("Registered purge command",
		zap.String("command", PurgeCommandName),
		zap.String("url_prefix", action.Prefix()))
	return nil
}
