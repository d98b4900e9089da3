package commands

import (
	"context"
	"fmt"
	"strings"

	"cachebuster/pkg/bus"
)

// HelpColor is the embed color of help output.
const HelpColor = 0x3498DB

// RegisterBuiltinCommands registers built-in commands.
func RegisterBuiltinCommands(registry *Registry, prefix string) error {
	builtins := []*Command{
		{
			Name:        "help",
			Description: "Lists the available commands, or shows details for one command.",
			Usage:       "[command]",
			MinArgs:     0,
			MaxArgs:     1,
			Handler:     helpHandler(registry, prefix),
		},
	}

	for _, cmd := range builtins {
		if err := registry.Register(cmd); err != nil {
			return fmt.Errorf("failed to register %s: %w", cmd.Name, err)
		}
	}

	return nil
}

// helpHandler creates a handler for the help command.
func helpHandler(registry *Registry, prefix string) Handler {
	return func(ctx context.Context, inv *Invocation) (Response, error) {
		if len(inv.Args) > 0 {
			name := strings.TrimPrefix(inv.Args[0], prefix)
			cmd, exists := registry.Get(name)
			if !exists {
				return Response{Content: fmt.Sprintf("Could not find a command named `%s`.", name)}, nil
			}
			return Response{Embeds: []*bus.Embed{commandHelp(cmd, prefix)}}, nil
		}

		return Response{Embeds: []*bus.Embed{overview(registry.List(), prefix)}}, nil
	}
}

func commandHelp(cmd *Command, prefix string) *bus.Embed {
	usage := prefix + cmd.Name
	if cmd.Usage != "" {
		usage += " " + cmd.Usage
	}

	embed := &bus.Embed{
		Title:       cmd.Name,
		Description: cmd.Description,
		Color:       HelpColor,
		Fields: []*bus.EmbedField{
			{Name: "Usage", Value: "`" + usage + "`", Inline: true},
			{Name: "Available in", Value: cmd.OnlyIn.String(), Inline: true},
		},
	}
	if len(cmd.Aliases) > 0 {
		embed.Fields = append(embed.Fields, &bus.EmbedField{
			Name:  "Aliases",
			Value: "`" + strings.Join(cmd.Aliases, "`, `") + "`",
		})
	}
	if cmd.Group != "" {
		embed.Fields = append(embed.Fields, &bus.EmbedField{Name: "Group", Value: cmd.Group})
	}
	return embed
}

// overview lists commands under their groups; commands without a group
// are listed last under "Other".
func overview(cmds []*Command, prefix string) *bus.Embed {
	embed := &bus.Embed{
		Title:       "Help",
		Description: fmt.Sprintf("To get help with an individual command, pass its name as an argument to this command, e.g. `%shelp <command>`.", prefix),
		Color:       HelpColor,
	}

	groups := map[string][]string{}
	var order []string
	var other []string
	for _, cmd := range cmds {
		if cmd.Group == "" {
			other = append(other, "`"+cmd.Name+"`")
			continue
		}
		if _, seen := groups[cmd.Group]; !seen {
			order = append(order, cmd.Group)
		}
		groups[cmd.Group] = append(groups[cmd.Group], "`"+cmd.Name+"`")
	}

	for _, group := range order {
		embed.Fields = append(embed.Fields, &bus.EmbedField{Name: group, Value: strings.Join(groups[group], " ")})
	}
	if len(other) > 0 {
		embed.Fields = append(embed.Fields, &bus.EmbedField{Name: "Other", Value: strings.Join(other, " ")})
	}
	return embed
}
