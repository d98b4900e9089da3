package commands

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Registry manages command registration and lookup.
type Registry struct {
	commands map[string]*Command // name or alias -> command
	ordered  []*Command
	mu       sync.RWMutex
}

// NewRegistry creates a new command registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
	}
}

// Register registers a new command under its name and aliases.
func (r *Registry) Register(cmd *Command) error {
	if cmd == nil {
		return fmt.Errorf("command cannot be nil")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command %s has no handler", cmd.Name)
	}
	if cmd.MaxArgs >= 0 && cmd.MaxArgs < cmd.MinArgs {
		return fmt.Errorf("command %s: max args %d below min args %d", cmd.Name, cmd.MaxArgs, cmd.MinArgs)
	}

	names := append([]string{cmd.Name}, cmd.Aliases...)
	for _, name := range names {
		if name == "" || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
			return fmt.Errorf("invalid command name %q", name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range names {
		if _, exists := r.commands[name]; exists {
			return fmt.Errorf("command %s already registered", name)
		}
	}

	for _, name := range names {
		r.commands[name] = cmd
	}
	r.ordered = append(r.ordered, cmd)
	return nil
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, exists := r.commands[name]
	return cmd, exists
}

// List returns all registered commands sorted by group, then name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	cmds := make([]*Command, len(r.ordered))
	copy(cmds, r.ordered)
	r.mu.RUnlock()

	sort.SliceStable(cmds, func(i, j int) bool {
		if cmds[i].Group != cmds[j].Group {
			return cmds[i].Group < cmds[j].Group
		}
		return cmds[i].Name < cmds[j].Name
	})
	return cmds
}
