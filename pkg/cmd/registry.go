package cmd

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry stores commands by name and alias. It does not dispatch; adapters
// look commands up and run them with their own context.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	aliases  map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
		aliases:  make(map[string]string),
	}
}

// Register adds c under its name and aliases. A name or alias that is
// already taken is an error.
func (r *Registry) Register(c Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(c.Name())
	if r.taken(name) {
		return fmt.Errorf("command %q already registered", name)
	}

	var aliases []string
	if a, ok := Root(c).(Aliaser); ok {
		for _, alias := range a.Aliases() {
			alias = strings.ToLower(alias)
			if alias == name || r.taken(alias) {
				return fmt.Errorf("alias %q of %q already registered", alias, name)
			}
			aliases = append(aliases, alias)
		}
	}

	r.commands[name] = c
	for _, alias := range aliases {
		r.aliases[alias] = name
	}
	return nil
}

func (r *Registry) taken(name string) bool {
	_, cmd := r.commands[name]
	_, alias := r.aliases[name]
	return cmd || alias
}

// Get resolves a name or alias, or returns nil.
func (r *Registry) Get(name string) Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name = strings.ToLower(name)
	if target, ok := r.aliases[name]; ok {
		name = target
	}
	return r.commands[name]
}

// GetAll returns all commands sorted by name.
func (r *Registry) GetAll() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Command, 0, len(r.commands))
	for _, c := range r.commands {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}
