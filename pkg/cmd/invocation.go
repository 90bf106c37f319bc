// Package cmd is the transport-agnostic command core: a command has a name,
// a description and Run(ctx, invocation). Adapters (chat prefix, CLI) own
// parsing and dispatch and hand commands their own context through Data.
package cmd

import (
	"context"
	"strings"
)

// Invocation is the input of one command run.
type Invocation struct {
	// Name is the word the user typed, which may be an alias.
	Name string
	Args []string
	// Data carries the adapter's context, e.g. the chat session and message.
	Data any
}

// Command is identity plus execution.
type Command interface {
	Name() string
	Description() string
	Run(ctx context.Context, inv *Invocation) error
}

// Aliaser is implemented by commands reachable under extra names.
type Aliaser interface {
	Aliases() []string
}

// Usage is implemented by commands that document their arguments.
type Usage interface {
	Usage() string
}

// Parse splits a chat line into command name and arguments when it starts
// with prefix. The name is lower-cased; arguments keep their case.
func Parse(prefix, line string) (name string, args []string, ok bool) {
	line = strings.TrimSpace(line)
	if prefix == "" || !strings.HasPrefix(line, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(line, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}
