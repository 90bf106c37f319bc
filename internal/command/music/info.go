package music

import (
	"context"
	"fmt"
	"strings"

	"github.com/keshon/sirsoundsalot/internal/command"
	"github.com/keshon/sirsoundsalot/internal/version"
	"github.com/keshon/sirsoundsalot/pkg/cmd"
)

type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "List commands" }
func (c *HelpCommand) Aliases() []string   { return []string{"h"} }

func (c *HelpCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := command.FromInvocation(inv)
	if err != nil {
		return err
	}
	if mc.Commands == nil {
		return nil
	}

	var b strings.Builder
	for _, entry := range mc.Commands.GetAll() {
		root := cmd.Root(entry)
		usage := root.Name()
		if u, ok := root.(cmd.Usage); ok {
			usage = u.Usage()
		}
		fmt.Fprintf(&b, "`%s%s` %s", mc.Prefix, usage, root.Description())
		if a, ok := root.(cmd.Aliaser); ok && len(a.Aliases()) > 0 {
			fmt.Fprintf(&b, " (aliases: %s)", strings.Join(a.Aliases(), ", "))
		}
		b.WriteString("\n")
	}
	return mc.Reply("📖 Commands", b.String())
}

type AboutCommand struct{}

func (c *AboutCommand) Name() string        { return "about" }
func (c *AboutCommand) Description() string { return "About the bot" }

func (c *AboutCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := command.FromInvocation(inv)
	if err != nil {
		return err
	}

	desc := version.AppDescription + "\n\nBuilt with " + version.GoVersion
	if version.BuildDate != "" {
		desc += " on " + version.BuildDate
	}
	return mc.Reply("ℹ️ "+version.AppName, desc)
}

type HistoryCommand struct{}

func (c *HistoryCommand) Name() string        { return "history" }
func (c *HistoryCommand) Description() string { return "Show recently played tracks" }

func (c *HistoryCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := command.FromInvocation(inv)
	if err != nil {
		return err
	}
	if mc.History == nil {
		return nil
	}

	tracks, err := mc.History.FetchTrackHistory(mc.GuildID)
	if err != nil {
		return fmt.Errorf("fetch track history: %w", err)
	}
	if len(tracks) == 0 {
		return mc.Reply("🕘 History", "Nothing has been played here yet.")
	}

	var b strings.Builder
	for i := len(tracks) - 1; i >= 0; i-- {
		t := tracks[i]
		fmt.Fprintf(&b, "%s [%s](%s)\n", t.PlayedAt.Format("Jan 2 15:04"), t.Title, t.URL)
	}
	return mc.Reply("🕘 History", b.String())
}
