package music

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/keshon/sirsoundsalot/internal/command"
	"github.com/keshon/sirsoundsalot/internal/music/player"
	"github.com/keshon/sirsoundsalot/internal/music/queue"
	"github.com/keshon/sirsoundsalot/pkg/cmd"
)

type QueueCommand struct{}

func (c *QueueCommand) Name() string        { return "queue" }
func (c *QueueCommand) Description() string { return "Show the queue" }
func (c *QueueCommand) Aliases() []string   { return []string{"q"} }

func (c *QueueCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := command.FromInvocation(inv)
	if err != nil {
		return err
	}

	return mc.Reply("📜 Queue", mc.Player.Render(mc.GuildID))
}

type RemoveCommand struct{}

func (c *RemoveCommand) Name() string        { return "remove" }
func (c *RemoveCommand) Description() string { return "Remove the track at a queue position" }
func (c *RemoveCommand) Aliases() []string   { return []string{"rm"} }
func (c *RemoveCommand) Usage() string       { return "remove <position>" }

func (c *RemoveCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := command.FromInvocation(inv)
	if err != nil {
		return err
	}

	n, ok := positions(inv.Args, 1)
	if !ok {
		return mc.Reply("🎵 Usage", "`"+mc.Prefix+c.Usage()+"`")
	}

	removed, err := mc.Player.Remove(ctx, mc.GuildID, n[0])
	switch {
	case errors.Is(err, queue.ErrInvalidIndex):
		return mc.Reply("🎵 Invalid Position", fmt.Sprintf("There is no track at position %d.", n[0]))
	case errors.Is(err, player.ErrNothingPlaying):
		return mc.Reply("🎵 Nothing Playing", "Nothing is playing right now.")
	case err != nil:
		return err
	}
	if n[0] == 1 {
		// Removing the head is a skip; the scheduler reports it.
		return nil
	}
	return mc.Reply("🗑️ Removed", command.TrackLink(removed))
}

type SwapCommand struct{}

func (c *SwapCommand) Name() string        { return "swap" }
func (c *SwapCommand) Description() string { return "Swap two queued tracks (not the one playing)" }
func (c *SwapCommand) Usage() string       { return "swap <position> <position>" }

func (c *SwapCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := command.FromInvocation(inv)
	if err != nil {
		return err
	}

	n, ok := positions(inv.Args, 2)
	if !ok {
		return mc.Reply("🎵 Usage", "`"+mc.Prefix+c.Usage()+"`")
	}

	if err := mc.Player.Swap(mc.GuildID, n[0], n[1]); err != nil {
		if errors.Is(err, queue.ErrInvalidIndex) {
			return mc.Reply("🎵 Invalid Position", "Positions must be between 2 and the queue length; the playing track can't be moved.")
		}
		return err
	}
	return mc.Reply("🔀 Swapped", mc.Player.Render(mc.GuildID))
}

type ClearCommand struct{}

func (c *ClearCommand) Name() string        { return "clear" }
func (c *ClearCommand) Description() string { return "Stop playback and empty the queue" }

func (c *ClearCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := command.FromInvocation(inv)
	if err != nil {
		return err
	}
	return mc.Player.Clear(ctx, mc.GuildID)
}

// positions parses exactly want integer arguments.
func positions(args []string, want int) ([]int, bool) {
	if len(args) != want {
		return nil, false
	}
	out := make([]int, 0, want)
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}
