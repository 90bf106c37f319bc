package music

import (
	"context"
	"errors"

	"github.com/keshon/sirsoundsalot/internal/command"
	"github.com/keshon/sirsoundsalot/internal/music/player"
	"github.com/keshon/sirsoundsalot/pkg/cmd"
)

type SkipCommand struct{}

func (c *SkipCommand) Name() string        { return "skip" }
func (c *SkipCommand) Description() string { return "Skip the current track" }
func (c *SkipCommand) Aliases() []string   { return []string{"s", "next"} }

func (c *SkipCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := command.FromInvocation(inv)
	if err != nil {
		return err
	}
	if _, err := mc.Player.Skip(ctx, mc.GuildID); err != nil {
		if errors.Is(err, player.ErrNothingPlaying) {
			return mc.Reply("🎵 Nothing Playing", "Nothing is playing right now.")
		}
		return err
	}
	return nil
}

type DieCommand struct{}

func (c *DieCommand) Name() string        { return "die" }
func (c *DieCommand) Description() string { return "Clear the queue and leave the voice channel" }
func (c *DieCommand) Aliases() []string   { return []string{"leave", "stop"} }

func (c *DieCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := command.FromInvocation(inv)
	if err != nil {
		return err
	}
	if err := mc.Player.Disconnect(ctx, mc.GuildID); err != nil {
		if errors.Is(err, player.ErrNotConnected) {
			return mc.Reply("🔇 Not Connected", "I'm not in a voice channel.")
		}
		return err
	}
	return nil
}
