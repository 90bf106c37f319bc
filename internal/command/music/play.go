// Package music holds the chat commands that drive the playback scheduler.
package music

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keshon/sirsoundsalot/internal/command"
	"github.com/keshon/sirsoundsalot/internal/music/player"
	"github.com/keshon/sirsoundsalot/pkg/cmd"
)

type PlayCommand struct{}

func (c *PlayCommand) Name() string        { return "play" }
func (c *PlayCommand) Description() string { return "Play a link or the first search result" }
func (c *PlayCommand) Aliases() []string   { return []string{"p"} }
func (c *PlayCommand) Usage() string       { return "play <link or search words>" }

func (c *PlayCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	mc, err := command.FromInvocation(inv)
	if err != nil {
		return err
	}
	if len(inv.Args) == 0 {
		return mc.Reply("🎵 Usage", "`"+mc.Prefix+c.Usage()+"`")
	}

	if err := mc.Player.Join(ctx, mc.GuildID, mc.VoiceChannelID); err != nil {
		switch {
		case errors.Is(err, player.ErrDifferentChannel):
			return mc.Reply("🔇 Busy", "I'm already playing in another voice channel.")
		case errors.Is(err, player.ErrConnect):
			return mc.Reply("🔇 Voice Error", "I couldn't join your voice channel.")
		}
		return err
	}

	track, err := mc.Resolver.Resolve(ctx, inv.Args)
	if err != nil {
		return mc.Reply("🎵 Not Found", fmt.Sprintf("Nothing playable found for `%s`.", joinArgs(inv.Args)))
	}

	started, err := mc.Player.Enqueue(mc.GuildID, track)
	if err != nil {
		return err
	}
	if started {
		return mc.Reply("⏳ Loading", command.TrackLink(track))
	}
	// Queued behind the current track; the scheduler reports it as added.
	return nil
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
