package middleware

import (
	"context"

	"github.com/keshon/sirsoundsalot/internal/command"
	"github.com/keshon/sirsoundsalot/pkg/cmd"
)

// WithVoiceChannel requires the caller to sit in a voice channel and, when
// the bot already has a session in the guild, to sit in that same channel.
// The caller's channel is stored in the context for the command.
func WithVoiceChannel() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			mc, err := command.FromInvocation(inv)
			if err != nil {
				return err
			}

			channelID, ok := mc.Voice.UserVoiceChannel(mc.GuildID, mc.UserID)
			if !ok {
				return mc.Reply("🔇 Not in voice", "Join a voice channel first.")
			}
			if current, joined := mc.Player.SessionChannel(mc.GuildID); joined && current != channelID {
				return mc.Reply("🔇 Busy", "I'm already playing in <#"+current+">. Join me there.")
			}

			mc.VoiceChannelID = channelID
			return c.Run(ctx, inv)
		})
	}
}
