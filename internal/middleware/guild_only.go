package middleware

import (
	"context"

	"github.com/keshon/sirsoundsalot/internal/command"
	"github.com/keshon/sirsoundsalot/pkg/cmd"
)

// WithGuildOnly wraps a command to enforce guild-only access
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			mc, err := command.FromInvocation(inv)
			if err != nil {
				return err
			}
			if mc.GuildID == "" {
				return nil
			}
			return c.Run(ctx, inv)
		})
	}
}
