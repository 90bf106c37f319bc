package middleware

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/keshon/sirsoundsalot/internal/command"
	"github.com/keshon/sirsoundsalot/internal/storage"
	"github.com/keshon/sirsoundsalot/pkg/cmd"
)

// WithCommandLogger wraps a command to log its execution
func WithCommandLogger() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			err := c.Run(ctx, inv)

			mc, cerr := command.FromInvocation(inv)
			if cerr != nil {
				return err
			}
			param := strings.Join(inv.Args, " ")
			if err != nil {
				log.Printf("[ERR] [Command] guild=%s user=%s %s %q: %v", mc.GuildID, mc.Username, c.Name(), param, err)
			} else {
				log.Printf("[INFO] [Command] guild=%s user=%s %s %q", mc.GuildID, mc.Username, c.Name(), param)
			}

			if mc.History != nil && mc.GuildID != "" {
				rec := storage.CommandHistoryRecord{
					ChannelID:   mc.ChannelID,
					ChannelName: mc.ChannelName,
					GuildName:   mc.GuildName,
					UserID:      mc.UserID,
					Username:    mc.Username,
					Command:     c.Name(),
					Param:       param,
					Datetime:    time.Now(),
				}
				if e := mc.History.AppendCommandToHistory(mc.GuildID, rec); e != nil {
					log.Printf("[WARN] Failed to log command %s: %v", c.Name(), e)
				}
			}
			return err
		})
	}
}
