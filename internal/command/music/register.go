package music

import (
	"github.com/keshon/sirsoundsalot/internal/middleware"
	"github.com/keshon/sirsoundsalot/pkg/cmd"
)

// Register adds every music command to reg with its middleware chain.
// Commands that touch playback require the caller to share the bot's voice
// channel; read-only ones only need a guild.
func Register(reg *cmd.Registry) error {
	voice := []cmd.Middleware{
		middleware.WithVoiceChannel(),
		middleware.WithGuildOnly(),
		middleware.WithCommandLogger(),
	}
	read := []cmd.Middleware{
		middleware.WithGuildOnly(),
		middleware.WithCommandLogger(),
	}

	for _, c := range []cmd.Command{&PlayCommand{}, &SkipCommand{}, &RemoveCommand{}, &SwapCommand{}, &ClearCommand{}, &DieCommand{}} {
		if err := reg.Register(cmd.Apply(c, voice...)); err != nil {
			return err
		}
	}
	for _, c := range []cmd.Command{&QueueCommand{}, &HistoryCommand{}, &HelpCommand{}, &AboutCommand{}} {
		if err := reg.Register(cmd.Apply(c, read...)); err != nil {
			return err
		}
	}
	return nil
}
