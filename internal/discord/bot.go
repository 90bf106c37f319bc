// Package discord adapts the Discord gateway to the command layer: it turns
// prefixed chat messages into command invocations, joins voice channels for
// the scheduler and posts playback statuses back to chat.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/sirsoundsalot/internal/command"
	"github.com/keshon/sirsoundsalot/internal/config"
	"github.com/keshon/sirsoundsalot/internal/music/player"
	"github.com/keshon/sirsoundsalot/internal/storage"
	"github.com/keshon/sirsoundsalot/pkg/cmd"
)

// commandTimeout bounds one command run (voice join plus search).
const commandTimeout = 2 * time.Minute

// Deps are the services the bot hands to commands.
type Deps struct {
	Scheduler *player.Scheduler
	Resolver  command.Resolver
	Storage   *storage.Storage
	Commands  *cmd.Registry
	Voice     *Voice
}

// Bot is a Discord bot
type Bot struct {
	dg        *discordgo.Session
	cfg       *config.Config
	deps      Deps
	responder responder
	announcer *announcer
	ctx       context.Context
}

// NewSession creates a gateway session that is not yet connected.
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent
	return dg, nil
}

func NewBot(cfg *config.Config, dg *discordgo.Session, deps Deps) *Bot {
	r := responder{dg: dg}
	return &Bot{
		dg:        dg,
		cfg:       cfg,
		deps:      deps,
		responder: r,
		announcer: newAnnouncer(r, deps.Storage),
	}
}

// Run opens the gateway and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onMessageCreate)
	b.dg.AddHandler(b.onVoiceStateUpdate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	go b.announcer.run(b.deps.Scheduler.Statuses())

	<-ctx.Done()
	log.Println("[INFO] ❎ Shutdown signal received. Cleaning up...")
	return nil
}

// onReady is called when the bot is ready
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	// Leave any blacklisted guilds on startup
	for _, g := range r.Guilds {
		b.leaveIfBlacklisted(s, g.ID)
	}
	log.Printf("[INFO] ✅ Discord bot %v is running.", r.User.Username)
}

// onGuildCreate is called when a guild becomes available or the bot is added to one
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	log.Printf("[INFO] Guild available: %s (%s)", g.Guild.ID, g.Guild.Name)
	b.leaveIfBlacklisted(s, g.Guild.ID)
}

func (b *Bot) leaveIfBlacklisted(s *discordgo.Session, guildID string) {
	if !b.isGuildBlacklisted(guildID) {
		return
	}
	log.Printf("[INFO] Leaving blacklisted guild: %s", guildID)
	if err := s.GuildLeave(guildID); err != nil {
		log.Printf("[ERR] Failed to leave guild %s: %v", guildID, err)
	}
}

func (b *Bot) isGuildBlacklisted(guildID string) bool {
	return slices.Contains(b.cfg.GuildBlacklist, guildID)
}

// onMessageCreate is called when a message is created
func (b *Bot) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if b.isGuildBlacklisted(m.GuildID) {
		return
	}

	name, args, ok := cmd.Parse(b.cfg.CommandPrefix, m.Content)
	if !ok {
		return
	}
	c := b.deps.Commands.Get(name)
	if c == nil {
		return
	}

	mc := b.messageContext(s, m)
	if m.GuildID != "" {
		b.announcer.remember(m.GuildID, m.ChannelID)
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if err := c.Run(ctx, &cmd.Invocation{Name: name, Args: args, Data: mc}); err != nil {
		log.Println("[ERR] Error running command:", err)
		if rerr := mc.Reply("⚠️ Error", fmt.Sprintf("Error running command: %v", err)); rerr != nil {
			log.Printf("[WARN] Failed to report command error: %v", rerr)
		}
	}
}

func (b *Bot) messageContext(s *discordgo.Session, m *discordgo.MessageCreate) *command.MessageContext {
	mc := &command.MessageContext{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		UserID:    m.Author.ID,
		Username:  m.Author.Username,
		Prefix:    b.cfg.CommandPrefix,
		Commands:  b.deps.Commands,
		Responder: b.responder,
		Voice:     b.deps.Voice,
		Player:    b.deps.Scheduler,
		Resolver:  b.deps.Resolver,
	}
	if b.deps.Storage != nil {
		mc.History = b.deps.Storage
	}
	if ch, err := s.State.Channel(m.ChannelID); err == nil {
		mc.ChannelName = ch.Name
	}
	if g, err := s.State.Guild(m.GuildID); err == nil {
		mc.GuildName = g.Name
	}
	return mc
}

// onVoiceStateUpdate tears the guild down when the bot is removed from its
// voice channel by someone else.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if s.State.User == nil || v.UserID != s.State.User.ID || v.ChannelID != "" {
		return
	}
	if _, joined := b.deps.Scheduler.SessionChannel(v.GuildID); !joined {
		return
	}

	log.Printf("[INFO] Bot was disconnected from voice in guild %s", v.GuildID)
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	if err := b.deps.Scheduler.Disconnect(ctx, v.GuildID); err != nil && !errors.Is(err, player.ErrNotConnected) {
		log.Printf("[WARN] Failed to release guild %s after voice disconnect: %v", v.GuildID, err)
	}
}
