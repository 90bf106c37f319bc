// Package command holds what message commands, middleware and the Discord
// adapter share: the per-message context and the collaborators it carries.
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/sirsoundsalot/internal/music/queue"
	"github.com/keshon/sirsoundsalot/internal/storage"
	"github.com/keshon/sirsoundsalot/pkg/cmd"
)

const EmbedColor = 0xb01e66

var ErrWrongContext = errors.New("command invoked without a message context")

// Responder posts replies so commands never talk to the Discord session directly.
type Responder interface {
	MessageEmbed(channelID string, embed *discordgo.MessageEmbed) error
}

// VoiceLocator finds the voice channel a user currently sits in.
type VoiceLocator interface {
	UserVoiceChannel(guildID, userID string) (string, bool)
}

type Resolver interface {
	Resolve(ctx context.Context, tokens []string) (queue.Track, error)
}

// Player is the slice of the playback scheduler commands drive.
type Player interface {
	Join(ctx context.Context, guildID, channelID string) error
	SessionChannel(guildID string) (string, bool)
	Enqueue(guildID string, t queue.Track) (bool, error)
	Skip(ctx context.Context, guildID string) (queue.Track, error)
	Remove(ctx context.Context, guildID string, n int) (queue.Track, error)
	Swap(guildID string, n, m int) error
	Clear(ctx context.Context, guildID string) error
	Disconnect(ctx context.Context, guildID string) error
	Render(guildID string) string
}

type History interface {
	AppendCommandToHistory(guildID string, rec storage.CommandHistoryRecord) error
	FetchTrackHistory(guildID string) ([]storage.TrackHistoryRecord, error)
}

// MessageContext is what the Discord adapter passes as Invocation.Data for
// a prefixed chat message.
type MessageContext struct {
	GuildID     string
	GuildName   string
	ChannelID   string
	ChannelName string
	UserID      string
	Username    string

	// VoiceChannelID is filled in by the voice channel middleware.
	VoiceChannelID string

	Prefix   string
	Commands *cmd.Registry

	Responder Responder
	Voice     VoiceLocator
	Player    Player
	Resolver  Resolver
	History   History
}

// FromInvocation extracts the message context from inv.
func FromInvocation(inv *cmd.Invocation) (*MessageContext, error) {
	mc, ok := inv.Data.(*MessageContext)
	if !ok || mc == nil {
		return nil, ErrWrongContext
	}
	return mc, nil
}

// Reply posts an embed to the channel the command came from.
func (c *MessageContext) Reply(title, description string) error {
	return c.Responder.MessageEmbed(c.ChannelID, &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       EmbedColor,
	})
}

// TrackLink renders a track as a markdown link, falling back to whatever
// part of it is known.
func TrackLink(t queue.Track) string {
	switch {
	case t.Title != "" && t.URL != "":
		return fmt.Sprintf("[%s](%s)", t.Title, t.URL)
	case t.Title != "":
		return t.Title
	case t.URL != "":
		return t.URL
	}
	return "Unknown track"
}
