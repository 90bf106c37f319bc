package discord

import (
	"context"
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/sirsoundsalot/internal/music/player"
	"github.com/keshon/sirsoundsalot/internal/music/stream"
)

// Voice joins voice channels for the scheduler and tells commands where
// users sit.
type Voice struct {
	dg *discordgo.Session
}

func NewVoice(dg *discordgo.Session) *Voice {
	return &Voice{dg: dg}
}

// Connect implements player.Connector.
func (v *Voice) Connect(ctx context.Context, guildID, channelID string) (player.VoiceSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := v.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		if vc != nil {
			_ = vc.Disconnect()
		}
		return nil, fmt.Errorf("failed to join voice channel: %w", err)
	}
	log.Printf("[INFO] Joined voice channel %s on guild %s", channelID, guildID)
	return &voiceSession{vc: vc, channelID: channelID}, nil
}

// UserVoiceChannel implements command.VoiceLocator from the gateway state cache.
func (v *Voice) UserVoiceChannel(guildID, userID string) (string, bool) {
	vs, err := v.dg.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

type voiceSession struct {
	vc        *discordgo.VoiceConnection
	channelID string
}

func (s *voiceSession) ChannelID() string { return s.channelID }

func (s *voiceSession) Play(path string, onEnd func(error)) (player.Playback, error) {
	pb, err := stream.Start(path, stream.VoiceSink{VC: s.vc}, onEnd)
	if err != nil {
		return nil, err
	}
	return pb, nil
}

func (s *voiceSession) Disconnect() error {
	return s.vc.Disconnect()
}
