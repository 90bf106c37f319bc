package stream

import "github.com/bwmarrin/discordgo"

// VoiceSink adapts a discordgo voice connection.
type VoiceSink struct {
	VC *discordgo.VoiceConnection
}

func (v VoiceSink) Frames() chan<- []byte { return v.VC.OpusSend }

func (v VoiceSink) Speaking(on bool) error { return v.VC.Speaking(on) }
