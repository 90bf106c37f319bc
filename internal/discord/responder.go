package discord

import "github.com/bwmarrin/discordgo"

// responder implements command.Responder over the bot session.
type responder struct {
	dg *discordgo.Session
}

// MessageEmbed sends an embed to a channel.
func (r responder) MessageEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	_, err := r.dg.ChannelMessageSendEmbed(channelID, embed)
	return err
}
