package discord

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/sirsoundsalot/internal/command"
	"github.com/keshon/sirsoundsalot/internal/music/fetch"
	"github.com/keshon/sirsoundsalot/internal/music/player"
	"github.com/keshon/sirsoundsalot/internal/storage"
)

type trackRecorder interface {
	AppendTrackToHistory(guildID string, track storage.TrackHistoryRecord) error
}

// announcer posts scheduler statuses to the text channel a guild last used
// for a command and records what started playing.
type announcer struct {
	responder command.Responder
	history   trackRecorder
	now       func() time.Time

	mu       sync.RWMutex
	channels map[string]string
}

func newAnnouncer(r command.Responder, history trackRecorder) *announcer {
	return &announcer{
		responder: r,
		history:   history,
		now:       time.Now,
		channels:  make(map[string]string),
	}
}

func (a *announcer) remember(guildID, channelID string) {
	a.mu.Lock()
	a.channels[guildID] = channelID
	a.mu.Unlock()
}

func (a *announcer) channel(guildID string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ch, ok := a.channels[guildID]
	return ch, ok
}

// run consumes statuses until the channel is closed.
func (a *announcer) run(statuses <-chan player.StatusEvent) {
	for ev := range statuses {
		a.announce(ev)
	}
}

func (a *announcer) announce(ev player.StatusEvent) {
	if ev.Status == player.StatusPlaying && a.history != nil {
		rec := storage.TrackHistoryRecord{URL: ev.Track.URL, Title: ev.Track.Title, PlayedAt: a.now()}
		if err := a.history.AppendTrackToHistory(ev.GuildID, rec); err != nil {
			log.Printf("[WARN] Failed to record track history for guild %s: %v", ev.GuildID, err)
		}
	}

	channelID, ok := a.channel(ev.GuildID)
	if !ok {
		log.Printf("[DEBUG] No text channel known for guild %s, status %s not posted", ev.GuildID, ev.Status)
		return
	}
	if err := a.responder.MessageEmbed(channelID, statusEmbed(ev)); err != nil {
		log.Printf("[WARN] Failed to post status %s for guild %s: %v", ev.Status, ev.GuildID, err)
	}
}

func statusEmbed(ev player.StatusEvent) *discordgo.MessageEmbed {
	var desc string
	switch ev.Status {
	case player.StatusPlaying, player.StatusAdded, player.StatusSkipped:
		desc = command.TrackLink(ev.Track)
	case player.StatusFetchRetry:
		desc = fmt.Sprintf("%s failed to download, trying again.", command.TrackLink(ev.Track))
	case player.StatusError:
		desc = fmt.Sprintf("%s\n\n**Error:** %s", command.TrackLink(ev.Track), describe(ev.Err))
	case player.StatusCleared:
		desc = "Playback stopped. Queue cleared."
	case player.StatusStopped:
		desc = "Left the voice channel. Queue cleared."
	case player.StatusIdle:
		desc = "Nothing left to play."
	}
	return &discordgo.MessageEmbed{
		Title:       ev.Status.StringEmoji() + " " + string(ev.Status),
		Description: desc,
		Color:       command.EmbedColor,
	}
}

func describe(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, fetch.ErrSlowTransfer):
		return "the download was too slow, skipping this track"
	case errors.Is(err, fetch.ErrDownload):
		return "error downloading, skipping this track"
	case errors.Is(err, player.ErrNoVoiceSession):
		return "not connected to voice, queue cleared"
	}
	return err.Error()
}
