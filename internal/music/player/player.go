// Package player drives per-guild playback: it owns "what plays next",
// fetching the head of a guild's queue, starting output on the guild's voice
// session and advancing when the track ends, is skipped, or fails.
package player

import (
	"context"
	"errors"
)

var (
	ErrNothingPlaying   = errors.New("nothing is playing")
	ErrDifferentChannel = errors.New("already playing in another voice channel")
	ErrNotConnected     = errors.New("not connected to a voice channel")
	ErrConnect          = errors.New("failed to join voice channel")
	ErrClosed           = errors.New("scheduler is closed")

	// ErrNoVoiceSession is a precondition violation: a track was ready to play
	// but the guild had no voice session. The command layer joins before it
	// enqueues, so this only fires on a programming error or a session lost
	// mid-fetch.
	ErrNoVoiceSession = errors.New("no voice session for guild")
)

// Fetcher produces a locally playable file for url. key identifies the
// destination; a new fetch for the same key overwrites the previous file.
type Fetcher interface {
	Fetch(ctx context.Context, url, key string) (string, error)
}

// Playback is an output started by VoiceSession.Play.
type Playback interface {
	// Stop ends output early. It must be idempotent and must not block on
	// the end callback.
	Stop()
}

// VoiceSession is the live voice connection of one guild.
type VoiceSession interface {
	ChannelID() string
	// Play starts output of the file at path. onEnd fires exactly once per
	// successful Play, after natural completion, Stop, or a streaming error,
	// and never from the goroutine that called Play.
	Play(path string, onEnd func(error)) (Playback, error)
	Disconnect() error
}

// Connector opens voice sessions.
type Connector interface {
	Connect(ctx context.Context, guildID, channelID string) (VoiceSession, error)
}

// State is the derived playback state of a guild.
type State int

const (
	StateIdle State = iota
	StateFetching
	StatePlaying
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
