package player

import (
	"log"

	"github.com/keshon/sirsoundsalot/internal/music/queue"
)

type Status string

const (
	StatusPlaying    Status = "Now Playing"
	StatusAdded      Status = "Track Added"
	StatusSkipped    Status = "Track Skipped"
	StatusCleared    Status = "Queue Cleared"
	StatusStopped    Status = "Disconnected"
	StatusFetchRetry Status = "Retrying Download"
	StatusError      Status = "Error"
	StatusIdle       Status = "Queue Finished"
)

func (status Status) StringEmoji() string {
	m := map[Status]string{
		StatusPlaying:    "▶️",
		StatusAdded:      "🎶",
		StatusSkipped:    "⏭️",
		StatusCleared:    "🧹",
		StatusStopped:    "⏹",
		StatusFetchRetry: "🔁",
		StatusError:      "❌",
		StatusIdle:       "💤",
	}
	return m[status]
}

// StatusEvent is what the scheduler reports to the outside world.
type StatusEvent struct {
	GuildID string
	Status  Status
	Track   queue.Track
	Err     error
}

// emitStatus sends without blocking; a full buffer drops the event.
func (s *Scheduler) emitStatus(ev StatusEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.statuses <- ev:
	default:
		log.Printf("[WARN] [Scheduler] guild=%s status dropped (channel full) - %s", ev.GuildID, ev.Status)
	}
}
