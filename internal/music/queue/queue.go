// Package queue holds the per-guild ordered lists of pending tracks.
//
// Index 0 of a guild's queue is the track that is playing or about to play.
// The head is only ever removed by PopHead/PopHeadIf, never by RemoveAt, and it
// can never take part in a Swap.
package queue

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var ErrInvalidIndex = errors.New("invalid queue index")

// Track is a playable unit. Values are never mutated after creation.
type Track struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Entry is a 1-based position paired with its track title, as shown to users.
type Entry struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

// Store maps guild ids to their queues. A guild may be absent (never
// initialised, or dropped on disconnect) or present with an empty queue
// (idle); both mean "nothing queued".
type Store struct {
	mu     sync.Mutex
	queues map[string][]Track
}

func NewStore() *Store {
	return &Store{queues: make(map[string][]Track)}
}

// Enqueue appends t and reports whether the queue was empty before the call,
// in which case the caller must start playback. The check and the append
// happen under one lock.
func (s *Store) Enqueue(guildID string, t Track) (startNow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[guildID]
	startNow = len(q) == 0
	s.queues[guildID] = append(q, t)
	return startNow
}

// Head returns the current/next track without removing it.
func (s *Store) Head(guildID string) (Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[guildID]
	if len(q) == 0 {
		return Track{}, false
	}
	return q[0], true
}

// PopHead removes the head track. No-op on an empty or absent queue.
func (s *Store) PopHead(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[guildID]
	if !ok || len(q) == 0 {
		return
	}
	s.queues[guildID] = slices.Delete(q, 0, 1)
}

// PopHeadIf removes the head only if it still equals t.
func (s *Store) PopHeadIf(guildID string, t Track) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[guildID]
	if len(q) == 0 || q[0] != t {
		return false
	}
	s.queues[guildID] = slices.Delete(q, 0, 1)
	return true
}

// RemoveAt removes the track at 1-based position n. Position 1 is the head
// and is rejected: removing it is a skip and belongs to the scheduler.
func (s *Store) RemoveAt(guildID string, n int) (Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[guildID]
	if n < 2 || n > len(q) {
		return Track{}, fmt.Errorf("%w: %d (queue has %d tracks)", ErrInvalidIndex, n, len(q))
	}

	removed := q[n-1]
	s.queues[guildID] = slices.Delete(q, n-1, n)
	return removed, nil
}

// Swap exchanges the tracks at 1-based positions n and m. Both must be in
// 2..len; the head never moves.
func (s *Store) Swap(guildID string, n, m int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[guildID]
	for _, idx := range []int{n, m} {
		if idx < 2 || idx > len(q) {
			return fmt.Errorf("%w: %d (queue has %d tracks)", ErrInvalidIndex, idx, len(q))
		}
	}

	q[n-1], q[m-1] = q[m-1], q[n-1]
	return nil
}

// Clear empties the guild's queue but keeps it initialised.
func (s *Store) Clear(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[guildID] = []Track{}
}

// Drop forgets the guild entirely.
func (s *Store) Drop(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.queues, guildID)
}

func (s *Store) Len(guildID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[guildID])
}

// Tracks returns a copy of the guild's queue.
func (s *Store) Tracks(guildID string) []Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.queues[guildID])
}

// List returns the queue as display entries. The bool is false when the
// guild has never been initialised (or was dropped).
func (s *Store) List(guildID string) ([]Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.queues[guildID]
	if !ok {
		return nil, false
	}

	entries := make([]Entry, len(q))
	for i, t := range q {
		entries[i] = Entry{Position: i + 1, Title: t.Title, URL: t.URL}
	}
	return entries, true
}

// Guilds returns the ids of all initialised guilds.
func (s *Store) Guilds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.queues))
	for id := range s.queues {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

const (
	MsgUnknownGuild = "Nothing has been queued in this server yet."
	MsgEmptyQueue   = "The queue is empty."
)

// Render formats the guild's queue for chat. The head is marked as playing.
func (s *Store) Render(guildID string) string {
	entries, ok := s.List(guildID)
	return RenderEntries(entries, ok)
}

// RenderEntries formats entries the same way Render does.
func RenderEntries(entries []Entry, known bool) string {
	if !known {
		return MsgUnknownGuild
	}
	if len(entries) == 0 {
		return MsgEmptyQueue
	}

	var b strings.Builder
	for _, e := range entries {
		if e.Position == 1 {
			fmt.Fprintf(&b, "%d. %s (now playing)\n", e.Position, e.Title)
			continue
		}
		fmt.Fprintf(&b, "%d. %s\n", e.Position, e.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}
