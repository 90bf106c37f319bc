package player

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/keshon/sirsoundsalot/internal/music/queue"
	"github.com/keshon/sirsoundsalot/pkg/jobmgr"
)

// Config tunes the scheduler.
type Config struct {
	// FetchRetries is how many extra fetch attempts the head track gets
	// before it is dropped.
	FetchRetries int
	// StatusBuffer is the capacity of the Statuses channel.
	StatusBuffer int
}

// Scheduler owns playback for every guild. Each guild gets its own event
// loop goroutine; all state transitions of a guild happen on that loop.
type Scheduler struct {
	queue     *queue.Store
	fetcher   Fetcher
	connector Connector
	jobs      *jobmgr.Manager
	cfg       Config

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	guilds   map[string]*guildPlayer
	closed   bool
	loops    sync.WaitGroup
	statuses chan StatusEvent
}

func New(store *queue.Store, fetcher Fetcher, connector Connector, cfg Config) *Scheduler {
	if cfg.FetchRetries < 0 {
		cfg.FetchRetries = 0
	}
	if cfg.StatusBuffer <= 0 {
		cfg.StatusBuffer = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		queue:     store,
		fetcher:   fetcher,
		connector: connector,
		jobs: jobmgr.NewManager(func(msg string) {
			log.Printf("[DEBUG] [Scheduler] job %s", msg)
		}),
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		guilds:   make(map[string]*guildPlayer),
		statuses: make(chan StatusEvent, cfg.StatusBuffer),
	}
}

// Statuses streams playback reports. The channel is closed by Close.
func (s *Scheduler) Statuses() <-chan StatusEvent {
	return s.statuses
}

// guild returns the player for guildID, starting its loop on first use.
func (s *Scheduler) guild(guildID string) (*guildPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if g, ok := s.guilds[guildID]; ok {
		return g, nil
	}

	g := newGuildPlayer(s, guildID)
	s.guilds[guildID] = g
	s.loops.Add(1)
	go g.run(s.ctx)
	return g, nil
}

// lookup returns an existing player without creating one.
func (s *Scheduler) lookup(guildID string) *guildPlayer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guilds[guildID]
}

// Join makes sure the bot is connected to channelID in guildID. An existing
// session in the same channel is reused; a session in another channel is an
// error.
func (s *Scheduler) Join(ctx context.Context, guildID, channelID string) error {
	g, err := s.guild(guildID)
	if err != nil {
		return err
	}

	g.joinMu.Lock()
	defer g.joinMu.Unlock()

	if sess := g.getSession(); sess != nil {
		if sess.ChannelID() == channelID {
			return nil
		}
		return fmt.Errorf("%w: <#%s>", ErrDifferentChannel, sess.ChannelID())
	}

	sess, err := s.connector.Connect(ctx, guildID, channelID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}
	g.setSession(sess)
	log.Printf("[INFO] [Scheduler] guild=%s joined voice channel %s", guildID, channelID)
	return nil
}

// SessionChannel reports the voice channel the bot is connected to in guildID.
func (s *Scheduler) SessionChannel(guildID string) (string, bool) {
	g := s.lookup(guildID)
	if g == nil {
		return "", false
	}
	sess := g.getSession()
	if sess == nil {
		return "", false
	}
	return sess.ChannelID(), true
}

// Enqueue appends t to the guild's queue. startedNow is true when the queue
// was empty, in which case the scheduler begins fetching t.
func (s *Scheduler) Enqueue(guildID string, t queue.Track) (startedNow bool, err error) {
	g, err := s.guild(guildID)
	if err != nil {
		return false, err
	}

	if !s.queue.Enqueue(guildID, t) {
		s.emitStatus(StatusEvent{GuildID: guildID, Status: StatusAdded, Track: t})
		return false, nil
	}

	if err := g.post(event{kind: evStart}); err != nil {
		return true, err
	}
	return true, nil
}

// Skip ends the current track. While playing, the output is stopped and the
// end callback advances the queue; while fetching, the fetch is abandoned and
// the head dropped.
func (s *Scheduler) Skip(ctx context.Context, guildID string) (queue.Track, error) {
	g := s.lookup(guildID)
	if g == nil {
		return queue.Track{}, ErrNothingPlaying
	}
	return g.request(ctx, evSkip)
}

// Remove deletes the track at 1-based position n. Position 1 is the current
// track and is handled as a skip.
func (s *Scheduler) Remove(ctx context.Context, guildID string, n int) (queue.Track, error) {
	if n == 1 {
		if _, ok := s.queue.Head(guildID); !ok {
			return queue.Track{}, fmt.Errorf("%w: 1 (queue is empty)", queue.ErrInvalidIndex)
		}
		return s.Skip(ctx, guildID)
	}
	return s.queue.RemoveAt(guildID, n)
}

// Swap exchanges the tracks at positions n and m; the head cannot move.
func (s *Scheduler) Swap(guildID string, n, m int) error {
	return s.queue.Swap(guildID, n, m)
}

// Clear empties the guild's queue and stops playback. The voice session stays.
func (s *Scheduler) Clear(ctx context.Context, guildID string) error {
	g := s.lookup(guildID)
	if g == nil {
		s.queue.Clear(guildID)
		return nil
	}
	_, err := g.request(ctx, evClear)
	return err
}

// Disconnect drops the guild's queue, stops playback and leaves voice.
func (s *Scheduler) Disconnect(ctx context.Context, guildID string) error {
	g := s.lookup(guildID)
	if g == nil {
		s.queue.Drop(guildID)
		return ErrNotConnected
	}
	_, err := g.request(ctx, evDisconnect)
	return err
}

// State reports the guild's playback state.
func (s *Scheduler) State(guildID string) State {
	g := s.lookup(guildID)
	if g == nil {
		return StateIdle
	}
	state, _ := g.snapshot()
	return state
}

// NowPlaying returns the track currently being fetched or played.
func (s *Scheduler) NowPlaying(guildID string) (queue.Track, bool) {
	g := s.lookup(guildID)
	if g == nil {
		return queue.Track{}, false
	}
	state, t := g.snapshot()
	if state != StateFetching && state != StatePlaying {
		return queue.Track{}, false
	}
	return t, true
}

// Queue lists the guild's queue; known is false for a guild with no queue.
func (s *Scheduler) Queue(guildID string) (entries []queue.Entry, known bool) {
	return s.queue.List(guildID)
}

// Render formats the guild's queue for display.
func (s *Scheduler) Render(guildID string) string {
	return s.queue.Render(guildID)
}

// Guilds lists guilds with a queue.
func (s *Scheduler) Guilds() []string {
	return s.queue.Guilds()
}

// Jobs describes in-flight fetches.
func (s *Scheduler) Jobs() string {
	return s.jobs.Status()
}

// Close stops every guild loop, disconnects all sessions, waits for fetches
// to wind down and closes the Statuses channel.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	// No new guild loops and no more status events from here on.
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.loops.Wait()
	s.jobs.StopAll()

	s.mu.Lock()
	close(s.statuses)
	s.mu.Unlock()
}

func fetchJobName(guildID string) string {
	return "fetch:" + guildID
}
