package player

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/keshon/sirsoundsalot/internal/music/queue"
	"github.com/keshon/sirsoundsalot/pkg/jobmgr"
)

type eventKind int

const (
	evStart eventKind = iota
	evFetched
	evEnded
	evSkip
	evClear
	evDisconnect
)

// event is a message for a guild loop. cycle tags fetch and end results so
// that results from an abandoned cycle can be recognised and ignored.
type event struct {
	kind  eventKind
	cycle uint64
	track queue.Track
	path  string
	err   error
	reply chan result
}

type result struct {
	track queue.Track
	err   error
}

type guildPlayer struct {
	id     string
	s      *Scheduler
	events chan event

	joinMu sync.Mutex

	sessMu  sync.RWMutex
	session VoiceSession

	stateMu sync.RWMutex
	state   State
	current queue.Track

	// Owned by the loop goroutine.
	cycle    uint64
	attempts int
	fetchJob *jobmgr.Job
	playback Playback
	stopping bool
}

func newGuildPlayer(s *Scheduler, id string) *guildPlayer {
	return &guildPlayer{
		id:     id,
		s:      s,
		events: make(chan event, 16),
		state:  StateIdle,
	}
}

func (g *guildPlayer) getSession() VoiceSession {
	g.sessMu.RLock()
	defer g.sessMu.RUnlock()
	return g.session
}

func (g *guildPlayer) setSession(sess VoiceSession) {
	g.sessMu.Lock()
	g.session = sess
	g.sessMu.Unlock()
}

func (g *guildPlayer) takeSession() VoiceSession {
	g.sessMu.Lock()
	defer g.sessMu.Unlock()
	sess := g.session
	g.session = nil
	return sess
}

func (g *guildPlayer) snapshot() (State, queue.Track) {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	return g.state, g.current
}

func (g *guildPlayer) setState(state State, t queue.Track) {
	g.stateMu.Lock()
	g.state = state
	g.current = t
	g.stateMu.Unlock()
}

func (g *guildPlayer) post(ev event) error {
	select {
	case g.events <- ev:
		return nil
	case <-g.s.ctx.Done():
		return ErrClosed
	}
}

// request posts a command and waits for the loop's answer.
func (g *guildPlayer) request(ctx context.Context, kind eventKind) (queue.Track, error) {
	reply := make(chan result, 1)
	if err := g.post(event{kind: kind, reply: reply}); err != nil {
		return queue.Track{}, err
	}

	select {
	case r := <-reply:
		return r.track, r.err
	case <-ctx.Done():
		return queue.Track{}, ctx.Err()
	case <-g.s.ctx.Done():
		return queue.Track{}, ErrClosed
	}
}

func (g *guildPlayer) run(ctx context.Context) {
	defer g.s.loops.Done()

	for {
		select {
		case <-ctx.Done():
			g.halt()
			if sess := g.takeSession(); sess != nil {
				if err := sess.Disconnect(); err != nil {
					log.Printf("[WARN] [Scheduler] guild=%s disconnect on shutdown: %v", g.id, err)
				}
			}
			return
		case ev := <-g.events:
			t, err := g.handle(ev)
			if ev.reply != nil {
				ev.reply <- result{track: t, err: err}
			}
		}
	}
}

func (g *guildPlayer) handle(ev event) (queue.Track, error) {
	switch ev.kind {
	case evStart:
		g.start()
	case evFetched:
		g.fetched(ev)
	case evEnded:
		g.ended(ev)
	case evSkip:
		return g.skip()
	case evClear:
		g.clear()
	case evDisconnect:
		return queue.Track{}, g.disconnect()
	}
	return queue.Track{}, nil
}

func (g *guildPlayer) start() {
	if state, _ := g.snapshot(); state == StateFetching || state == StatePlaying {
		return
	}
	g.advance()
}

// advance begins the next cycle with the queue head, or goes idle.
func (g *guildPlayer) advance() {
	head, ok := g.s.queue.Head(g.id)
	if !ok {
		g.setState(StateIdle, queue.Track{})
		g.s.emitStatus(StatusEvent{GuildID: g.id, Status: StatusIdle})
		return
	}
	g.attempts = 0
	g.fetch(head)
}

func (g *guildPlayer) fetch(t queue.Track) {
	g.cycle++
	cycle := g.cycle
	g.stopping = false
	g.setState(StateFetching, t)

	name := fetchJobName(g.id)
	// A finished runner may still hold the name for a moment.
	_ = g.s.jobs.Stop(name)

	// Stop frees the name before the old runner returns, and both runners
	// write under the guild's key, so the new one waits for the old. It
	// waits even when cancelled: its Done must imply every earlier runner's.
	prev := g.fetchJob
	job, err := g.s.jobs.StartAsync(g.s.ctx, name, func(ctx context.Context) error {
		if prev != nil {
			<-prev.Done()
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := g.s.fetcher.Fetch(ctx, t.URL, g.id)
		_ = g.post(event{kind: evFetched, cycle: cycle, track: t, path: path, err: err})
		return err
	})
	if err != nil {
		log.Printf("[ERR] [Scheduler] guild=%s cannot start fetch: %v", g.id, err)
		g.drop(t, err)
		return
	}
	g.fetchJob = job
}

func (g *guildPlayer) fetched(ev event) {
	if state, _ := g.snapshot(); ev.cycle != g.cycle || state != StateFetching {
		log.Printf("[DEBUG] [Scheduler] guild=%s discarding stale fetch result for %q", g.id, ev.track.Title)
		return
	}

	if ev.err != nil {
		if g.attempts < g.s.cfg.FetchRetries && !errors.Is(ev.err, context.Canceled) {
			g.attempts++
			log.Printf("[WARN] [Scheduler] guild=%s fetch of %q failed, retrying (%d/%d): %v", g.id, ev.track.Title, g.attempts, g.s.cfg.FetchRetries, ev.err)
			g.s.emitStatus(StatusEvent{GuildID: g.id, Status: StatusFetchRetry, Track: ev.track, Err: ev.err})
			g.fetch(ev.track)
			return
		}
		log.Printf("[ERR] [Scheduler] guild=%s fetch of %q failed, dropping: %v", g.id, ev.track.Title, ev.err)
		g.drop(ev.track, ev.err)
		return
	}

	sess := g.getSession()
	if sess == nil {
		err := fmt.Errorf("%w: %s", ErrNoVoiceSession, g.id)
		log.Printf("[ERR] [Scheduler] guild=%s %v, clearing queue", g.id, err)
		g.s.queue.Clear(g.id)
		g.attempts = 0
		g.setState(StateIdle, queue.Track{})
		g.s.emitStatus(StatusEvent{GuildID: g.id, Status: StatusError, Track: ev.track, Err: err})
		return
	}

	cycle := g.cycle
	track := ev.track
	pb, err := sess.Play(ev.path, func(err error) {
		_ = g.post(event{kind: evEnded, cycle: cycle, track: track, err: err})
	})
	if err != nil {
		log.Printf("[ERR] [Scheduler] guild=%s cannot start output for %q: %v", g.id, track.Title, err)
		g.drop(track, err)
		return
	}

	g.playback = pb
	g.attempts = 0
	g.setState(StatePlaying, track)
	log.Printf("[INFO] [Scheduler] guild=%s playing %q", g.id, track.Title)
	g.s.emitStatus(StatusEvent{GuildID: g.id, Status: StatusPlaying, Track: track})
}

func (g *guildPlayer) ended(ev event) {
	if state, _ := g.snapshot(); ev.cycle != g.cycle || state != StatePlaying {
		return
	}
	if ev.err != nil {
		log.Printf("[WARN] [Scheduler] guild=%s output of %q ended with error: %v", g.id, ev.track.Title, ev.err)
	}

	g.playback = nil
	g.s.queue.PopHeadIf(g.id, ev.track)
	g.advance()
}

// drop removes a head that could not be played, reports it and moves on.
func (g *guildPlayer) drop(t queue.Track, err error) {
	g.s.emitStatus(StatusEvent{GuildID: g.id, Status: StatusError, Track: t, Err: err})
	g.s.queue.PopHeadIf(g.id, t)
	g.advance()
}

func (g *guildPlayer) skip() (queue.Track, error) {
	state, current := g.snapshot()

	switch state {
	case StatePlaying:
		// The end callback pops and advances; a repeated skip before it
		// arrives must not advance twice.
		if g.stopping {
			return current, nil
		}
		g.stopping = true
		g.s.emitStatus(StatusEvent{GuildID: g.id, Status: StatusSkipped, Track: current})
		g.playback.Stop()
		return current, nil

	case StateFetching:
		g.cycle++
		_ = g.s.jobs.Stop(fetchJobName(g.id))
		g.s.emitStatus(StatusEvent{GuildID: g.id, Status: StatusSkipped, Track: current})
		g.s.queue.PopHeadIf(g.id, current)
		g.advance()
		return current, nil

	default:
		return queue.Track{}, ErrNothingPlaying
	}
}

// halt abandons the current cycle: pending results become stale, the fetch
// is cancelled and output is stopped.
func (g *guildPlayer) halt() {
	g.cycle++
	_ = g.s.jobs.Stop(fetchJobName(g.id))
	if g.playback != nil {
		g.playback.Stop()
		g.playback = nil
	}
	g.attempts = 0
	g.stopping = false
}

func (g *guildPlayer) clear() {
	g.s.queue.Clear(g.id)
	g.halt()
	g.setState(StateIdle, queue.Track{})
	g.s.emitStatus(StatusEvent{GuildID: g.id, Status: StatusCleared})
}

func (g *guildPlayer) disconnect() error {
	g.halt()
	g.s.queue.Drop(g.id)
	g.setState(StateStopped, queue.Track{})

	sess := g.takeSession()
	if sess == nil {
		return ErrNotConnected
	}
	g.s.emitStatus(StatusEvent{GuildID: g.id, Status: StatusStopped})
	if err := sess.Disconnect(); err != nil {
		return fmt.Errorf("leave voice: %w", err)
	}
	log.Printf("[INFO] [Scheduler] guild=%s left voice", g.id)
	return nil
}
