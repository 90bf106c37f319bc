package player

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keshon/sirsoundsalot/internal/music/queue"
)

const waitTimeout = 2 * time.Second

type fetchResult struct {
	path string
	err  error
}

type fetchCall struct {
	url    string
	key    string
	ctx    context.Context
	result chan fetchResult
}

func (c *fetchCall) succeed(path string) { c.result <- fetchResult{path: path} }
func (c *fetchCall) fail(err error)      { c.result <- fetchResult{err: err} }

// fakeFetcher hands every Fetch call to the test, which decides its outcome.
type fakeFetcher struct {
	calls chan *fetchCall
	// ignoreCancel makes Fetch wait for the test's verdict even after its
	// context is cancelled, like a download that is slow to notice.
	ignoreCancel bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: make(chan *fetchCall, 32)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, key string) (string, error) {
	c := &fetchCall{url: url, key: key, ctx: ctx, result: make(chan fetchResult, 1)}
	f.calls <- c
	if f.ignoreCancel {
		r := <-c.result
		return r.path, r.err
	}
	select {
	case r := <-c.result:
		return r.path, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeFetcher) next(t *testing.T) *fetchCall {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(waitTimeout):
		t.Fatalf("no fetch call")
		return nil
	}
}

func (f *fakeFetcher) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case c := <-f.calls:
		t.Fatalf("unexpected fetch of %s", c.url)
	case <-time.After(d):
	}
}

type fakePlayback struct {
	path  string
	onEnd func(error)
	once  sync.Once
	stops atomic.Int32
}

func (p *fakePlayback) Stop() {
	p.stops.Add(1)
	go p.finish(nil)
}

func (p *fakePlayback) finish(err error) {
	p.once.Do(func() { p.onEnd(err) })
}

type fakeSession struct {
	channel      string
	plays        chan *fakePlayback
	disconnected atomic.Int32
	playErr      error
}

func newFakeSession(channel string) *fakeSession {
	return &fakeSession{channel: channel, plays: make(chan *fakePlayback, 32)}
}

func (s *fakeSession) ChannelID() string { return s.channel }

func (s *fakeSession) Play(path string, onEnd func(error)) (Playback, error) {
	if s.playErr != nil {
		return nil, s.playErr
	}
	p := &fakePlayback{path: path, onEnd: onEnd}
	s.plays <- p
	return p, nil
}

func (s *fakeSession) Disconnect() error {
	s.disconnected.Add(1)
	return nil
}

func (s *fakeSession) next(t *testing.T) *fakePlayback {
	t.Helper()
	select {
	case p := <-s.plays:
		return p
	case <-time.After(waitTimeout):
		t.Fatalf("no playback started")
		return nil
	}
}

type fakeConnector struct {
	mu       sync.Mutex
	sessions []*fakeSession
	err      error
}

func (c *fakeConnector) Connect(ctx context.Context, guildID, channelID string) (VoiceSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	s := newFakeSession(channelID)
	c.sessions = append(c.sessions, s)
	return s, nil
}

func (c *fakeConnector) last(t *testing.T) *fakeSession {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sessions) == 0 {
		t.Fatalf("no session connected")
	}
	return c.sessions[len(c.sessions)-1]
}

func (c *fakeConnector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

var errNetwork = errors.New("network down")

type harness struct {
	store     *queue.Store
	fetcher   *fakeFetcher
	connector *fakeConnector
	sched     *Scheduler
}

func newHarness(t *testing.T, retries int) *harness {
	t.Helper()
	h := &harness{
		store:     queue.NewStore(),
		fetcher:   newFakeFetcher(),
		connector: &fakeConnector{},
	}
	h.sched = New(h.store, h.fetcher, h.connector, Config{FetchRetries: retries, StatusBuffer: 256})
	t.Cleanup(h.sched.Close)
	return h
}

func (h *harness) join(t *testing.T, guildID, channelID string) *fakeSession {
	t.Helper()
	if err := h.sched.Join(context.Background(), guildID, channelID); err != nil {
		t.Fatalf("join: %v", err)
	}
	return h.connector.last(t)
}

func (h *harness) enqueue(t *testing.T, guildID string, tr queue.Track) bool {
	t.Helper()
	started, err := h.sched.Enqueue(guildID, tr)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return started
}

func (h *harness) waitState(t *testing.T, guildID string, want State) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if h.sched.State(guildID) == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state %s never reached, still %s", want, h.sched.State(guildID))
}

// expectStatus reads statuses until one matching want arrives.
func (h *harness) expectStatus(t *testing.T, want Status) StatusEvent {
	t.Helper()
	timeout := time.After(waitTimeout)
	for {
		select {
		case ev := <-h.sched.Statuses():
			if ev.Status == want {
				return ev
			}
		case <-timeout:
			t.Fatalf("status %q never reported", want)
			return StatusEvent{}
		}
	}
}

func track(name string) queue.Track {
	return queue.Track{URL: "https://example.com/" + name, Title: name}
}
