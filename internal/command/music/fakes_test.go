package music

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/keshon/sirsoundsalot/internal/command"
	"github.com/keshon/sirsoundsalot/internal/music/queue"
	"github.com/keshon/sirsoundsalot/internal/storage"
	"github.com/keshon/sirsoundsalot/pkg/cmd"
)

type reply struct {
	channel string
	embed   *discordgo.MessageEmbed
}

type fakeResponder struct {
	mu      sync.Mutex
	replies []reply
}

func (r *fakeResponder) MessageEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, reply{channel: channelID, embed: embed})
	return nil
}

func (r *fakeResponder) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, rep := range r.replies {
		out = append(out, rep.embed.Title)
	}
	return out
}

type fakeVoice map[string]string // user -> channel

func (v fakeVoice) UserVoiceChannel(guildID, userID string) (string, bool) {
	ch, ok := v[userID]
	return ch, ok
}

type fakeResolver struct {
	track  queue.Track
	err    error
	tokens []string
}

func (r *fakeResolver) Resolve(ctx context.Context, tokens []string) (queue.Track, error) {
	r.tokens = tokens
	return r.track, r.err
}

type fakePlayer struct {
	session string

	joinErr error
	joined  []string

	started  bool
	enqueued []queue.Track

	skipErr error
	skips   int

	removed   queue.Track
	removeErr error
	removes   []int

	swapErr error
	swaps   [][2]int

	clears int

	disconnectErr error
	disconnects   int

	render string
	now    queue.Track
}

func (p *fakePlayer) Join(ctx context.Context, guildID, channelID string) error {
	p.joined = append(p.joined, channelID)
	return p.joinErr
}

func (p *fakePlayer) SessionChannel(guildID string) (string, bool) {
	return p.session, p.session != ""
}

func (p *fakePlayer) Enqueue(guildID string, t queue.Track) (bool, error) {
	p.enqueued = append(p.enqueued, t)
	return p.started, nil
}

func (p *fakePlayer) Skip(ctx context.Context, guildID string) (queue.Track, error) {
	p.skips++
	return p.now, p.skipErr
}

func (p *fakePlayer) Remove(ctx context.Context, guildID string, n int) (queue.Track, error) {
	p.removes = append(p.removes, n)
	return p.removed, p.removeErr
}

func (p *fakePlayer) Swap(guildID string, n, m int) error {
	p.swaps = append(p.swaps, [2]int{n, m})
	return p.swapErr
}

func (p *fakePlayer) Clear(ctx context.Context, guildID string) error {
	p.clears++
	return nil
}

func (p *fakePlayer) Disconnect(ctx context.Context, guildID string) error {
	p.disconnects++
	return p.disconnectErr
}

func (p *fakePlayer) Render(guildID string) string                  { return p.render }

type fakeHistory struct {
	commands []storage.CommandHistoryRecord
	tracks   []storage.TrackHistoryRecord
}

func (h *fakeHistory) AppendCommandToHistory(guildID string, rec storage.CommandHistoryRecord) error {
	h.commands = append(h.commands, rec)
	return nil
}

func (h *fakeHistory) FetchTrackHistory(guildID string) ([]storage.TrackHistoryRecord, error) {
	return h.tracks, nil
}

var errBoom = errors.New("boom")

type fixture struct {
	reg       *cmd.Registry
	responder *fakeResponder
	player    *fakePlayer
	resolver  *fakeResolver
	history   *fakeHistory
	voice     fakeVoice
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		reg:       cmd.NewRegistry(),
		responder: &fakeResponder{},
		player:    &fakePlayer{},
		resolver:  &fakeResolver{track: queue.Track{URL: "https://youtu.be/abc", Title: "Song"}},
		history:   &fakeHistory{},
		voice:     fakeVoice{"u1": "vc1"},
	}
	if err := Register(f.reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	return f
}

func (f *fixture) context() *command.MessageContext {
	return &command.MessageContext{
		GuildID:   "g1",
		ChannelID: "text1",
		UserID:    "u1",
		Username:  "listener",
		Prefix:    "-",
		Commands:  f.reg,
		Responder: f.responder,
		Voice:     f.voice,
		Player:    f.player,
		Resolver:  f.resolver,
		History:   f.history,
	}
}

// run dispatches line the way the chat adapter does.
func (f *fixture) run(t *testing.T, mc *command.MessageContext, line string) error {
	t.Helper()
	name, args, ok := cmd.Parse(mc.Prefix, line)
	if !ok {
		t.Fatalf("not a command: %q", line)
	}
	c := f.reg.Get(name)
	if c == nil {
		t.Fatalf("unknown command %q", name)
	}
	return c.Run(context.Background(), &cmd.Invocation{Name: name, Args: args, Data: mc})
}

func (f *fixture) mustRun(t *testing.T, line string) {
	t.Helper()
	if err := f.run(t, f.context(), line); err != nil {
		t.Fatalf("%s: %v", line, err)
	}
}

func (f *fixture) expectTitles(t *testing.T, want ...string) {
	t.Helper()
	got := f.responder.titles()
	if len(got) != len(want) {
		t.Fatalf("expected replies %v got %v", want, got)
	}
	for i := range want {
		if !strings.Contains(got[i], want[i]) {
			t.Fatalf("reply %d: expected %q in %q", i, want[i], got[i])
		}
	}
}
