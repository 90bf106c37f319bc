package music

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/keshon/sirsoundsalot/internal/music/player"
	"github.com/keshon/sirsoundsalot/internal/music/queue"
	"github.com/keshon/sirsoundsalot/internal/storage"
)

func TestPlayJoinsResolvesAndEnqueues(t *testing.T) {
	f := newFixture(t)
	f.player.started = true

	f.mustRun(t, "-play never gonna give")

	if len(f.player.joined) != 1 || f.player.joined[0] != "vc1" {
		t.Fatalf("expected join of vc1, got %v", f.player.joined)
	}
	if strings.Join(f.resolver.tokens, "|") != "never|gonna|give" {
		t.Fatalf("resolver got %v", f.resolver.tokens)
	}
	if len(f.player.enqueued) != 1 || f.player.enqueued[0].Title != "Song" {
		t.Fatalf("unexpected enqueue %v", f.player.enqueued)
	}
	f.expectTitles(t, "Loading")
}

func TestPlayIntoBusyQueueLeavesReplyToScheduler(t *testing.T) {
	f := newFixture(t)
	f.player.session = "vc1"

	f.mustRun(t, "-p song b")

	if len(f.player.enqueued) != 1 {
		t.Fatalf("expected one enqueue got %d", len(f.player.enqueued))
	}
	f.expectTitles(t)
}

func TestPlayVoicePolicy(t *testing.T) {
	t.Run("caller not in voice", func(t *testing.T) {
		f := newFixture(t)
		delete(f.voice, "u1")

		f.mustRun(t, "-play song")

		if len(f.player.joined) != 0 || len(f.player.enqueued) != 0 {
			t.Fatalf("nothing may happen without a voice channel")
		}
		f.expectTitles(t, "Not in voice")
	})

	t.Run("bot in another channel", func(t *testing.T) {
		f := newFixture(t)
		f.player.session = "vc2"

		f.mustRun(t, "-play song")

		if len(f.player.joined) != 0 || len(f.player.enqueued) != 0 {
			t.Fatalf("session must not move to the caller's channel")
		}
		f.expectTitles(t, "Busy")
	})

	t.Run("join race lost", func(t *testing.T) {
		f := newFixture(t)
		f.player.joinErr = player.ErrDifferentChannel

		f.mustRun(t, "-play song")

		if len(f.player.enqueued) != 0 {
			t.Fatalf("must not enqueue after a rejected join")
		}
		f.expectTitles(t, "Busy")
	})
}

func TestPlayWithoutArgsShowsUsage(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "-play")
	f.expectTitles(t, "Usage")
	if len(f.player.joined) != 0 {
		t.Fatalf("usage must not join")
	}
}

func TestPlayResolutionFailure(t *testing.T) {
	f := newFixture(t)
	f.resolver.err = errBoom

	f.mustRun(t, "-play zzzz")

	if len(f.player.enqueued) != 0 {
		t.Fatalf("unresolved track must not be queued")
	}
	f.expectTitles(t, "Not Found")
}

func TestRemove(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		removeErr error
		calls     []int
		title     string
	}{
		{name: "not a number", line: "-remove two", title: "Usage"},
		{name: "missing position", line: "-remove", title: "Usage"},
		{name: "queued track", line: "-remove 3", calls: []int{3}, title: "Removed"},
		{name: "out of range", line: "-rm 9", removeErr: queue.ErrInvalidIndex, calls: []int{9}, title: "Invalid Position"},
		{name: "head is a skip", line: "-remove 1", calls: []int{1}},
		{name: "head while idle", line: "-remove 1", removeErr: player.ErrNothingPlaying, calls: []int{1}, title: "Nothing Playing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.player.removeErr = tt.removeErr
			f.player.removed = queue.Track{Title: "C", URL: "https://example.com/c"}

			f.mustRun(t, tt.line)

			if len(f.player.removes) != len(tt.calls) {
				t.Fatalf("expected remove calls %v got %v", tt.calls, f.player.removes)
			}
			for i := range tt.calls {
				if f.player.removes[i] != tt.calls[i] {
					t.Fatalf("expected remove calls %v got %v", tt.calls, f.player.removes)
				}
			}
			if tt.title == "" {
				f.expectTitles(t)
			} else {
				f.expectTitles(t, tt.title)
			}
		})
	}
}

func TestSwap(t *testing.T) {
	f := newFixture(t)
	f.player.render = "1. A\n2. C\n3. B"

	f.mustRun(t, "-swap 2 3")
	if len(f.player.swaps) != 1 || f.player.swaps[0] != [2]int{2, 3} {
		t.Fatalf("unexpected swaps %v", f.player.swaps)
	}

	f.player.swapErr = queue.ErrInvalidIndex
	f.mustRun(t, "-swap 1 3")
	f.mustRun(t, "-swap 2")

	f.expectTitles(t, "Swapped", "Invalid Position", "Usage")
}

func TestSkip(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "-s")
	f.player.skipErr = player.ErrNothingPlaying
	f.mustRun(t, "-skip")

	if f.player.skips != 2 {
		t.Fatalf("expected 2 skips got %d", f.player.skips)
	}
	f.expectTitles(t, "Nothing Playing")
}

func TestDie(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "-die")
	f.player.disconnectErr = player.ErrNotConnected
	f.mustRun(t, "-leave")

	if f.player.disconnects != 2 {
		t.Fatalf("expected 2 disconnects got %d", f.player.disconnects)
	}
	f.expectTitles(t, "Not Connected")
}

func TestUnexpectedErrorsPropagate(t *testing.T) {
	f := newFixture(t)
	f.player.disconnectErr = errBoom
	if err := f.run(t, f.context(), "-die"); !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom got %v", err)
	}
}

func TestQueueShowsRenderedQueueOnce(t *testing.T) {
	f := newFixture(t)
	f.player.render = "1. A (now playing)\n2. B"
	delete(f.voice, "u1") // reading the queue needs no voice channel

	f.mustRun(t, "-q")

	f.expectTitles(t, "Queue")
	desc := f.responder.replies[0].embed.Description
	if desc != f.player.render {
		t.Fatalf("expected the rendered queue as is got %q", desc)
	}
}

func TestCommandsAreLogged(t *testing.T) {
	f := newFixture(t)
	f.player.started = true

	f.mustRun(t, "-play some song")
	f.mustRun(t, "-queue")

	if len(f.history.commands) != 2 {
		t.Fatalf("expected 2 history records got %d", len(f.history.commands))
	}
	rec := f.history.commands[0]
	if rec.Command != "play" || rec.Param != "some song" || rec.UserID != "u1" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestDirectMessagesAreIgnored(t *testing.T) {
	f := newFixture(t)
	mc := f.context()
	mc.GuildID = ""

	if err := f.run(t, mc, "-play song"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(f.player.joined) != 0 || len(f.history.commands) != 0 {
		t.Fatalf("direct messages must not reach the player")
	}
	f.expectTitles(t)
}

func TestHelpListsEveryCommand(t *testing.T) {
	f := newFixture(t)
	f.mustRun(t, "-help")

	desc := f.responder.replies[0].embed.Description
	for _, want := range []string{"`-play <link or search words>`", "`-swap <position> <position>`", "`-die`", "aliases: leave, stop"} {
		if !strings.Contains(desc, want) {
			t.Fatalf("help is missing %q:\n%s", want, desc)
		}
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	f.history.tracks = []storage.TrackHistoryRecord{
		{Title: "Old", URL: "https://example.com/old", PlayedAt: at},
		{Title: "New", URL: "https://example.com/new", PlayedAt: at.Add(time.Hour)},
	}

	f.mustRun(t, "-history")

	desc := f.responder.replies[0].embed.Description
	if strings.Index(desc, "New") > strings.Index(desc, "Old") {
		t.Fatalf("newest track should come first:\n%s", desc)
	}
}
