package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) (*Storage, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datastore.json")
	s, err := New(path)
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	return s, path
}

func TestCommandHistoryIsCapped(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	for i := 0; i < commandHistoryLimit+5; i++ {
		err := s.AppendCommandToHistory("g1", CommandHistoryRecord{Command: fmt.Sprintf("cmd%d", i), Datetime: time.Now()})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	history, err := s.FetchCommandHistory("g1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(history) != commandHistoryLimit {
		t.Fatalf("expected %d records got %d", commandHistoryLimit, len(history))
	}
	if history[0].Command != "cmd5" || history[len(history)-1].Command != fmt.Sprintf("cmd%d", commandHistoryLimit+4) {
		t.Fatalf("oldest records should be dropped first: %s..%s", history[0].Command, history[len(history)-1].Command)
	}
}

func TestTrackHistoryPerGuild(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	for i := 0; i < tracksHistoryLimit+3; i++ {
		if err := s.AppendTrackToHistory("g1", TrackHistoryRecord{Title: fmt.Sprintf("t%d", i)}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.AppendTrackToHistory("g2", TrackHistoryRecord{Title: "other"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	g1, _ := s.FetchTrackHistory("g1")
	if len(g1) != tracksHistoryLimit || g1[0].Title != "t3" {
		t.Fatalf("unexpected g1 history %v", g1)
	}
	g2, _ := s.FetchTrackHistory("g2")
	if len(g2) != 1 || g2[0].Title != "other" {
		t.Fatalf("unexpected g2 history %v", g2)
	}

	empty, err := s.FetchTrackHistory("g3")
	if err != nil || len(empty) != 0 {
		t.Fatalf("unknown guild should have no history, got %v (%v)", empty, err)
	}
}

func TestHistorySurvivesReopen(t *testing.T) {
	s, path := openTemp(t)
	played := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := s.AppendTrackToHistory("g1", TrackHistoryRecord{URL: "https://youtu.be/abc", Title: "Song", PlayedAt: played}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	history, err := reopened.FetchTrackHistory("g1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(history) != 1 || history[0].Title != "Song" || !history[0].PlayedAt.Equal(played) {
		t.Fatalf("history not persisted: %+v", history)
	}
}
