package fetch

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		MinRate:      10_000,
		MinBytes:     50_000,
		Window:       5 * time.Second,
		StallTimeout: 8 * time.Second,
	}
}

// feed writes chunk bytes every step until d has passed and returns the
// first error along with the time it happened.
func feed(r *rateFloor, from time.Time, d, step time.Duration, chunk int) (time.Time, error) {
	now := from
	for now.Sub(from) < d {
		now = now.Add(step)
		if err := r.Observe(now, chunk); err != nil {
			return now, err
		}
	}
	return now, nil
}

func TestFastTransferPasses(t *testing.T) {
	r := newRateFloor(testConfig(), t0)
	if _, err := feed(r, t0, 60*time.Second, 50*time.Millisecond, 4096); err != nil {
		t.Fatalf("fast transfer aborted: %v", err)
	}
	if rate := r.Rate(t0.Add(60 * time.Second)); rate < 80_000 {
		t.Fatalf("unexpected rate %.0f", rate)
	}
}

func TestSlowAfterThresholdAborts(t *testing.T) {
	r := newRateFloor(testConfig(), t0)

	now, err := feed(r, t0, 6*time.Second, 100*time.Millisecond, 2048)
	if err != nil {
		t.Fatalf("fast phase aborted: %v", err)
	}

	// 1 KB/s is well under the 10 KB/s floor.
	at, err := feed(r, now, 30*time.Second, time.Second, 1024)
	if !errors.Is(err, ErrSlowTransfer) {
		t.Fatalf("expected ErrSlowTransfer got %v", err)
	}
	if at.Sub(now) > 6*time.Second {
		t.Fatalf("floor tripped too late: %s after slowdown", at.Sub(now))
	}
}

func TestSlowBeforeThresholdOnlyStallCounts(t *testing.T) {
	r := newRateFloor(testConfig(), t0)

	// A trickle below the byte threshold is tolerated.
	now, err := feed(r, t0, 40*time.Second, time.Second, 100)
	if err != nil {
		t.Fatalf("trickle aborted before threshold: %v", err)
	}

	if err := r.Check(now.Add(7 * time.Second)); err != nil {
		t.Fatalf("short pause aborted: %v", err)
	}
	if err := r.Check(now.Add(9 * time.Second)); !errors.Is(err, ErrSlowTransfer) {
		t.Fatalf("expected stall abort got %v", err)
	}
}

func TestStallAfterThresholdAborts(t *testing.T) {
	r := newRateFloor(testConfig(), t0)
	now, err := feed(r, t0, 6*time.Second, 100*time.Millisecond, 4096)
	if err != nil {
		t.Fatalf("fast phase aborted: %v", err)
	}
	if err := r.Check(now.Add(10 * time.Second)); !errors.Is(err, ErrSlowTransfer) {
		t.Fatalf("expected abort after silence got %v", err)
	}
}

func TestSamplesStayBounded(t *testing.T) {
	r := newRateFloor(testConfig(), t0)
	if _, err := feed(r, t0, 60*time.Second, time.Millisecond, 64); err != nil {
		t.Fatalf("aborted: %v", err)
	}
	// window / granularity plus the baseline and the open sample
	if n := len(r.samples); n > 60 {
		t.Fatalf("too many samples kept: %d", n)
	}
}

func TestMeterAbortsOnce(t *testing.T) {
	cfg := testConfig()
	now := t0
	clock := func() time.Time { return now }

	var causes []error
	abort := func(err error) { causes = append(causes, err) }

	var sink bytes.Buffer
	m := newMeter(&sink, newRateFloor(cfg, t0), clock, context.CancelCauseFunc(abort))

	if _, err := m.Write([]byte("pcm")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if sink.String() != "pcm" {
		t.Fatalf("bytes not forwarded")
	}

	now = now.Add(cfg.StallTimeout + time.Second)
	if err := m.check(); !errors.Is(err, ErrSlowTransfer) {
		t.Fatalf("expected stall got %v", err)
	}
	if _, err := m.Write([]byte("more")); !errors.Is(err, ErrSlowTransfer) {
		t.Fatalf("writes after abort must fail, got %v", err)
	}
	if len(causes) != 1 || !errors.Is(causes[0], ErrSlowTransfer) {
		t.Fatalf("expected a single abort, got %v", causes)
	}
	if m.total() != 3 {
		t.Fatalf("expected 3 bytes counted got %d", m.total())
	}
}

func TestPathSanitisesKey(t *testing.T) {
	f := &Fetcher{cfg: Config{Dir: "cache"}}
	if got, want := f.Path("1234"), "cache/1234.pcm"; got != want {
		t.Fatalf("expected %s got %s", want, got)
	}
	if got, want := f.Path("../etc/passwd"), "cache/___etc_passwd.pcm"; got != want {
		t.Fatalf("expected %s got %s", want, got)
	}
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{limit: 5}
	tb.Write([]byte("hello "))
	tb.Write([]byte("world"))
	if got := tb.String(); got != "world" {
		t.Fatalf("expected tail 'world' got %q", got)
	}
}
