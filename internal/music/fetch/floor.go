package fetch

import (
	"fmt"
	"math"
	"time"
)

// sampleGranularity caps how many rate samples a window holds.
const sampleGranularity = 100 * time.Millisecond

type sample struct {
	at    time.Time
	total int64
}

// rateFloor decides whether a transfer is too slow to keep. Before minBytes
// have arrived only a full stall counts; after that the rate over the
// trailing window must stay at or above minRate.
type rateFloor struct {
	minRate  float64 // bytes per second
	minBytes int64
	window   time.Duration
	stall    time.Duration

	start   time.Time
	last    time.Time
	total   int64
	samples []sample
}

func newRateFloor(cfg Config, now time.Time) *rateFloor {
	return &rateFloor{
		minRate:  float64(cfg.MinRate),
		minBytes: cfg.MinBytes,
		window:   cfg.Window,
		stall:    cfg.StallTimeout,
		start:    now,
		last:     now,
		samples:  []sample{{at: now}},
	}
}

// Observe records n bytes arriving at now and reports whether the transfer
// should be aborted.
func (r *rateFloor) Observe(now time.Time, n int) error {
	if n <= 0 {
		return r.Check(now)
	}
	r.total += int64(n)
	r.last = now

	// The newest sample stays open until it is sampleGranularity past the
	// one before it.
	if k := len(r.samples); k > 1 && r.samples[k-1].at.Sub(r.samples[k-2].at) < sampleGranularity {
		r.samples[k-1] = sample{at: now, total: r.total}
	} else {
		r.samples = append(r.samples, sample{at: now, total: r.total})
	}
	return r.Check(now)
}

// Check evaluates the floor at now without new data.
func (r *rateFloor) Check(now time.Time) error {
	r.trim(now)

	if r.total < r.minBytes {
		if idle := now.Sub(r.last); r.stall > 0 && idle > r.stall {
			return fmt.Errorf("%w: no data for %s", ErrSlowTransfer, idle.Round(time.Second))
		}
		return nil
	}

	if r.minRate <= 0 || r.window <= 0 || now.Sub(r.start) < r.window {
		return nil
	}
	if rate := r.Rate(now); rate < r.minRate {
		return fmt.Errorf("%w: %.0f B/s, floor is %.0f B/s", ErrSlowTransfer, rate, r.minRate)
	}
	return nil
}

// Rate is the average rate in bytes per second over the trailing window.
func (r *rateFloor) Rate(now time.Time) float64 {
	r.trim(now)
	base := r.samples[0]
	elapsed := now.Sub(base.at).Seconds()
	if elapsed <= 0 {
		return math.Inf(1)
	}
	return float64(r.total-base.total) / elapsed
}

// trim keeps the newest sample at or before the window start as baseline
// and drops everything older.
func (r *rateFloor) trim(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i+1 < len(r.samples) && !r.samples[i+1].at.After(cutoff) {
		i++
	}
	if i > 0 {
		r.samples = append(r.samples[:0], r.samples[i:]...)
	}
}
