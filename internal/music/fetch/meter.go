package fetch

import (
	"context"
	"io"
	"sync"
	"time"
)

// meter forwards bytes to w while feeding the rate floor. When the floor
// trips it aborts the transfer through abort and fails the write.
type meter struct {
	w     io.Writer
	now   func() time.Time
	abort context.CancelCauseFunc

	mu    sync.Mutex
	floor *rateFloor
	err   error
}

func newMeter(w io.Writer, floor *rateFloor, now func() time.Time, abort context.CancelCauseFunc) *meter {
	return &meter{w: w, floor: floor, now: now, abort: abort}
}

func (m *meter) Write(p []byte) (int, error) {
	if err := m.observe(len(p)); err != nil {
		return 0, err
	}
	return m.w.Write(p)
}

// check runs the floor without new data; used by the stall watchdog.
func (m *meter) check() error {
	return m.observe(0)
}

func (m *meter) observe(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	if err := m.floor.Observe(m.now(), n); err != nil {
		m.err = err
		m.abort(err)
		return err
	}
	return nil
}

func (m *meter) total() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.floor.total
}
