package countdown

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// OffLabel is shown whenever no deadline is pending.
const OffLabel = "Self-destruct: OFF"

// State is the countdown state.
type State int

const (
	Off State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "off"
}

// Label renders the remaining time until deadline as seen at now.
// Fractional seconds are truncated; at or past the deadline it returns OffLabel.
func Label(deadline, now time.Time) string {
	diff := deadline.Sub(now)
	if diff <= 0 {
		return OffLabel
	}
	total := int64(diff / time.Second)
	return fmt.Sprintf("Self-destruct in %d:%02d", total/60, total%60)
}

// Timer keeps at most one recurring per-second tick alive. Every Start or
// Stop cancels the previous tick before doing anything else.
type Timer struct {
	clock  clock.Clock
	render func(label string)

	mu     sync.Mutex
	state  State
	ticker *clock.Ticker
	stop   chan struct{}

	active atomic.Int32 // live tick goroutines
}

// New creates a timer. render receives every label; it is called with the
// timer's lock held and must not block or call back into the Timer.
func New(clk clock.Clock, render func(label string)) *Timer {
	if clk == nil {
		clk = clock.New()
	}
	return &Timer{clock: clk, render: render}
}

// Start cancels any running countdown and evaluates deadline. A nil or
// past deadline renders OffLabel and leaves the timer Off.
func (t *Timer) Start(deadline *time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()

	if deadline == nil {
		t.state = Off
		t.render(OffLabel)
		return
	}

	label := Label(*deadline, t.clock.Now())
	if label == OffLabel {
		t.state = Off
		t.render(OffLabel)
		return
	}

	t.state = Running
	t.render(label)

	ticker := t.clock.Ticker(time.Second)
	stop := make(chan struct{})
	t.ticker, t.stop = ticker, stop

	t.active.Add(1)
	go t.run(*deadline, ticker, stop)
}

// Stop cancels the countdown and renders OffLabel.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancelLocked()
	t.state = Off
	t.render(OffLabel)
}

// State reports whether a countdown is running.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Timer) cancelLocked() {
	if t.ticker == nil {
		return
	}
	t.ticker.Stop()
	close(t.stop)
	t.ticker, t.stop = nil, nil
}

func (t *Timer) run(deadline time.Time, ticker *clock.Ticker, stop chan struct{}) {
	defer t.active.Add(-1)

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		t.mu.Lock()
		// A newer Start may have replaced this tick while it waited for the lock.
		if t.stop != stop {
			t.mu.Unlock()
			return
		}

		label := Label(deadline, t.clock.Now())
		if label == OffLabel {
			ticker.Stop()
			t.ticker, t.stop = nil, nil
			t.state = Off
			t.render(OffLabel)
			t.mu.Unlock()
			return
		}
		t.render(label)
		t.mu.Unlock()
	}
}
