package countdown

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

type recorder struct {
	labels chan string
}

func newRecorder() *recorder {
	return &recorder{labels: make(chan string, 64)}
}

func (r *recorder) render(label string) {
	r.labels <- label
}

func (r *recorder) next(t *testing.T) string {
	t.Helper()
	select {
	case l := <-r.labels:
		return l
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a label")
		return ""
	}
}

func (r *recorder) none(t *testing.T) {
	t.Helper()
	select {
	case l := <-r.labels:
		t.Fatalf("unexpected extra label %q", l)
	case <-time.After(50 * time.Millisecond):
	}
}

func newMock() *clock.Mock {
	m := clock.NewMock()
	m.Set(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	return m
}

func TestLabel(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if got := Label(now.Add(185*time.Second), now); got != "Self-destruct in 3:05" {
		t.Fatalf("185s: got %q", got)
	}
	if got := Label(now.Add(-time.Second), now); got != OffLabel {
		t.Fatalf("past deadline: got %q", got)
	}
	if got := Label(now, now); got != OffLabel {
		t.Fatalf("deadline == now: got %q", got)
	}
	// Fractional seconds are truncated.
	if got := Label(now.Add(59999*time.Millisecond), now); got != "Self-destruct in 0:59" {
		t.Fatalf("59.999s: got %q", got)
	}
	if got := Label(now.Add(500*time.Millisecond), now); got != "Self-destruct in 0:00" {
		t.Fatalf("0.5s: got %q", got)
	}
	if got := Label(now.Add(61*time.Minute+9*time.Second), now); got != "Self-destruct in 61:09" {
		t.Fatalf("61m9s: got %q", got)
	}
}

func TestStartNilDeadlineIsOff(t *testing.T) {
	rec := newRecorder()
	timer := New(newMock(), rec.render)

	timer.Start(nil)
	if got := rec.next(t); got != OffLabel {
		t.Fatalf("expected %q, got %q", OffLabel, got)
	}
	if timer.State() != Off {
		t.Fatalf("expected Off, got %s", timer.State())
	}
	if n := timer.active.Load(); n != 0 {
		t.Fatalf("expected no tick goroutine, got %d", n)
	}
}

func TestStartPastDeadlineIsOff(t *testing.T) {
	mock := newMock()
	rec := newRecorder()
	timer := New(mock, rec.render)

	past := mock.Now().Add(-time.Second)
	timer.Start(&past)
	if got := rec.next(t); got != OffLabel {
		t.Fatalf("expected %q, got %q", OffLabel, got)
	}
	if timer.State() != Off {
		t.Fatalf("expected Off, got %s", timer.State())
	}
}

func TestCountdownTicksAndStopsItself(t *testing.T) {
	mock := newMock()
	rec := newRecorder()
	timer := New(mock, rec.render)

	deadline := mock.Now().Add(2500 * time.Millisecond)
	timer.Start(&deadline)

	if got := rec.next(t); got != "Self-destruct in 0:02" {
		t.Fatalf("initial: got %q", got)
	}
	if timer.State() != Running {
		t.Fatalf("expected Running")
	}

	mock.Add(time.Second)
	if got := rec.next(t); got != "Self-destruct in 0:01" {
		t.Fatalf("after 1s: got %q", got)
	}
	mock.Add(time.Second)
	if got := rec.next(t); got != "Self-destruct in 0:00" {
		t.Fatalf("after 2s: got %q", got)
	}
	mock.Add(time.Second)
	if got := rec.next(t); got != OffLabel {
		t.Fatalf("after 3s: got %q", got)
	}

	waitInactive(t, timer)
	if timer.State() != Off {
		t.Fatalf("expected Off after deadline")
	}

	mock.Add(5 * time.Second)
	rec.none(t)
}

func TestStartTwiceKeepsOneTicker(t *testing.T) {
	mock := newMock()
	rec := newRecorder()
	timer := New(mock, rec.render)

	first := mock.Now().Add(10 * time.Minute)
	second := mock.Now().Add(185 * time.Second)

	timer.Start(&first)
	if got := rec.next(t); got != "Self-destruct in 10:00" {
		t.Fatalf("first start: got %q", got)
	}
	timer.Start(&second)
	if got := rec.next(t); got != "Self-destruct in 3:05" {
		t.Fatalf("second start: got %q", got)
	}

	waitActive(t, timer, 1)

	mock.Add(time.Second)
	if got := rec.next(t); got != "Self-destruct in 3:04" {
		t.Fatalf("tick: got %q", got)
	}
	rec.none(t)
}

func TestStopCancelsTicker(t *testing.T) {
	mock := newMock()
	rec := newRecorder()
	timer := New(mock, rec.render)

	deadline := mock.Now().Add(time.Minute)
	timer.Start(&deadline)
	rec.next(t)

	timer.Stop()
	if got := rec.next(t); got != OffLabel {
		t.Fatalf("stop: got %q", got)
	}
	waitInactive(t, timer)

	mock.Add(2 * time.Second)
	rec.none(t)
}

func waitActive(t *testing.T, timer *Timer, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if timer.active.Load() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d active tickers, got %d", want, timer.active.Load())
}

func waitInactive(t *testing.T, timer *Timer) {
	t.Helper()
	waitActive(t, timer, 0)
}
