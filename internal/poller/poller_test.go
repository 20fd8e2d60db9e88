package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/notepid/twilight_messenger/internal/logging"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPollerRunsTasksOnInterval(t *testing.T) {
	logging.Discard()
	mock := clock.NewMock()
	p := New(mock, nil)

	var fast, slow atomic.Int32
	p.Add("fast", 2*time.Second, func(ctx context.Context) error { fast.Add(1); return nil })
	p.Add("slow", 5*time.Second, func(ctx context.Context) error { slow.Add(1); return nil })

	p.Start(context.Background())
	defer p.Stop()

	if fast.Load() != 0 || slow.Load() != 0 {
		t.Fatalf("tasks should not run before the first interval")
	}

	mock.Add(2 * time.Second)
	waitFor(t, "first fast tick", func() bool { return fast.Load() == 1 })

	mock.Add(2 * time.Second)
	waitFor(t, "second fast tick", func() bool { return fast.Load() == 2 })

	mock.Add(2 * time.Second)
	waitFor(t, "slow tick", func() bool { return slow.Load() == 1 && fast.Load() == 3 })
}

func TestPollerContinuesAfterError(t *testing.T) {
	logging.Discard()
	mock := clock.NewMock()

	var reported atomic.Int32
	p := New(mock, func(task string, err error) {
		if task == "flaky" {
			reported.Add(1)
		}
	})

	var runs atomic.Int32
	p.Add("flaky", time.Second, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	})

	p.Start(context.Background())
	defer p.Stop()

	for i := 1; i <= 3; i++ {
		mock.Add(time.Second)
		want := int32(i)
		waitFor(t, "tick after error", func() bool { return runs.Load() == want && reported.Load() == want })
	}
}

func TestPollerStop(t *testing.T) {
	logging.Discard()
	mock := clock.NewMock()
	p := New(mock, nil)

	var runs atomic.Int32
	p.Add("task", time.Second, func(ctx context.Context) error { runs.Add(1); return nil })

	p.Start(context.Background())
	mock.Add(time.Second)
	waitFor(t, "first tick", func() bool { return runs.Load() == 1 })

	p.Stop()
	mock.Add(3 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if n := runs.Load(); n != 1 {
		t.Fatalf("expected no runs after Stop, got %d", n)
	}

	// Stop is idempotent.
	p.Stop()
}
