package poller

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
)

// Task is one periodic fetch.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Poller runs each task on its own fixed-interval ticker. A failing tick is
// reported and the next tick runs as usual; there is no retry or backoff.
// Ticks of the same task never overlap: a tick that arrives while the
// previous run is still in flight is dropped.
type Poller struct {
	clock   clock.Clock
	onError func(task string, err error)

	tasks []Task

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a poller. onError may be nil.
func New(clk clock.Clock, onError func(task string, err error)) *Poller {
	if clk == nil {
		clk = clock.New()
	}
	return &Poller{clock: clk, onError: onError}
}

// Add registers a task. Tasks added after Start are not run.
func (p *Poller) Add(name string, every time.Duration, fn func(ctx context.Context) error) {
	p.tasks = append(p.tasks, Task{Name: name, Interval: every, Run: fn})
}

// Start launches every task. The first run of each happens one interval
// after Start. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)

	for _, task := range p.tasks {
		// Tickers are created here, not in the goroutine, so a clock
		// advanced right after Start already reaches them.
		ticker := p.clock.Ticker(task.Interval)
		p.wg.Add(1)
		go p.loop(ctx, task, ticker)
	}
	log.Debug().Int("tasks", len(p.tasks)).Msg("poller started")
}

// Stop cancels all tasks and waits for in-flight runs to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	log.Debug().Msg("poller stopped")
}

func (p *Poller) loop(ctx context.Context, task Task, ticker *clock.Ticker) {
	defer p.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := task.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("task", task.Name).Msg("poll failed")
			if p.onError != nil {
				p.onError(task.Name, err)
			}
		}
	}
}
