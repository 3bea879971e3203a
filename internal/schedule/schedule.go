package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler starts tasks on a clock.
type Scheduler struct {
	clock clock.Clock
}

// New returns a scheduler on c, or on the wall clock when c is nil.
func New(c clock.Clock) *Scheduler {
	if c == nil {
		c = clock.New()
	}
	return &Scheduler{clock: c}
}

// Clock returns the underlying clock.
func (s *Scheduler) Clock() clock.Clock { return s.clock }

// Now returns the current time on the scheduler's clock.
func (s *Scheduler) Now() time.Time { return s.clock.Now() }

// Every runs fn each interval, first after one interval has elapsed, until
// fn returns false or the task is stopped.
func (s *Scheduler) Every(interval time.Duration, fn func(ctx context.Context) bool) *Task {
	t := newTask(s.clock, interval, fn)
	t.mu.Lock()
	t.timer = s.clock.AfterFunc(interval, t.tick)
	t.mu.Unlock()
	return t
}

// EveryNow is Every with an additional immediate first run on a separate
// goroutine.
func (s *Scheduler) EveryNow(interval time.Duration, fn func(ctx context.Context) bool) *Task {
	t := newTask(s.clock, interval, fn)
	go t.tick()
	return t
}

// Task is a handle on scheduled work.
type Task struct {
	clock    clock.Clock
	interval time.Duration
	fn       func(ctx context.Context) bool

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timer   *clock.Timer
	stopped bool
	done    chan struct{}
}

func newTask(c clock.Clock, interval time.Duration, fn func(ctx context.Context) bool) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	return &Task{
		clock:    c,
		interval: interval,
		fn:       fn,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// tick performs one run and arms the next one before calling fn, so the
// following run is already scheduled while fn is executing.
func (t *Task) tick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.timer = t.clock.AfterFunc(t.interval, t.tick)
	if !t.fn(t.ctx) {
		t.halt()
	}
}

// Stop cancels the task. It is idempotent, and once it returns fn will not
// run again.
func (t *Task) Stop() {
	t.cancel()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.halt()
}

// Done is closed when the task ends, whether by Stop or by fn returning false.
func (t *Task) Done() <-chan struct{} { return t.done }

// halt must be called with t.mu held.
func (t *Task) halt() {
	if t.stopped {
		return
	}
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.cancel()
	close(t.done)
}
