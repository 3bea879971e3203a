package delivery

import (
	"context"
	"time"

	"securechat/internal/domain"
	"securechat/internal/schedule"
)

// Poll delivers by re-fetching on a fixed interval.
type Poll struct {
	sched    *schedule.Scheduler
	interval time.Duration
}

// NewPoll returns a polling channel. A non-positive interval uses DefaultPollInterval.
func NewPoll(sched *schedule.Scheduler, interval time.Duration) *Poll {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poll{sched: sched, interval: interval}
}

// Subscribe fetches immediately and then every interval until unsubscribed.
func (p *Poll) Subscribe(_ context.Context, _ domain.Resource, fetch func(ctx context.Context)) (domain.Subscription, error) {
	task := p.sched.EveryNow(p.interval, func(ctx context.Context) bool {
		fetch(ctx)
		return true
	})
	return taskSubscription{task: task}, nil
}

type taskSubscription struct {
	task *schedule.Task
}

func (s taskSubscription) Unsubscribe() { s.task.Stop() }

var _ domain.Channel = (*Poll)(nil)
