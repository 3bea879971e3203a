package delivery

import (
	"context"
	"sync"

	"securechat/internal/domain"
	"securechat/internal/logging"
)

// Push delivers on change notifications from a Watcher.
type Push struct {
	watcher  domain.Watcher
	fallback domain.Channel
	log      logging.Logger
}

// NewPush returns a push channel that falls back to fallback whenever the
// watch is unavailable.
func NewPush(w domain.Watcher, fallback domain.Channel, log logging.Logger) *Push {
	return &Push{watcher: w, fallback: fallback, log: logging.OrNop(log)}
}

// Subscribe opens a watch on res. The fetch callback runs once right away and
// then after every change signal.
func (p *Push) Subscribe(ctx context.Context, res domain.Resource, fetch func(ctx context.Context)) (domain.Subscription, error) {
	wctx, cancel := context.WithCancel(context.Background())
	events, err := p.watcher.Watch(wctx, res)
	if err != nil {
		cancel()
		p.log.Warn(ctx, "push watch unavailable, polling", "resource", res.String(), "err", err)
		return p.fallback.Subscribe(ctx, res, fetch)
	}

	s := &pushSubscription{ctx: wctx, cancel: cancel, fetch: fetch}
	go s.run(events, func() {
		p.log.Warn(wctx, "push watch dropped, polling", "resource", res.String())
		sub, err := p.fallback.Subscribe(wctx, res, s.deliver)
		if err != nil {
			p.log.Error(wctx, "fallback subscribe failed", "resource", res.String(), "err", err)
			return
		}
		s.adopt(sub)
	})
	return s, nil
}

type pushSubscription struct {
	ctx    context.Context
	cancel context.CancelFunc
	fetch  func(ctx context.Context)

	mu       sync.Mutex
	stopped  bool
	fallback domain.Subscription
	once     sync.Once
}

func (s *pushSubscription) run(events <-chan struct{}, onDrop func()) {
	s.deliver(s.ctx)
	for range events {
		s.deliver(s.ctx)
	}
	if s.ctx.Err() == nil {
		onDrop()
	}
}

// deliver runs fetch under the subscription lock so Unsubscribe can wait for
// it. Fallback polling goes through here too.
func (s *pushSubscription) deliver(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.fetch(ctx)
}

func (s *pushSubscription) adopt(sub domain.Subscription) {
	s.mu.Lock()
	if !s.stopped {
		s.fallback = sub
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	sub.Unsubscribe()
}

// Unsubscribe closes the watch and any fallback subscription.
func (s *pushSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		s.stopped = true
		fb := s.fallback
		s.fallback = nil
		s.mu.Unlock()
		if fb != nil {
			fb.Unsubscribe()
		}
	})
}

var _ domain.Channel = (*Push)(nil)
