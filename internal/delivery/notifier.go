package delivery

import (
	"context"
	"sync"

	"securechat/internal/domain"
)

// Notifier fans change signals out to watchers of a resource. It implements
// domain.Watcher. Signals coalesce: a slow reader sees one pending signal,
// never a backlog.
type Notifier struct {
	mu       sync.Mutex
	watchers map[domain.Resource]map[chan struct{}]struct{}
}

// NewNotifier returns a notifier with no watchers.
func NewNotifier() *Notifier {
	return &Notifier{watchers: make(map[domain.Resource]map[chan struct{}]struct{})}
}

// Watch returns a channel that receives a signal after each Notify of res.
// The channel is closed once ctx is done.
func (n *Notifier) Watch(ctx context.Context, res domain.Resource) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	n.mu.Lock()
	set, ok := n.watchers[res]
	if !ok {
		set = make(map[chan struct{}]struct{})
		n.watchers[res] = set
	}
	set[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		delete(n.watchers[res], ch)
		if len(n.watchers[res]) == 0 {
			delete(n.watchers, res)
		}
		close(ch)
		n.mu.Unlock()
	}()
	return ch, nil
}

// Notify signals every watcher of each resource.
func (n *Notifier) Notify(resources ...domain.Resource) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, res := range resources {
		for ch := range n.watchers[res] {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// Watching reports how many watchers res has.
func (n *Notifier) Watching(res domain.Resource) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.watchers[res])
}

var _ domain.Watcher = (*Notifier)(nil)
