// Package outbox queues plaintext that was typed before the session became
// secure.
package outbox

import (
	"strings"
	"sync"
)

// Outbox is a FIFO of pending plaintexts. It is safe for concurrent use.
type Outbox struct {
	mu    sync.Mutex
	items []string
}

// New returns an empty outbox.
func New() *Outbox { return &Outbox{} }

// Enqueue appends text. Blank text is dropped and Enqueue reports false.
func (o *Outbox) Enqueue(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	o.mu.Lock()
	o.items = append(o.items, text)
	o.mu.Unlock()
	return true
}

// Drain removes and returns everything queued, oldest first.
func (o *Outbox) Drain() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.items
	o.items = nil
	return out
}

// Requeue puts items back at the front, ahead of anything queued since.
func (o *Outbox) Requeue(items []string) {
	if len(items) == 0 {
		return
	}
	o.mu.Lock()
	o.items = append(append([]string(nil), items...), o.items...)
	o.mu.Unlock()
}

// Len reports how many items are waiting.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.items)
}
