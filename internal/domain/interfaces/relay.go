package interfaces

import (
	"context"

	domaintypes "securechat/internal/domain/types"
)

// Watcher emits a signal whenever a resource may have changed. The returned
// channel is closed when the watch ends, either because ctx was cancelled or
// because the underlying transport failed.
type Watcher interface {
	Watch(ctx context.Context, res domaintypes.Resource) (<-chan struct{}, error)
}

// Subscription is a live delivery registration.
type Subscription interface {
	// Unsubscribe is idempotent. Once it returns, the callback will not run again.
	Unsubscribe()
}

// Channel delivers fresh state of a resource to a callback, either on every
// change (push) or on a fixed interval (poll).
type Channel interface {
	Subscribe(ctx context.Context, res domaintypes.Resource, fetch func(ctx context.Context)) (Subscription, error)
}
