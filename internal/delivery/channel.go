package delivery

import (
	"context"
	"fmt"
	"time"

	"securechat/internal/domain"
	"securechat/internal/logging"
	"securechat/internal/schedule"
)

// Mode selects the delivery strategy.
type Mode string

const (
	// ModePoll re-fetches on an interval.
	ModePoll Mode = "poll"
	// ModePush fetches on change notifications.
	ModePush Mode = "push"
)

// DefaultPollInterval is the re-fetch period for polling subscriptions.
const DefaultPollInterval = time.Second

// New builds the channel for mode. Push without a watcher degrades to poll.
func New(mode Mode, watcher domain.Watcher, sched *schedule.Scheduler, interval time.Duration, log logging.Logger) (domain.Channel, error) {
	log = logging.OrNop(log)
	poll := NewPoll(sched, interval)
	switch mode {
	case ModePoll, "":
		return poll, nil
	case ModePush:
		if watcher == nil {
			log.Warn(context.Background(), "push delivery requested but backend cannot watch; polling instead")
			return poll, nil
		}
		return NewPush(watcher, poll, log), nil
	default:
		return nil, fmt.Errorf("%w: unknown delivery mode %q", domain.ErrDeliveryChannel, mode)
	}
}
