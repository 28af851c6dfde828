package client

import (
	"context"
	"time"
)

const (
	DefaultThreadInterval = 3 * time.Second
	DefaultBadgeInterval  = 5 * time.Second
)

// PollFunc performs one poll.
type PollFunc func(ctx context.Context) error

// Poller calls a PollFunc on a fixed interval until its context ends. A failed cycle is
// reported and simply retried on the next tick.
type Poller struct {
	interval time.Duration
	poll     PollFunc
	onError  func(error)
	nudge    chan struct{}
}

// NewPoller returns a poller; onError may be nil.
func NewPoller(interval time.Duration, poll PollFunc, onError func(error)) *Poller {
	if interval <= 0 {
		interval = DefaultThreadInterval
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &Poller{
		interval: interval,
		poll:     poll,
		onError:  onError,
		nudge:    make(chan struct{}, 1),
	}
}

// Run blocks until ctx is cancelled. The first cycle runs after one interval.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.nudge:
			ticker.Reset(p.interval)
		}
		if ctx.Err() != nil {
			return
		}
		if err := p.poll(ctx); err != nil && ctx.Err() == nil {
			p.onError(err)
		}
	}
}

// Nudge asks for an immediate cycle. Extra nudges before it runs are coalesced.
func (p *Poller) Nudge() {
	select {
	case p.nudge <- struct{}{}:
	default:
	}
}
