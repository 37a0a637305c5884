// Package progress carries incremental progress from search workers to the
// orchestrator and renders it on an Indicator.
package progress

import (
	"sync/atomic"
	"time"
)

// Default channel settings.
const (
	DefaultCapacity    = 256
	DefaultPushTimeout = 50 * time.Millisecond
)

// Channel is a multi-producer, single-consumer conduit of progress units.
//
// Advance never blocks for longer than the push timeout and never loses a
// unit: if the buffer stays full past the timeout, the unit is parked in an
// overflow counter that the next Drain collects.
type Channel struct {
	ch       chan struct{}
	wait     time.Duration
	overflow atomic.Int64
	emitted  atomic.Int64
}

// NewChannel creates a Channel. Non-positive arguments select the defaults.
func NewChannel(capacity int, pushTimeout time.Duration) *Channel {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if pushTimeout <= 0 {
		pushTimeout = DefaultPushTimeout
	}
	return &Channel{
		ch:   make(chan struct{}, capacity),
		wait: pushTimeout,
	}
}

// Advance records one progress unit. Safe for concurrent use.
func (c *Channel) Advance() {
	c.emitted.Add(1)

	select {
	case c.ch <- struct{}{}:
		return
	default:
	}

	timer := time.NewTimer(c.wait)
	defer timer.Stop()
	select {
	case c.ch <- struct{}{}:
	case <-timer.C:
		c.overflow.Add(1)
	}
}

// C exposes the receive side for use in a select. Each receive is one unit;
// follow it with Drain to collect the rest.
func (c *Channel) C() <-chan struct{} { return c.ch }

// TryRecv reports whether a unit was pending, without blocking.
func (c *Channel) TryRecv() bool {
	select {
	case <-c.ch:
		return true
	default:
		return false
	}
}

// Drain collects every pending unit, including overflow, without blocking.
func (c *Channel) Drain() int {
	n := 0
	for c.TryRecv() {
		n++
	}
	return n + int(c.overflow.Swap(0))
}

// Emitted returns the total number of units producers have pushed.
func (c *Channel) Emitted() int { return int(c.emitted.Load()) }
