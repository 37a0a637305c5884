package progress

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// Indicator displays run progress. Add is called from the orchestrator's
// loop and must not block.
type Indicator interface {
	// Start announces the expected number of units.
	Start(total int)
	// Add advances the indicator by n units.
	Add(n int)
	// Finish stops the indicator. An error means progress display failed;
	// it never affects the run outcome.
	Finish(success bool) error
}

// Nop discards progress.
type Nop struct{}

func (Nop) Start(int)         {}
func (Nop) Add(int)           {}
func (Nop) Finish(bool) error { return nil }

// Counter records progress in memory. It is useful in tests.
type Counter struct {
	total    atomic.Int64
	done     atomic.Int64
	finished atomic.Bool
	success  atomic.Bool
}

func (c *Counter) Start(total int) { c.total.Store(int64(total)) }
func (c *Counter) Add(n int)       { c.done.Add(int64(n)) }

func (c *Counter) Finish(success bool) error {
	c.success.Store(success)
	c.finished.Store(true)
	return nil
}

// Total returns the announced total.
func (c *Counter) Total() int { return int(c.total.Load()) }

// Done returns the units observed so far.
func (c *Counter) Done() int { return int(c.done.Load()) }

// Finished reports whether Finish was called, and with which outcome.
func (c *Counter) Finished() (finished, success bool) {
	return c.finished.Load(), c.success.Load()
}

// Plain writes a line each time progress crosses another step percent.
// It suits non-interactive output such as CI logs.
type Plain struct {
	mu      sync.Mutex
	w       io.Writer
	step    int
	total   int
	done    int
	lastPct int
	err     error
}

// NewPlain creates a Plain indicator writing to w every step percent
// (values outside 1..100 select 10).
func NewPlain(w io.Writer, step int) *Plain {
	if step < 1 || step > 100 {
		step = 10
	}
	return &Plain{w: w, step: step, lastPct: -1}
}

func (p *Plain) Start(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total = total
	p.done = 0
	p.lastPct = -1
	p.writeLocked()
}

func (p *Plain) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done += n
	p.writeLocked()
}

func (p *Plain) Finish(success bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := "done"
	if !success {
		status = "aborted"
	}
	if p.err == nil {
		_, p.err = fmt.Fprintf(p.w, "progress: %d/%d %s\n", p.done, p.total, status)
	}
	return p.err
}

func (p *Plain) writeLocked() {
	if p.err != nil {
		return
	}
	pct := 100
	if p.total > 0 {
		pct = min(100, p.done*100/p.total)
	}
	bucket := pct / p.step * p.step
	if bucket <= p.lastPct {
		return
	}
	p.lastPct = bucket
	_, p.err = fmt.Fprintf(p.w, "progress: %d/%d (%d%%)\n", p.done, p.total, pct)
}
