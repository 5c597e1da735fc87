package tools

import (
	"sync"
	"time"
)

// Coalescer is a request-coalescing rate limiter. Requests inside a
// short window collapse into one fulfillment; when requests keep
// arriving faster than the threshold, fulfillment is deferred, but
// never past MaxDelay after the first pending request, so latency
// stays bounded even under sustained churn.
type Coalescer struct {
	Window    time.Duration
	Threshold int
	MaxDelay  time.Duration

	mu           sync.Mutex
	recent       []time.Time
	pending      func()
	pendingSince time.Time
	timer        *time.Timer
	now          func() time.Time
}

// NewCoalescer builds a limiter. Zero values get working defaults.
func NewCoalescer(window time.Duration, threshold int, maxDelay time.Duration) *Coalescer {
	if window <= 0 {
		window = 250 * time.Millisecond
	}
	if threshold <= 0 {
		threshold = 3
	}
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &Coalescer{Window: window, Threshold: threshold, MaxDelay: maxDelay, now: time.Now}
}

// Request fulfills fn now when the recent request rate allows it, or
// coalesces it with other pending requests for deferred fulfillment.
// A newer request replaces the pending fn (they are interchangeable
// refresh closures).
func (c *Coalescer) Request(fn func()) {
	c.mu.Lock()
	now := c.now()
	c.prune(now)
	c.recent = append(c.recent, now)

	if len(c.recent) <= c.Threshold && c.pending == nil {
		c.mu.Unlock()
		fn()
		return
	}

	if c.pending == nil {
		c.pendingSince = now
	}
	c.pending = fn
	delay := c.Window
	if deadline := c.pendingSince.Add(c.MaxDelay); now.Add(delay).After(deadline) {
		delay = deadline.Sub(now)
		if delay < 0 {
			delay = 0
		}
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(delay, c.fire)
	c.mu.Unlock()
}

func (c *Coalescer) fire() {
	c.mu.Lock()
	fn := c.pending
	c.pending = nil
	c.timer = nil
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Stop discards any pending fulfillment.
func (c *Coalescer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = nil
}

func (c *Coalescer) prune(now time.Time) {
	cutoff := now.Add(-c.Window)
	keep := c.recent[:0]
	for _, t := range c.recent {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	c.recent = keep
}
