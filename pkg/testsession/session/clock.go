package session

import "sync"

// Clock is the only timing authority of an attempt. It does not own a timer;
// the Manager calls Tick once per second.
type Clock struct {
	mu        sync.Mutex
	remaining int
	expired   bool
	stopped   bool
	onExpire  func()
}

func NewClock(onExpire func()) *Clock {
	return &Clock{onExpire: onExpire}
}

// Tick decrements the remaining time by one second. It reports whether a
// whole-minute boundary was crossed. The expiry callback fires once, when
// the value first reaches zero.
func (c *Clock) Tick() (minuteBoundary bool) {
	c.mu.Lock()
	if c.stopped || c.expired || c.remaining <= 0 {
		c.mu.Unlock()
		return false
	}
	c.remaining--
	minuteBoundary = c.remaining%60 == 0
	fire := c.remaining == 0
	if fire {
		c.expired = true
	}
	cb := c.onExpire
	c.mu.Unlock()

	if fire && cb != nil {
		cb()
	}
	return minuteBoundary
}

// SetRemaining is the only absolute setter. It has no effect once the clock
// expired or was stopped.
func (c *Clock) SetRemaining(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.expired {
		return
	}
	c.remaining = seconds
}

func (c *Clock) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Clock) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// Stop freezes the clock permanently (submission or teardown).
func (c *Clock) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
}
