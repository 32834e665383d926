// Package permitjoin gates new-device association behind a single countdown
// timer. While armed, the remaining duration only decreases; a new duration
// always disarms the previous timer before rearming.
package permitjoin

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNegativeDuration is returned for a negative join window.
var ErrNegativeDuration = errors.New("permit-join duration must be non-negative")

// Controller owns the join window. Exactly zero or one timer is live at any
// time, re-entrant SetDuration calls included.
type Controller struct {
	mu        sync.Mutex
	remaining int
	stop      chan struct{} // nil when disarmed
	tick      time.Duration
	onChange  func(remaining int)
	logger    *logrus.Logger
}

// New creates a disarmed Controller. tick is the countdown interval, one
// second in production; onChange fires on every window change and may be nil.
func New(tick time.Duration, onChange func(remaining int), logger *logrus.Logger) *Controller {
	if tick <= 0 {
		tick = time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Controller{tick: tick, onChange: onChange, logger: logger}
}

// SetDuration cancels any running timer, stores seconds and rearms when
// seconds > 0. The window-changed notification fires for every call,
// including SetDuration(0).
func (c *Controller) SetDuration(seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeDuration, seconds)
	}

	c.mu.Lock()
	c.disarmLocked()
	c.remaining = seconds

	var stop chan struct{}
	if seconds > 0 {
		stop = make(chan struct{})
		c.stop = stop
	}
	c.mu.Unlock()

	c.emit(seconds)

	if stop != nil {
		c.logger.WithField("seconds", seconds).Info("Permit-join window opened")
		go c.countdown(stop)
	} else {
		c.logger.Debug("Permit-join window closed")
	}
	return nil
}

// Duration returns the remaining window in seconds.
func (c *Controller) Duration() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Tick manually decrements the window by one second, disarming at zero.
func (c *Controller) Tick() {
	if left, ok := c.tickFor(nil); ok {
		c.emit(left)
	}
}

// tickFor decrements the window once. A non-nil owner restricts the decrement
// to the countdown that still holds the timer, so a superseded countdown can
// never touch a newer window.
func (c *Controller) tickFor(owner chan struct{}) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if owner != nil && c.stop != owner {
		return 0, false
	}
	if c.remaining == 0 {
		return 0, false
	}
	c.remaining--
	left := c.remaining
	if left == 0 {
		c.disarmLocked()
	}
	return left, true
}

// Open reports whether the join window currently admits new devices.
func (c *Controller) Open() bool {
	return c.Duration() > 0
}

// Close disarms the timer without emitting, for orchestrator teardown.
func (c *Controller) Close() {
	c.mu.Lock()
	c.disarmLocked()
	c.remaining = 0
	c.mu.Unlock()
}

func (c *Controller) disarmLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

func (c *Controller) emit(remaining int) {
	if c.onChange != nil {
		c.onChange(remaining)
	}
}

// countdown drives the tick path once per interval until the window reaches
// zero or the timer is disarmed by a newer SetDuration.
func (c *Controller) countdown(stop chan struct{}) {
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			left, ok := c.tickFor(stop)
			if !ok {
				// Superseded between tick and lock.
				return
			}
			c.emit(left)
			if left == 0 {
				c.logger.Debug("Permit-join window expired")
				return
			}
		}
	}
}
