package timer

import (
	"fmt"
	"sync"
)

// Countdown is the per-turn timer: seconds remaining out of a fixed per-turn budget.
// One Tick is one elapsed second; the caller owns the cadence.
type Countdown struct {
	mu        sync.Mutex
	perTurn   int
	remaining int
	active    bool
	publish   func(remaining int)
}

func NewCountdown(perTurn int) *Countdown {
	if perTurn <= 0 {
		perTurn = 1
	}
	return &Countdown{perTurn: perTurn, remaining: perTurn}
}

// OnPublish sets the hook used by HandleTimerUpdate to rebroadcast a value.
func (c *Countdown) OnPublish(fn func(remaining int)) {
	c.mu.Lock()
	c.publish = fn
	c.mu.Unlock()
}

func (c *Countdown) Start() {
	c.mu.Lock()
	c.active = c.remaining > 0
	c.mu.Unlock()
}

func (c *Countdown) Stop() {
	c.mu.Lock()
	c.active = false
	c.mu.Unlock()
}

func (c *Countdown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Tick decrements by one second while active and reports the new value.
// Reaching zero deactivates the countdown; further ticks leave it at zero.
func (c *Countdown) Tick() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active && c.remaining > 0 {
		c.remaining--
	}
	if c.remaining == 0 {
		c.active = false
	}
	return c.remaining
}

// SetInitial resets remaining to exactly n.
func (c *Countdown) SetInitial(n int) {
	if n < 0 {
		n = 0
	}
	c.mu.Lock()
	c.remaining = n
	c.mu.Unlock()
}

// Reset restores the full per-turn budget.
func (c *Countdown) Reset() {
	c.SetInitial(c.PerTurn())
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) PerTurn() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.perTurn
}

// Percentage 剩余时间百分比
func (c *Countdown) Percentage() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.remaining) / float64(c.perTurn) * 100
}

func (c *Countdown) Display() string {
	return FormatTime(c.Remaining())
}

// HandleTimerUpdate overwrites the local value with one received from another source,
// optionally passing it on through the publish hook.
func (c *Countdown) HandleTimerUpdate(n int, rebroadcast bool) {
	c.SetInitial(n)
	c.mu.Lock()
	publish := c.publish
	c.mu.Unlock()
	if rebroadcast && publish != nil {
		publish(n)
	}
}

// FormatTime renders seconds as M:SS.
func FormatTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
