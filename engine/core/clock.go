package core

import "time"

// Clock measures frame-to-frame time for the run loop.
type Clock struct {
	startTime time.Time
	lastTick  time.Time
	elapsed   time.Duration
	running   bool
}

func NewClock() *Clock {
	return &Clock{}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = time.Now()
	c.lastTick = c.startTime
	c.elapsed = 0
	c.running = true
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.running = false
}

// Tick updates the clock and returns the seconds passed since the previous tick.
// Has no effect on non-started clocks.
func (c *Clock) Tick() float32 {
	if !c.running {
		return 0
	}
	now := time.Now()
	delta := now.Sub(c.lastTick)
	c.lastTick = now
	c.elapsed = now.Sub(c.startTime)
	return float32(delta.Seconds())
}

// Elapsed is the time between Start and the last Tick.
func (c *Clock) Elapsed() time.Duration {
	return c.elapsed
}
