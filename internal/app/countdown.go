package app

import (
	"context"
	"sync"
	"time"
)

// Ticker is the clock source driving a Countdown.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc builds a Ticker firing every d.
type TickerFunc func(d time.Duration) Ticker

// NewTimeTicker is the wall-clock TickerFunc.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// Countdown is the external clock of a session: one goroutine per run calls a
// fire function on every tick. The session never waits on it.
type Countdown struct {
	interval  time.Duration
	newTicker TickerFunc

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewCountdown(interval time.Duration, newTicker TickerFunc) *Countdown {
	if newTicker == nil {
		newTicker = NewTimeTicker
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{interval: interval, newTicker: newTicker}
}

// Restart cancels the running loop, if any, and starts a fresh one. The loop
// ends when fire returns false or the countdown is stopped. Restart may be
// called from inside fire.
func (c *Countdown) Restart(fire func() bool) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx, fire)
}

// Stop silences the countdown. Ticks already in flight are rejected by the
// session through its epoch check.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Countdown) run(ctx context.Context, fire func() bool) {
	ticker := c.newTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			if !fire() {
				return
			}
		}
	}
}
