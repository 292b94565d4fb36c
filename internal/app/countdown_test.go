package app_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"timed-quiz/internal/app"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTicker delivers ticks only when the test sends them.
type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop()               { t.stopped.Store(true) }

// manualClock hands out manualTickers and lets tests wait for each new one.
type manualClock struct {
	created chan *manualTicker

	mu       sync.Mutex
	tickers  []*manualTicker
	interval time.Duration
}

func newManualClock() *manualClock {
	return &manualClock{created: make(chan *manualTicker, 16)}
}

func (c *manualClock) NewTicker(d time.Duration) app.Ticker {
	t := &manualTicker{ch: make(chan time.Time)}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.interval = d
	c.mu.Unlock()
	c.created <- t
	return t
}

func (c *manualClock) next(t *testing.T) *manualTicker {
	t.Helper()
	select {
	case ticker := <-c.created:
		return ticker
	case <-time.After(2 * time.Second):
		t.Fatal("no ticker was started")
		return nil
	}
}

func (c *manualClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

func TestCountdown_FiresOnEveryTick(t *testing.T) {
	clock := newManualClock()
	countdown := app.NewCountdown(250*time.Millisecond, clock.NewTicker)

	var fired atomic.Int32
	countdown.Restart(func() bool {
		fired.Add(1)
		return true
	})

	ticker := clock.next(t)
	ticker.ch <- time.Now()
	ticker.ch <- time.Now()
	ticker.ch <- time.Now()

	require.Eventually(t, func() bool { return fired.Load() == 3 }, time.Second, 5*time.Millisecond)

	clock.mu.Lock()
	assert.Equal(t, 250*time.Millisecond, clock.interval)
	clock.mu.Unlock()

	countdown.Stop()
	require.Eventually(t, ticker.stopped.Load, time.Second, 5*time.Millisecond)
}

func TestCountdown_EndsWhenFireReturnsFalse(t *testing.T) {
	clock := newManualClock()
	countdown := app.NewCountdown(time.Second, clock.NewTicker)

	countdown.Restart(func() bool { return false })

	ticker := clock.next(t)
	ticker.ch <- time.Now()
	require.Eventually(t, ticker.stopped.Load, time.Second, 5*time.Millisecond)
}

func TestCountdown_RestartReplacesRunningLoop(t *testing.T) {
	clock := newManualClock()
	countdown := app.NewCountdown(time.Second, clock.NewTicker)

	var first, second atomic.Int32
	countdown.Restart(func() bool {
		first.Add(1)
		return true
	})
	old := clock.next(t)

	countdown.Restart(func() bool {
		second.Add(1)
		return true
	})
	fresh := clock.next(t)

	require.Eventually(t, old.stopped.Load, time.Second, 5*time.Millisecond)
	fresh.ch <- time.Now()
	require.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
	assert.Equal(t, 2, clock.count())

	countdown.Stop()
}

func TestCountdown_StopWithoutRestartIsSafe(t *testing.T) {
	countdown := app.NewCountdown(0, nil)
	countdown.Stop()
	countdown.Stop()
}
