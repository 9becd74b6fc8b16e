// Package clock provides injectable tickers so polling and progress loops can
// be driven manually in tests.
package clock

import (
	"sync"
	"time"
)

// Ticker delivers ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a ticker with the given period.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Manual is a TickerFactory whose tickers only fire when Tick is called.
type Manual struct {
	mu      sync.Mutex
	tickers []*ManualTicker
	created chan time.Duration
}

// NewManual returns a manual factory.
func NewManual() *Manual {
	return &Manual{created: make(chan time.Duration, 16)}
}

// Factory returns the TickerFactory bound to m.
func (m *Manual) Factory() TickerFactory {
	return func(d time.Duration) Ticker {
		t := &ManualTicker{ch: make(chan time.Time, 1), period: d}
		m.mu.Lock()
		m.tickers = append(m.tickers, t)
		m.mu.Unlock()
		select {
		case m.created <- d:
		default:
		}
		return t
	}
}

// Created receives the period of each ticker as it is created.
func (m *Manual) Created() <-chan time.Duration {
	return m.created
}

// Tick fires every running ticker once. It reports how many received the tick.
func (m *Manual) Tick() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	fired := 0
	now := time.Now()
	for _, t := range m.tickers {
		if t.fire(now) {
			fired++
		}
	}
	return fired
}

// Active reports how many tickers have not been stopped.
func (m *Manual) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tickers {
		if !t.isStopped() {
			n++
		}
	}
	return n
}

// ManualTicker is a ticker created by Manual.
type ManualTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	period  time.Duration
	stopped bool
}

func (t *ManualTicker) C() <-chan time.Time { return t.ch }

func (t *ManualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// Period returns the interval the ticker was created with.
func (t *ManualTicker) Period() time.Duration { return t.period }

func (t *ManualTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *ManualTicker) fire(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	select {
	case t.ch <- now:
	default:
	}
	return true
}
