package clock

import (
	"sync"
	"time"
)

var _ Clock = (*Fake)(nil)

// Fake is a manually advanced Clock.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	changed *sync.Cond
}

type fakeTicker struct {
	next     time.Time
	interval time.Duration
	ch       chan time.Time
	stopped  bool
}

// NewFake returns a Fake clock reading initial.
func NewFake(initial time.Time) *Fake {
	f := &Fake{now: initial}
	f.changed = sync.NewCond(&f.mu)
	return f
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan time.Time, 1)
	t := &fakeTicker{next: f.now.Add(d), interval: d, ch: ch}
	f.tickers = append(f.tickers, t)
	f.changed.Broadcast()

	return &Ticker{C: ch, stop: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		t.stopped = true
		f.changed.Broadcast()
	}}
}

// Advance moves the clock forward and fires every ticker whose deadline
// passed. Like time.Ticker, a slow receiver drops ticks rather than queueing them.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)
	for _, t := range f.tickers {
		if t.stopped {
			continue
		}
		fired := false
		for !t.next.After(f.now) {
			t.next = t.next.Add(t.interval)
			fired = true
		}
		if fired {
			select {
			case t.ch <- f.now:
			default:
			}
		}
	}
}

// Set moves the clock to an absolute time without firing tickers.
func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// BlockUntilTickers waits until at least n tickers are active.
func (f *Fake) BlockUntilTickers(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.activeTickers() < n {
		f.changed.Wait()
	}
}

func (f *Fake) activeTickers() int {
	n := 0
	for _, t := range f.tickers {
		if !t.stopped {
			n++
		}
	}
	return n
}
