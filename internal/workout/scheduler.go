package workout

import (
	"sync"
	"time"
)

// Scheduler runs a callback on a fixed period until the returned stop
// function is called. Stop must be safe to call more than once and from
// inside the callback itself.
type Scheduler interface {
	Every(d time.Duration, fn func()) (stop func())
}

// TickerScheduler backs each registration with a time.Ticker and a goroutine.
type TickerScheduler struct{}

// Every implements Scheduler.
func (TickerScheduler) Every(d time.Duration, fn func()) func() {
	t := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-t.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			close(done)
		})
	}
}

// ManualScheduler fires callbacks only when Tick is called. It lets tests
// and simulations step the clock one period at a time. The zero value is
// ready to use.
type ManualScheduler struct {
	mu      sync.Mutex
	nextID  int
	order   []int
	entries map[int]func()
}

// Every implements Scheduler. The period is ignored.
func (m *ManualScheduler) Every(_ time.Duration, fn func()) func() {
	m.mu.Lock()
	if m.entries == nil {
		m.entries = make(map[int]func())
	}
	id := m.nextID
	m.nextID++
	m.entries[id] = fn
	m.order = append(m.order, id)
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.entries, id)
		m.mu.Unlock()
	}
}

// Tick fires every registered callback once, in registration order.
// Callbacks are invoked without holding the scheduler lock; a callback
// stopped by an earlier one in the same tick is skipped.
func (m *ManualScheduler) Tick() {
	m.mu.Lock()
	ids := make([]int, 0, len(m.entries))
	for _, id := range m.order {
		if _, ok := m.entries[id]; ok {
			ids = append(ids, id)
		}
	}
	m.order = ids
	m.mu.Unlock()

	for _, id := range ids {
		m.mu.Lock()
		fn, ok := m.entries[id]
		m.mu.Unlock()
		if ok {
			fn()
		}
	}
}

// Advance calls Tick n times.
func (m *ManualScheduler) Advance(n int) {
	for range n {
		m.Tick()
	}
}

// Active returns the number of live registrations.
func (m *ManualScheduler) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
