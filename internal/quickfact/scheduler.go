package quickfact

import (
	"sync"
	"time"
)

// Scheduler runs repeating timers.
//
// Every calls fn every d until the returned stop function is called. Stop
// must be idempotent and must not return while fn is still running; fn must
// not call stop itself.
type Scheduler interface {
	Every(d time.Duration, fn func()) (stop func())
}

// TickerScheduler is a [Scheduler] backed by [time.Ticker], one goroutine
// per timer.
type TickerScheduler struct{}

// Every implements [Scheduler].
func (TickerScheduler) Every(d time.Duration, fn func()) func() {
	t := time.NewTicker(d)
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			close(done)
			wg.Wait()
		})
	}
}

var _ Scheduler = TickerScheduler{}
