// Package clock abstracts timers so protocol timeouts can be driven by a manual
// clock in tests instead of the wall clock.
package clock

import (
	"sync"
	"time"
)

// Timer is a single-use timer.
type Timer interface {
	// C returns the channel the expiry time is delivered on.
	C() <-chan time.Time
	// Stop stops the timer and releases it. It reports whether the call stopped
	// the timer before it fired. A Timer must not be used after Stop.
	Stop() bool
}

// Clock creates timers.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Real is the wall clock. Its timers are recycled through a pool.
var Real Clock = realClock{}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) Timer {
	return &realTimer{t: getTimer(d)}
}

type realTimer struct {
	t *time.Timer
}

func (rt *realTimer) C() <-chan time.Time { return rt.t.C }

func (rt *realTimer) Stop() bool {
	return putTimer(rt.t)
}

var timerPool sync.Pool

// getTimer returns a timer for the given duration d from the pool.
func getTimer(d time.Duration) *time.Timer {
	if v := timerPool.Get(); v != nil {
		t, _ := v.(*time.Timer) // only *time.Timer is put into the pool
		if t.Reset(d) {
			// Timer was active, drain the channel to prevent potential leaks
			select {
			case <-t.C:
			default:
			}
		}
		return t
	}
	return time.NewTimer(d)
}

// putTimer stops t and returns it to the pool.
//
// t cannot be accessed after returning to the pool.
func putTimer(t *time.Timer) bool {
	stopped := t.Stop()
	if !stopped {
		// Drain t.C if it wasn't obtained by the caller yet.
		select {
		case <-t.C:
		default:
		}
	}
	timerPool.Put(t)

	return stopped
}
