package clock

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Wrap adapts a clockwork clock to Clock.
func Wrap(c clockwork.Clock) Clock {
	return clockworkClock{c: c}
}

type clockworkClock struct {
	c clockwork.Clock
}

func (cc clockworkClock) Now() time.Time { return cc.c.Now() }

func (cc clockworkClock) NewTimer(d time.Duration) Timer {
	return clockworkTimer{t: cc.c.NewTimer(d)}
}

type clockworkTimer struct {
	t clockwork.Timer
}

func (ct clockworkTimer) C() <-chan time.Time { return ct.t.Chan() }

func (ct clockworkTimer) Stop() bool { return ct.t.Stop() }

// Fake is a manually driven Clock on top of clockwork's fake clock.
//
// Timers fire only when Advance moves the clock past their deadline. The
// duration of every timer created is also published on Armed, which lets a
// test wait until the code under test is blocked on a timeout.
type Fake struct {
	clockwork.FakeClock
	armed chan time.Duration
}

var _ Clock = (*Fake)(nil)

// NewFake creates a Fake clock starting at a fixed instant.
func NewFake() *Fake {
	return &Fake{
		FakeClock: clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		armed:     make(chan time.Duration, 1024),
	}
}

// NewTimer creates a timer that fires once the clock reaches now+d.
func (f *Fake) NewTimer(d time.Duration) Timer {
	t := Wrap(f.FakeClock).NewTimer(d)

	select {
	case f.armed <- d:
	default:
	}

	return t
}

// Armed delivers the duration of every timer created by NewTimer, in creation
// order. The timer is registered with the clock before it is announced.
func (f *Fake) Armed() <-chan time.Duration {
	return f.armed
}
