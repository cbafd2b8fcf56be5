package wizard

import "time"

// Clock supplies the current time for state stamping and event timestamps
type Clock func() time.Time

// Timer is a resettable delay timer that the poll loop waits on. The
// production implementation wraps time.Timer; tests substitute a manual
// one so polling can be driven deterministically.
type Timer interface {
	Channel() <-chan time.Time
	Reset(delay time.Duration) bool
	Stop() bool
}

// TimerConstructor builds a Timer that fires after the given delay
type TimerConstructor func(delay time.Duration) Timer

type wallTimer struct {
	*time.Timer
}

// NewTimer is the TimerConstructor backed by the system clock
func NewTimer(delay time.Duration) Timer {
	return &wallTimer{
		Timer: time.NewTimer(delay),
	}
}

func (t *wallTimer) Channel() <-chan time.Time {
	return t.C
}
