package sessions

import "time"

// Timer is a pending AfterFunc call
type Timer interface {
	Stop() bool
}

// Clock supplies the time and single-shot timers to a Manager
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
