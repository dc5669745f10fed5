package timer

import "time"

// Clock supplies the current time. The tracker and scheduler take it as a
// dependency so elapsed-time logic is testable without real sleeps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }
