package payment

import (
	"fmt"
	"time"
)

// WindowMinutes is how long a buyer has to transfer the money after the
// order is created.
const WindowMinutes = 15

const CountdownPlaceholder = "--:--"

// Window is the payment window of one order. It is derived from the order's
// creation time and never stored.
type Window struct {
	CreatedAt time.Time
	ExpiresAt time.Time
}

func NewWindow(createdAt time.Time, length time.Duration) Window {
	return Window{CreatedAt: createdAt, ExpiresAt: createdAt.Add(length)}
}

// SecondsLeft is computed from the wall clock on every call so that missed
// or delayed ticks never skew it.
func (w Window) SecondsLeft(now time.Time) int {
	ms := w.ExpiresAt.Sub(now).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return int(ms / 1000)
}

func FormatCountdown(secondsLeft int) string {
	if secondsLeft < 0 {
		secondsLeft = 0
	}
	return fmt.Sprintf("%02d:%02d", secondsLeft/60, secondsLeft%60)
}
