package shell

import "time"

// Clock supplies the current time. Handlers take a Clock so tests can pin
// borrow, due and expiration dates.
type Clock func() time.Time

// SystemClock returns the current UTC time.
func SystemClock() time.Time {
	return time.Now().UTC()
}
