package engine

import "time"

// Clock supplies wall-clock timestamps for alerts and journal records.
//
// Timestamps are informational. Ordering always uses the journal seq the
// store assigns inside the write transaction.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real time in UTC.
type SystemClock struct{}

// Now returns time.Now in UTC.
func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
