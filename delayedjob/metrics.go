package delayedjob

import "time"

// Metrics receives one observation per completed run of the work body.
// err is nil for a clean run, the body's error for a failed one, and
// wraps ErrWorkPanic for a panicking one. Observe is called outside the
// job mutex and must be safe for concurrent use when the same collector
// serves several jobs.
type Metrics interface {
	Observe(job string, start time.Time, duration time.Duration, err error)
}
