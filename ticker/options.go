package ticker

import "time"

type Option func(t *Ticker)

func WithStopTimeout(timeout time.Duration) Option {
	return func(t *Ticker) {
		t.stopTimeout = timeout
	}
}
