package executor

import "time"

type Option func(e *Executor)

func WithWorkers(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

func WithStopTimeout(timeout time.Duration) Option {
	return func(e *Executor) {
		e.stopTimeout = timeout
	}
}
