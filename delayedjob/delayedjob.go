// Package delayedjob provides a coalescing coordinator for delayed
// background work. Callers request that a job run "soon"; any number of
// requests arriving within an aggregation delay collapse into a single
// execution of the job body, and two executions of the same job never
// overlap. Termination is deterministic, with bounded waiting and
// cooperative cancellation of a run in flight.
package delayedjob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Construction and argument errors.
var (
	// ErrNilWork is returned by New when no work body is supplied.
	ErrNilWork = errors.New("delayedjob: nil work")

	// ErrNilTicker is returned by New when no ticker is supplied.
	ErrNilTicker = errors.New("delayedjob: nil ticker")

	// ErrNilExecutor is returned by New when no executor is supplied.
	ErrNilExecutor = errors.New("delayedjob: nil executor")

	// ErrNilLogger is returned by New when no logger is supplied.
	ErrNilLogger = errors.New("delayedjob: nil logger")

	// ErrNegativeDelay is the panic value for a negative trigger or
	// default delay. A negative delay is a programming error.
	ErrNegativeDelay = errors.New("delayedjob: negative delay")

	// ErrWorkPanic wraps a recovered panic from the work body when it is
	// reported to Metrics.
	ErrWorkPanic = errors.New("work panic")
)

// Logger describes the minimal logging interface required by the Job.
type Logger interface {
	Debug(args ...interface{})
	Error(args ...interface{})
}

// WorkFunc is the job body. The context is cancelled when the job is
// terminated while the body is running; bodies are expected to observe
// it and return promptly. A returned error or a panic is logged under
// the job name and otherwise treated as a normal completion.
type WorkFunc func(ctx context.Context) error

// Ticker is a delayed scheduler with per-key deduplication. Scheduling
// an id that already has a pending firing supersedes that firing. A zero
// delay fires as soon as the scheduler can. The callback runs on a
// goroutine the ticker owns.
type Ticker interface {
	Schedule(id string, delay time.Duration, fn func()) error
	Cancel(id string)
}

// Executor runs a submitted task on some background goroutine. Submit
// must not block; a rejected submission is reported by error.
type Executor interface {
	Submit(task func()) error
}

// Job coordinates delayed, coalesced executions of a single work body.
//
// All state changes happen under one mutex; the work body itself runs
// outside it, on an executor goroutine. A Job is safe for concurrent use
// by any number of triggering, terminating and waiting goroutines.
type Job struct {
	name         string
	work         WorkFunc
	defaultDelay time.Duration
	ticker       Ticker
	executor     Executor
	logger       Logger

	metrics  Metrics
	tickerID string
	now      func() time.Time

	mu       sync.Mutex
	state    State
	deadline time.Time // armed firing time, meaningful in StateWaiting
	gen      uint64    // arm generation, invalidates stale firings
	rearm    time.Duration
	rearmSet bool
	cancel   context.CancelFunc // interrupts the run, set while a run is in flight

	terminated chan struct{} // closed on the transition to StateTerminated
}

// New creates a Job in the idle state.
//
// Parameters:
//
//	name         - identifier used in logs, metrics and as the default ticker key.
//	work         - job body to execute.
//	defaultDelay - aggregation delay used by Trigger.
//	ticker       - delayed scheduler the job arms its firings on.
//	executor     - pool the work body is submitted to.
//	l            - logger implementation.
//
// Returns an error when work, ticker, executor or l is nil, or when
// defaultDelay is negative.
func New(name string, work WorkFunc, defaultDelay time.Duration, ticker Ticker, executor Executor, l Logger, options ...Option) (*Job, error) {
	switch {
	case work == nil:
		return nil, ErrNilWork
	case ticker == nil:
		return nil, ErrNilTicker
	case executor == nil:
		return nil, ErrNilExecutor
	case l == nil:
		return nil, ErrNilLogger
	case defaultDelay < 0:
		return nil, ErrNegativeDelay
	}

	job := &Job{
		name:         name,
		work:         work,
		defaultDelay: defaultDelay,
		ticker:       ticker,
		executor:     executor,
		logger:       l,
		tickerID:     name,
		now:          time.Now,
		terminated:   make(chan struct{}),
	}

	for _, option := range options {
		option(job)
	}

	return job, nil
}

// Name returns the diagnostic label the job was created with.
func (j *Job) Name() string {
	return j.name
}

// Trigger requests an execution after the default aggregation delay.
// Equivalent to TriggerDelay with the job's default delay.
func (j *Job) Trigger() {
	j.TriggerDelay(j.defaultDelay)
}

// TriggerDelay requests that the work body run after d. Triggers
// arriving while a firing is already armed
// only move the deadline closer, never further away; triggers arriving
// during a run accumulate the minimum requested delay and re-arm with it
// when the run completes. A terminated job ignores triggers.
//
// Panics if d is negative.
func (j *Job) TriggerDelay(d time.Duration) {
	if d < 0 {
		panic(ErrNegativeDelay)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	switch j.state {
	case StateTerminating, StateTerminated:
		// Absorbing: late triggers are silent no-ops.
	case StateIdle:
		j.arm(d)
	case StateWaiting:
		if j.now().Add(d).Before(j.deadline) {
			j.arm(d)
		}
	case StateRunning:
		if !j.rearmSet || d < j.rearm {
			j.rearm = d
			j.rearmSet = true
		}
	}
}

// Terminate drives the job to its final state. Idempotent.
//
// From idle or waiting the job drops straight to terminated, cancelling
// any armed firing. From running it moves to terminating and cancels the
// work context; the job reaches terminated when the body returns. The
// caller is only ever blocked for the state transition, never for the
// work body.
func (j *Job) Terminate() {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch j.state {
	case StateTerminating, StateTerminated:
		j.logger.Debug(j.name + ": already terminated")
	case StateRunning:
		j.state = StateTerminating
		j.cancel()
	default:
		if j.state == StateWaiting {
			j.ticker.Cancel(j.tickerID)
			j.gen++ // a firing that lost the cancel race is discarded
			j.deadline = time.Time{}
		}

		j.state = StateTerminated
		close(j.terminated)
	}
}

// WaitForTermination blocks until the job is terminated or timeout has
// elapsed, whichever comes first. It returns immediately when the job is
// already terminated, and never before timeout when it is not. The
// caller re-checks IsTerminated.
func (j *Job) WaitForTermination(timeout time.Duration) {
	select {
	case <-j.terminated:
		return
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-j.terminated:
	case <-timer.C:
	}
}

// IsTerminated reports whether the job reached its final state.
func (j *Job) IsTerminated() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.state == StateTerminated
}

// State returns a snapshot of the current state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.state
}

// arm schedules the next firing after d and moves to waiting. Called
// with the mutex held, from idle, from waiting when a trigger pulls the
// deadline in, or from the post-run transition. On a
// ticker rejection the job falls back to idle so the next trigger can
// re-arm.
func (j *Job) arm(d time.Duration) {
	j.gen++
	gen := j.gen

	// Taken before the arming, so the recorded deadline never lands
	// after the ticker's own firing time.
	deadline := j.now().Add(d)

	if err := j.ticker.Schedule(j.tickerID, d, func() { j.fire(gen) }); err != nil {
		j.logger.Error(j.name+": arm ticker:", err)

		j.state = StateIdle
		j.deadline = time.Time{}

		return
	}

	j.state = StateWaiting
	j.deadline = deadline
}

// fire is the ticker callback. It hands the work body to the executor
// and never runs it synchronously; blocking the ticker's dispatch
// goroutine would stall every job sharing the ticker.
func (j *Job) fire(gen uint64) {
	j.mu.Lock()

	// A loose ticker can deliver a superseded or premature firing. The
	// generation check catches re-arms, the deadline check early
	// deliveries, the state check everything else.
	if j.state != StateWaiting || gen != j.gen || j.now().Before(j.deadline) {
		j.mu.Unlock()
		j.logger.Debug(j.name + ": discarded stale firing")

		return
	}

	j.state = StateRunning
	j.deadline = time.Time{}

	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel

	if err := j.executor.Submit(func() { j.run(ctx) }); err != nil {
		j.logger.Error(j.name+": submit work:", err)

		j.cancel = nil
		j.state = StateIdle

		cancel()
	}

	j.mu.Unlock()
}

// run executes the work body and performs the post-run transition.
// Runs on an executor goroutine.
func (j *Job) run(ctx context.Context) {
	start := j.now()
	err := j.execute(ctx)

	if j.metrics != nil {
		j.metrics.Observe(j.name, start, j.now().Sub(start), err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cancel != nil {
		j.cancel()
		j.cancel = nil
	}

	switch j.state {
	case StateTerminating:
		j.state = StateTerminated
		close(j.terminated)
	case StateRunning:
		if j.rearmSet {
			d := j.rearm
			j.rearmSet = false
			j.arm(d)
		} else {
			j.state = StateIdle
		}
	}
}

// execute invokes the work body, containing panics and classifying the
// outcome. Cancellation observed by the body is a cooperative exit, not
// a failure.
func (j *Job) execute(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrWorkPanic, r)
			j.logger.Error(j.name+": work panic:", r)
		}
	}()

	if err = j.work(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			j.logger.Debug(j.name + ": work cancelled")
		} else {
			j.logger.Error(j.name+":", err)
		}
	}

	return err
}
