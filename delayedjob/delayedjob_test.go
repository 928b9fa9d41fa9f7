package delayedjob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// mockLogger implements Logger interface for testing.
type mockLogger struct {
	mu     sync.Mutex
	debugs []string
	errors []string
}

func (m *mockLogger) Debug(args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.debugs = append(m.debugs, fmt.Sprint(args...))
}

func (m *mockLogger) Error(args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.errors = append(m.errors, fmt.Sprint(args...))
}

func (m *mockLogger) errorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.errors)
}

// manualTicker records armings and lets the test fire them by hand.
type manualTicker struct {
	mu        sync.Mutex
	err       error
	scheduled []manualArm
	cancels   []string
}

type manualArm struct {
	id    string
	delay time.Duration
	fn    func()
}

func (t *manualTicker) Schedule(id string, delay time.Duration, fn func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.err != nil {
		return t.err
	}

	t.scheduled = append(t.scheduled, manualArm{id: id, delay: delay, fn: fn})

	return nil
}

func (t *manualTicker) Cancel(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cancels = append(t.cancels, id)
}

func (t *manualTicker) last() manualArm {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.scheduled[len(t.scheduled)-1]
}

func (t *manualTicker) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.scheduled)
}

// manualExecutor records submissions and lets the test run them by hand.
type manualExecutor struct {
	mu    sync.Mutex
	err   error
	tasks []func()
}

func (e *manualExecutor) Submit(task func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err != nil {
		return e.err
	}

	e.tasks = append(e.tasks, task)

	return nil
}

func (e *manualExecutor) runLast() {
	e.mu.Lock()
	task := e.tasks[len(e.tasks)-1]
	e.mu.Unlock()

	task()
}

func newManualJob(t *testing.T, work WorkFunc, delay time.Duration, options ...Option) (*Job, *manualTicker, *manualExecutor) {
	t.Helper()

	ticker := &manualTicker{}
	exec := &manualExecutor{}

	job, err := New("test", work, delay, ticker, exec, &mockLogger{}, options...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return job, ticker, exec
}

func noWork(ctx context.Context) error { return nil }

// fakeClock is a manually advanced time source for deadline checks.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1700000000, 0)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.t = c.t.Add(d)
}

func TestNewValidation(t *testing.T) {
	ticker := &manualTicker{}
	exec := &manualExecutor{}
	logger := &mockLogger{}

	if _, err := New("test", nil, 0, ticker, exec, logger); !errors.Is(err, ErrNilWork) {
		t.Errorf("expected ErrNilWork, got %v", err)
	}

	if _, err := New("test", noWork, 0, nil, exec, logger); !errors.Is(err, ErrNilTicker) {
		t.Errorf("expected ErrNilTicker, got %v", err)
	}

	if _, err := New("test", noWork, 0, ticker, nil, logger); !errors.Is(err, ErrNilExecutor) {
		t.Errorf("expected ErrNilExecutor, got %v", err)
	}

	if _, err := New("test", noWork, 0, ticker, exec, nil); !errors.Is(err, ErrNilLogger) {
		t.Errorf("expected ErrNilLogger, got %v", err)
	}

	if _, err := New("test", noWork, -time.Second, ticker, exec, logger); !errors.Is(err, ErrNegativeDelay) {
		t.Errorf("expected ErrNegativeDelay, got %v", err)
	}

	job, err := New("test", noWork, 50*time.Millisecond, ticker, exec, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if job.State() != StateIdle {
		t.Errorf("new job should be idle, got %s", job.State())
	}
}

func TestTriggerNegativeDelayPanics(t *testing.T) {
	job, _, _ := newManualJob(t, noWork, 0)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on negative delay")
		}
	}()

	job.TriggerDelay(-time.Millisecond)
}

func TestTriggerArmsTicker(t *testing.T) {
	job, ticker, _ := newManualJob(t, noWork, 50*time.Millisecond)

	job.Trigger()

	if job.State() != StateWaiting {
		t.Errorf("expected waiting, got %s", job.State())
	}

	if ticker.count() != 1 {
		t.Fatalf("expected 1 arming, got %d", ticker.count())
	}

	if arm := ticker.last(); arm.id != "test" || arm.delay != 50*time.Millisecond {
		t.Errorf("unexpected arming: %q %v", arm.id, arm.delay)
	}
}

func TestTriggerSoonerReArms(t *testing.T) {
	job, ticker, _ := newManualJob(t, noWork, time.Second)

	job.Trigger()
	job.TriggerDelay(10 * time.Millisecond)

	if ticker.count() != 2 {
		t.Fatalf("sooner trigger should re-arm, got %d armings", ticker.count())
	}

	if arm := ticker.last(); arm.delay != 10*time.Millisecond {
		t.Errorf("expected 10ms re-arm, got %v", arm.delay)
	}

	// A later deadline must not stretch the armed one.
	job.TriggerDelay(500 * time.Millisecond)

	if ticker.count() != 2 {
		t.Errorf("later trigger should be a no-op, got %d armings", ticker.count())
	}
}

func TestFireRunsWorkOnExecutor(t *testing.T) {
	var calls int

	job, ticker, exec := newManualJob(t, func(ctx context.Context) error {
		calls++

		return nil
	}, 0)

	job.Trigger()
	ticker.last().fn()

	if job.State() != StateRunning {
		t.Fatalf("expected running after fire, got %s", job.State())
	}

	if calls != 0 {
		t.Fatal("work must not run on the ticker goroutine")
	}

	exec.runLast()

	if calls != 1 {
		t.Errorf("expected 1 execution, got %d", calls)
	}

	if job.State() != StateIdle {
		t.Errorf("expected idle after run, got %s", job.State())
	}
}

func TestStaleFiringDiscarded(t *testing.T) {
	clock := newFakeClock()
	job, ticker, exec := newManualJob(t, noWork, time.Second, WithClock(clock.now))

	job.Trigger()
	stale := ticker.last().fn

	job.TriggerDelay(10 * time.Millisecond) // supersedes the first arming

	clock.advance(10 * time.Millisecond)
	stale()

	if job.State() != StateWaiting {
		t.Errorf("stale firing must be discarded, state %s", job.State())
	}

	if len(exec.tasks) != 0 {
		t.Error("stale firing must not submit work")
	}

	ticker.last().fn()

	if job.State() != StateRunning {
		t.Errorf("current firing must run, state %s", job.State())
	}
}

func TestPrematureFiringDiscarded(t *testing.T) {
	clock := newFakeClock()
	job, ticker, exec := newManualJob(t, noWork, 50*time.Millisecond, WithClock(clock.now))

	job.Trigger()

	ticker.last().fn() // delivered before the deadline

	if job.State() != StateWaiting {
		t.Errorf("premature firing must be discarded, state %s", job.State())
	}

	if len(exec.tasks) != 0 {
		t.Error("premature firing must not submit work")
	}

	clock.advance(50 * time.Millisecond)
	ticker.last().fn()

	if job.State() != StateRunning {
		t.Errorf("on-time firing must run, state %s", job.State())
	}
}

func TestFiringAfterTerminateDiscarded(t *testing.T) {
	job, ticker, exec := newManualJob(t, noWork, 0)

	job.Trigger()
	fire := ticker.last().fn

	job.Terminate()
	fire()

	if len(exec.tasks) != 0 {
		t.Error("firing after terminate must not submit work")
	}

	if job.State() != StateTerminated {
		t.Errorf("expected terminated, got %s", job.State())
	}
}

func TestRunningAccumulatesMinimumRearm(t *testing.T) {
	clock := newFakeClock()
	job, ticker, exec := newManualJob(t, noWork, 100*time.Millisecond, WithClock(clock.now))

	job.Trigger()
	clock.advance(100 * time.Millisecond)
	ticker.last().fn()

	job.TriggerDelay(30 * time.Millisecond)
	job.TriggerDelay(10 * time.Millisecond)
	job.TriggerDelay(20 * time.Millisecond) // longer than accumulated, ignored

	exec.runLast()

	if job.State() != StateWaiting {
		t.Fatalf("expected re-armed waiting, got %s", job.State())
	}

	if arm := ticker.last(); arm.delay != 10*time.Millisecond {
		t.Errorf("expected minimum 10ms re-arm, got %v", arm.delay)
	}
}

func TestNoRearmWithoutTriggerDuringRun(t *testing.T) {
	job, ticker, exec := newManualJob(t, noWork, 0)

	job.Trigger()
	ticker.last().fn()
	exec.runLast()

	if job.State() != StateIdle {
		t.Errorf("expected idle, got %s", job.State())
	}

	if ticker.count() != 1 {
		t.Errorf("expected no re-arm, got %d armings", ticker.count())
	}
}

func TestTerminateFromIdle(t *testing.T) {
	job, _, _ := newManualJob(t, noWork, 0)

	job.Terminate()

	if !job.IsTerminated() {
		t.Error("expected terminated")
	}

	// Absorbing: triggers are silent no-ops, terminate is idempotent.
	job.Trigger()
	job.Terminate()

	if job.State() != StateTerminated {
		t.Errorf("expected terminated, got %s", job.State())
	}
}

func TestTerminateFromWaitingCancelsTicker(t *testing.T) {
	job, ticker, _ := newManualJob(t, noWork, time.Second)

	job.Trigger()
	job.Terminate()

	if !job.IsTerminated() {
		t.Error("expected terminated")
	}

	ticker.mu.Lock()
	cancels := len(ticker.cancels)
	ticker.mu.Unlock()

	if cancels != 1 {
		t.Errorf("expected 1 ticker cancel, got %d", cancels)
	}
}

func TestTerminateWhileRunning(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	var sawCancel bool

	job, ticker, exec := newManualJob(t, func(ctx context.Context) error {
		close(started)
		<-release

		select {
		case <-ctx.Done():
			sawCancel = true
		default:
		}

		return ctx.Err()
	}, 0)

	job.Trigger()
	ticker.last().fn()

	done := make(chan struct{})
	go func() {
		exec.runLast()
		close(done)
	}()

	<-started
	job.Terminate()

	if job.State() != StateTerminating {
		t.Errorf("expected terminating, got %s", job.State())
	}

	if job.IsTerminated() {
		t.Error("must not report terminated while work is in flight")
	}

	close(release)
	<-done

	if !sawCancel {
		t.Error("work must observe cancellation after terminate")
	}

	if !job.IsTerminated() {
		t.Error("expected terminated after work returned")
	}
}

func TestRearmDroppedOnTerminate(t *testing.T) {
	job, ticker, exec := newManualJob(t, noWork, 0)

	job.Trigger()
	ticker.last().fn()

	job.TriggerDelay(5 * time.Millisecond) // accumulates a re-arm
	job.Terminate()
	exec.runLast()

	if !job.IsTerminated() {
		t.Error("expected terminated")
	}

	if ticker.count() != 1 {
		t.Errorf("terminating run must not re-arm, got %d armings", ticker.count())
	}
}

func TestWorkErrorLoggedAndSwallowed(t *testing.T) {
	logger := &mockLogger{}
	ticker := &manualTicker{}
	exec := &manualExecutor{}

	job, err := New("test", func(ctx context.Context) error {
		return errors.New("boom")
	}, 0, ticker, exec, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	job.Trigger()
	ticker.last().fn()
	exec.runLast()

	if job.State() != StateIdle {
		t.Errorf("failed run must complete normally, got %s", job.State())
	}

	if logger.errorCount() != 1 {
		t.Errorf("expected 1 error log, got %d", logger.errorCount())
	}
}

func TestWorkPanicRecovered(t *testing.T) {
	logger := &mockLogger{}
	ticker := &manualTicker{}
	exec := &manualExecutor{}

	job, err := New("test", func(ctx context.Context) error {
		panic("kaboom")
	}, 0, ticker, exec, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	job.Trigger()
	ticker.last().fn()
	exec.runLast()

	if job.State() != StateIdle {
		t.Errorf("panicking run must complete normally, got %s", job.State())
	}

	if logger.errorCount() != 1 {
		t.Errorf("expected 1 error log, got %d", logger.errorCount())
	}

	// The coordinator survives: it can run again.
	job.Trigger()

	if job.State() != StateWaiting {
		t.Errorf("expected waiting after re-trigger, got %s", job.State())
	}
}

func TestExecutorRejectionFailsSafeToIdle(t *testing.T) {
	logger := &mockLogger{}
	ticker := &manualTicker{}
	exec := &manualExecutor{err: errors.New("queue full")}

	job, err := New("test", noWork, 0, ticker, exec, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	job.Trigger()
	ticker.last().fn()

	if job.State() != StateIdle {
		t.Errorf("rejected submission must fail safe to idle, got %s", job.State())
	}

	if logger.errorCount() != 1 {
		t.Errorf("expected 1 error log, got %d", logger.errorCount())
	}

	// The next trigger is the retry mechanism.
	exec.mu.Lock()
	exec.err = nil
	exec.mu.Unlock()

	job.Trigger()

	if job.State() != StateWaiting {
		t.Errorf("expected waiting after retry trigger, got %s", job.State())
	}
}

func TestTickerRejectionStaysIdle(t *testing.T) {
	logger := &mockLogger{}
	ticker := &manualTicker{err: errors.New("not running")}
	exec := &manualExecutor{}

	job, err := New("test", noWork, 0, ticker, exec, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	job.Trigger()

	if job.State() != StateIdle {
		t.Errorf("rejected arming must leave job idle, got %s", job.State())
	}

	if logger.errorCount() != 1 {
		t.Errorf("expected 1 error log, got %d", logger.errorCount())
	}
}

func TestMetricsObservations(t *testing.T) {
	type observation struct {
		job string
		err error
	}

	var (
		mu  sync.Mutex
		obs []observation
	)

	metrics := metricsFunc(func(job string, start time.Time, duration time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()

		obs = append(obs, observation{job: job, err: err})
	})

	boom := errors.New("boom")
	fail := true

	ticker := &manualTicker{}
	exec := &manualExecutor{}

	job, err := New("metered", func(ctx context.Context) error {
		if fail {
			return boom
		}

		return nil
	}, 0, ticker, exec, &mockLogger{}, WithMetrics(metrics))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	job.Trigger()
	ticker.last().fn()
	exec.runLast()

	fail = false

	job.Trigger()
	ticker.last().fn()
	exec.runLast()

	mu.Lock()
	defer mu.Unlock()

	if len(obs) != 2 {
		t.Fatalf("expected 2 observations, got %d", len(obs))
	}

	if obs[0].job != "metered" || !errors.Is(obs[0].err, boom) {
		t.Errorf("unexpected first observation: %+v", obs[0])
	}

	if obs[1].err != nil {
		t.Errorf("clean run must observe nil error, got %v", obs[1].err)
	}
}

type metricsFunc func(job string, start time.Time, duration time.Duration, err error)

func (f metricsFunc) Observe(job string, start time.Time, duration time.Duration, err error) {
	f(job, start, duration, err)
}

func TestWithTickerID(t *testing.T) {
	job, ticker, _ := newManualJob(t, noWork, 0, WithTickerID("custom-key"))

	job.Trigger()

	if arm := ticker.last(); arm.id != "custom-key" {
		t.Errorf("expected custom ticker id, got %q", arm.id)
	}

	job.Terminate()

	ticker.mu.Lock()
	defer ticker.mu.Unlock()

	if len(ticker.cancels) != 1 || ticker.cancels[0] != "custom-key" {
		t.Errorf("expected cancel of custom id, got %v", ticker.cancels)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateIdle:        "idle",
		StateWaiting:     "waiting",
		StateRunning:     "running",
		StateTerminating: "terminating",
		StateTerminated:  "terminated",
		State(99):        "unknown",
	}

	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
