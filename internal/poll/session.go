// Package poll drives the client-side observation loop for a job.
//
// A session repeatedly fetches a status snapshot, backing off between
// cycles. Backoff is monotonic for the life of the session (it is not
// reset by a successful poll), so long-running jobs shed load even when
// healthy. A budget of consecutive failures bounds how long a session keeps
// trying through an outage; there is no unbounded retry anywhere.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/inkforge/inkforge/internal/jobs"
)

// Defaults for session tuning. These are contract values, not suggestions:
// the 3s floor prevents busy-looping, the 30s cap bounds staleness, and the
// error budget makes persistent failure a visible terminal condition.
const (
	DefaultInitialInterval = 3 * time.Second
	DefaultMaxInterval     = 30 * time.Second
	DefaultMultiplier      = 1.5
	DefaultErrorBudget     = 10
)

// ErrConnectionLost is delivered to OnError when the error budget is
// exhausted. It speaks about the poller, not the job: the job may still be
// running on the server.
var ErrConnectionLost = errors.New("connection lost, job may still be running")

// State describes where a session is in its lifecycle.
type State string

const (
	StatePolling  State = "polling"
	StateTerminal State = "terminal_received"
	StateAborted  State = "aborted"
	StateStopped  State = "stopped"
)

// Config configures a session.
type Config struct {
	// Snapshot fetches the current job status. Required.
	Snapshot func(ctx context.Context) (*jobs.Record, error)

	// OnStatus is invoked after every successful poll, including the
	// terminal one. Optional.
	OnStatus func(*jobs.Record)

	// OnError is invoked once with ErrConnectionLost if the error budget
	// is exhausted. Optional.
	OnError func(error)

	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	ErrorBudget     int

	Logger *slog.Logger
}

// Session is one observation loop. Callbacks run with the session lock
// held, which is what makes Stop synchronous: once Stop returns, no
// callback will fire. Callbacks must not call Stop; terminal states and
// the error budget end the session on their own.
type Session struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	mu                sync.Mutex
	timer             *time.Timer
	interval          time.Duration
	consecutiveErrors int
	state             State
	done              chan struct{}
}

// Start begins polling immediately and returns without blocking; waiting
// between cycles happens on a timer, never by blocking the caller.
func Start(ctx context.Context, cfg Config) *Session {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = DefaultMultiplier
	}
	if cfg.ErrorBudget <= 0 {
		cfg.ErrorBudget = DefaultErrorBudget
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		cfg:      cfg,
		ctx:      sctx,
		cancel:   cancel,
		interval: cfg.InitialInterval,
		state:    StatePolling,
		done:     make(chan struct{}),
	}

	// First cycle fires immediately; there is exactly one outstanding
	// timer per session at any time.
	s.timer = time.AfterFunc(0, s.cycle)
	return s
}

// Stop cancels the session. It synchronously prevents any already-scheduled
// cycle from firing: after Stop returns, no callback runs. Safe to call
// more than once.
func (s *Session) Stop() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished() {
		return
	}
	s.timer.Stop()
	s.state = StateStopped
	close(s.done)
}

// Done is closed when the session ends for any reason.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// cycle runs one poll. The fetch happens outside the lock so Stop is never
// blocked behind a slow request; the post-fetch check makes a cancelled
// cycle a no-op even if its timer had already fired.
func (s *Session) cycle() {
	s.mu.Lock()
	if s.finished() {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	rec, err := s.cfg.Snapshot(s.ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished() {
		return
	}

	if err != nil {
		s.consecutiveErrors++
		s.cfg.Logger.Debug("poll failed", "consecutive_errors", s.consecutiveErrors, "error", err)
		if s.consecutiveErrors >= s.cfg.ErrorBudget {
			s.state = StateAborted
			// The error is delivered before Done closes, so a waiter
			// that wakes on Done always sees the abort. Mirrors the
			// terminal path, where OnStatus precedes the close.
			if s.cfg.OnError != nil {
				s.cfg.OnError(ErrConnectionLost)
			}
			close(s.done)
			return
		}
	} else {
		s.consecutiveErrors = 0
		if s.cfg.OnStatus != nil {
			s.cfg.OnStatus(rec)
		}
		if rec.Status.Terminal() {
			s.state = StateTerminal
			close(s.done)
			return
		}
	}

	s.schedule()
}

// schedule arms the timer for the next cycle and advances the backoff.
// The current interval is used for this gap, producing the 3000, 4500,
// 6750, ... sequence; the interval then grows toward the cap and stays
// there. Called with the lock held.
func (s *Session) schedule() {
	delay := s.interval

	next := time.Duration(float64(s.interval) * s.cfg.Multiplier)
	if next > s.cfg.MaxInterval {
		next = s.cfg.MaxInterval
	}
	s.interval = next

	s.timer = time.AfterFunc(delay, s.cycle)
}

// finished reports whether the session has ended. Called with the lock held.
func (s *Session) finished() bool {
	return s.state != StatePolling
}
