package poll

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/inkforge/inkforge/internal/jobs"
)

func TestBackoffSequence(t *testing.T) {
	// Drive schedule directly with a finished session so the armed timers
	// never run a cycle.
	s := &Session{
		cfg: Config{
			InitialInterval: DefaultInitialInterval,
			MaxInterval:     DefaultMaxInterval,
			Multiplier:      DefaultMultiplier,
		},
		interval: DefaultInitialInterval,
		state:    StateStopped,
		done:     make(chan struct{}),
	}

	want := []time.Duration{
		3000 * time.Millisecond,
		4500 * time.Millisecond,
		6750 * time.Millisecond,
		10125 * time.Millisecond,
		15187500 * time.Microsecond,
		22781250 * time.Microsecond,
		30000 * time.Millisecond,
		30000 * time.Millisecond,
		30000 * time.Millisecond,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range want {
		// The gap before the next cycle is the current interval.
		if s.interval != w {
			t.Fatalf("cycle %d: interval = %v, want %v", i, s.interval, w)
		}
		s.schedule()
		s.timer.Stop()
	}
}

// scriptedSnapshot returns canned results in order, repeating the last one.
func scriptedSnapshot(results []error) func(context.Context) (*jobs.Record, error) {
	var mu sync.Mutex
	i := 0
	return func(ctx context.Context) (*jobs.Record, error) {
		mu.Lock()
		defer mu.Unlock()
		r := results[i]
		if i < len(results)-1 {
			i++
		}
		if r != nil {
			return nil, r
		}
		return &jobs.Record{Status: jobs.StageWritingContent, Progress: 50}, nil
	}
}

func fastConfig(cfg Config) Config {
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 2 * time.Millisecond
	cfg.Multiplier = 1.5
	return cfg
}

func TestSessionTerminalStops(t *testing.T) {
	var mu sync.Mutex
	var statuses []*jobs.Record

	s := Start(context.Background(), fastConfig(Config{
		Snapshot: func(ctx context.Context) (*jobs.Record, error) {
			return &jobs.Record{Status: jobs.StageCompleted, Progress: 100}, nil
		},
		OnStatus: func(rec *jobs.Record) {
			mu.Lock()
			statuses = append(statuses, rec)
			mu.Unlock()
		},
	}))

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not stop on terminal status")
	}

	if got := s.State(); got != StateTerminal {
		t.Errorf("state = %s, want %s", got, StateTerminal)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(statuses) != 1 {
		t.Errorf("expected exactly one status callback, got %d", len(statuses))
	}
}

func TestSessionErrorBudget(t *testing.T) {
	boom := errors.New("connection refused")

	t.Run("aborts after budget consecutive errors", func(t *testing.T) {
		var mu sync.Mutex
		errCount, statusCount := 0, 0

		s := Start(context.Background(), fastConfig(Config{
			Snapshot: scriptedSnapshot([]error{boom}),
			OnStatus: func(*jobs.Record) { mu.Lock(); statusCount++; mu.Unlock() },
			OnError: func(err error) {
				mu.Lock()
				errCount++
				mu.Unlock()
				if !errors.Is(err, ErrConnectionLost) {
					t.Errorf("expected ErrConnectionLost, got %v", err)
				}
			},
			ErrorBudget: 4,
		}))

		select {
		case <-s.Done():
		case <-time.After(time.Second):
			t.Fatal("session did not abort")
		}

		if got := s.State(); got != StateAborted {
			t.Errorf("state = %s, want %s", got, StateAborted)
		}
		mu.Lock()
		defer mu.Unlock()
		if errCount != 1 {
			t.Errorf("OnError fired %d times, want once", errCount)
		}
		if statusCount != 0 {
			t.Errorf("OnStatus fired %d times, want none", statusCount)
		}
	})

	t.Run("abort error is delivered before Done closes", func(t *testing.T) {
		// A waiter that wakes on Done must already be able to see the
		// abort; otherwise it can read a nil error for an aborted session.
		delivered := make(chan error, 1)

		s := Start(context.Background(), fastConfig(Config{
			Snapshot:    scriptedSnapshot([]error{boom}),
			OnError:     func(err error) { delivered <- err },
			ErrorBudget: 2,
		}))

		select {
		case <-s.Done():
		case <-time.After(time.Second):
			t.Fatal("session did not abort")
		}

		select {
		case err := <-delivered:
			if !errors.Is(err, ErrConnectionLost) {
				t.Errorf("delivered error = %v, want ErrConnectionLost", err)
			}
		default:
			t.Fatal("Done observable before OnError delivered the abort error")
		}
	})

	t.Run("a success resets the consecutive count", func(t *testing.T) {
		// Three failures, one success, then failures again. With a budget
		// of four the abort must come from the second streak, after the
		// session has reported status once.
		script := []error{boom, boom, boom, nil, boom}

		var mu sync.Mutex
		statusCount := 0

		s := Start(context.Background(), fastConfig(Config{
			Snapshot:    scriptedSnapshot(script),
			OnStatus:    func(*jobs.Record) { mu.Lock(); statusCount++; mu.Unlock() },
			ErrorBudget: 4,
		}))

		select {
		case <-s.Done():
		case <-time.After(time.Second):
			t.Fatal("session did not abort")
		}

		mu.Lock()
		defer mu.Unlock()
		if statusCount != 1 {
			t.Errorf("OnStatus fired %d times, want once", statusCount)
		}
		if got := s.State(); got != StateAborted {
			t.Errorf("state = %s, want %s", got, StateAborted)
		}
	})
}

func TestSessionStopIsSynchronous(t *testing.T) {
	var mu sync.Mutex
	count := 0

	s := Start(context.Background(), fastConfig(Config{
		Snapshot: func(ctx context.Context) (*jobs.Record, error) {
			return &jobs.Record{Status: jobs.StageWritingContent}, nil
		},
		OnStatus: func(*jobs.Record) { mu.Lock(); count++; mu.Unlock() },
	}))

	time.Sleep(5 * time.Millisecond)
	s.Stop()

	mu.Lock()
	after := count
	mu.Unlock()

	// No callback may fire once Stop has returned.
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != after {
		t.Errorf("callbacks fired after Stop: %d -> %d", after, count)
	}
	if got := s.State(); got != StateStopped {
		t.Errorf("state = %s, want %s", got, StateStopped)
	}

	// Stop is idempotent.
	s.Stop()
}

func TestSessionBackoffNotResetBySuccess(t *testing.T) {
	s := Start(context.Background(), Config{
		Snapshot: func(ctx context.Context) (*jobs.Record, error) {
			return &jobs.Record{Status: jobs.StageWritingContent}, nil
		},
		InitialInterval: time.Millisecond,
		MaxInterval:     8 * time.Millisecond,
		Multiplier:      2,
	})
	defer s.Stop()

	deadline := time.After(time.Second)
	for {
		s.mu.Lock()
		interval := s.interval
		s.mu.Unlock()
		if interval == 8*time.Millisecond {
			return // reached the cap despite every poll succeeding
		}
		select {
		case <-deadline:
			t.Fatal("interval never reached the cap")
		case <-time.After(time.Millisecond):
		}
	}
}
