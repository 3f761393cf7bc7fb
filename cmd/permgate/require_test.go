package main

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/permgate/behavior"
	"github.com/kbukum/permgate/errors"
	"github.com/kbukum/permgate/logger"
	"github.com/kbukum/permgate/permission"
	"github.com/kbukum/permgate/resilience"
)

// host answers prompts through the session after failing the first
// `unreachable` dispatches.
type host struct {
	mu          sync.Mutex
	session     *permission.Session
	unreachable int
	outcome     permission.Outcome
	silent      bool
	prompts     int
}

func (h *host) RequestPermissions(_ context.Context, perms permission.Set) error {
	h.mu.Lock()
	h.prompts++
	if h.unreachable > 0 {
		h.unreachable--
		h.mu.Unlock()
		return errors.RequestFailed(stderrors.New("no prompt client connected"))
	}
	session, outcome, silent := h.session, h.outcome, h.silent
	h.mu.Unlock()

	if !silent {
		outcomes := make([]permission.Outcome, len(perms))
		for i := range outcomes {
			outcomes[i] = outcome
		}
		go session.Deliver(perms, outcomes)
	}
	return nil
}

func (h *host) promptCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.prompts
}

func newRequireFixture(t *testing.T, h *host, cfg RequireConfig, policy behavior.Behavior) *requirement {
	t.Helper()
	table := permission.NewStatusTable(nil)
	session := permission.NewSession(table, h, permission.WithLogger(logger.Nop()))
	h.session = session
	t.Cleanup(session.Close)

	if cfg.Permissions == nil {
		cfg.Permissions = []string{"LOCATION"}
	}
	cfg.Retry = resilience.RetryConfig{InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, BackoffFactor: 2}
	cfg.Retry.ApplyDefaults()
	return newRequirement(session, cfg, policy, logger.Nop())
}

func TestRequirementGranted(t *testing.T) {
	h := &host{unreachable: 2, outcome: permission.Granted}
	r := newRequireFixture(t, h, RequireConfig{}, behavior.Nop)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if got := h.promptCount(); got != 3 {
		t.Errorf("prompts = %d, want 3 (two failed dispatches then one answered)", got)
	}
}

func TestRequirementDenied(t *testing.T) {
	t.Run("fatal without policy", func(t *testing.T) {
		h := &host{outcome: permission.Denied}
		r := newRequireFixture(t, h, RequireConfig{}, behavior.Nop)

		err := r.Run(context.Background())
		if !errors.IsPermissionDenied(err) {
			t.Fatalf("Run = %v, want permission denied", err)
		}
		if h.promptCount() != 1 {
			t.Errorf("denial must not be retried, prompts = %d", h.promptCount())
		}
	})

	t.Run("tolerated by policy", func(t *testing.T) {
		h := &host{outcome: permission.Denied}
		policy := behavior.NewErrorPolicy(errors.ErrCodePermissionDenied)
		r := newRequireFixture(t, h, RequireConfig{}, policy)

		if err := r.Run(context.Background()); err != nil {
			t.Fatalf("Run = %v, want nil", err)
		}
	})
}

func TestRequirementTimeoutRetriesPrompt(t *testing.T) {
	h := &host{silent: true}
	r := newRequireFixture(t, h, RequireConfig{Timeout: 5 * time.Millisecond}, behavior.Nop)
	r.retry.MaxAttempts = 3

	err := r.Run(context.Background())
	if errors.CodeOf(err) != errors.ErrCodeTimeout {
		t.Fatalf("Run = %v, want TIMEOUT", err)
	}
	if got := h.promptCount(); got != 3 {
		t.Errorf("prompts = %d, want 3", got)
	}
}

func TestRequirementStopsOnShutdown(t *testing.T) {
	h := &host{silent: true}
	r := newRequireFixture(t, h, RequireConfig{}, behavior.IgnoreAll())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !stderrors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled even with IgnoreAll", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
