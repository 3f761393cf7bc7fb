package main

import (
	"context"
	"time"

	"github.com/kbukum/permgate/behavior"
	"github.com/kbukum/permgate/errors"
	"github.com/kbukum/permgate/logger"
	"github.com/kbukum/permgate/permission"
	"github.com/kbukum/permgate/resilience"
)

// requirement gates once on a fixed permission set. Failed prompt dispatches
// (no host connected yet) are retried with backoff. The error policy decides
// whether a refusal stops the process.
type requirement struct {
	gate    *permission.Gate
	policy  behavior.Behavior
	retry   resilience.RetryConfig
	timeout time.Duration
	log     *logger.Logger
}

func newRequirement(session *permission.Session, cfg RequireConfig, policy behavior.Behavior, log *logger.Logger) *requirement {
	retry := cfg.Retry
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		log.Debug("permission prompt not dispatched, retrying", logger.Fields(
			"attempt", attempt,
			"backoff", backoff.String(),
			logger.FieldError, err.Error(),
		))
	}
	return &requirement{
		gate:    session.Gate(cfg.Permissions...),
		policy:  policy,
		retry:   retry,
		timeout: cfg.Timeout,
		log:     log,
	}
}

// Run implements a bootstrap worker.
func (r *requirement) Run(ctx context.Context) error {
	granted := false
	attempt := behavior.ApplyCompletable(
		behavior.Chain(behavior.WithLogging(r.log, "require"), r.gate),
		func(context.Context) error {
			granted = true
			return nil
		},
	)
	retrying := func(ctx context.Context) error {
		return resilience.Retry(ctx, r.retry, func(ctx context.Context) error {
			if r.timeout <= 0 {
				return attempt(ctx)
			}
			ctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			err := attempt(ctx)
			if ctx.Err() == context.DeadlineExceeded {
				return errors.Timeout("require")
			}
			return err
		})
	}

	err := behavior.ApplyCompletable(r.policy, retrying)(ctx)
	switch {
	case err != nil:
		return err
	case granted:
		r.log.Info("required permissions granted", logger.Fields(logger.FieldPermissions, r.gate.Required()))
	default:
		r.log.Warn("required permissions not granted, continuing", logger.Fields(logger.FieldPermissions, r.gate.Required()))
	}
	return nil
}
