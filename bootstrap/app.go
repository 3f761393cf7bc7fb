package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kbukum/permgate/logger"
)

// App is a process with a uniform lifecycle. C is the application config type.
type App[C Config] struct {
	Name    string
	Version string
	Cfg     C
	Logger  *logger.Logger

	gracefulTimeout time.Duration
	onStart         []Hook
	onStop          []Hook
	workers         []worker
}

type worker struct {
	name string
	run  func(ctx context.Context) error
}

// NewApp applies defaults, validates cfg and initializes the logger.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	base := cfg.GetServiceConfig()
	o := resolveOptions(opts)

	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		gracefulTimeout: o.gracefulTimeout,
	}
	if o.logger != nil {
		app.Logger = o.logger
	} else {
		app.Logger = logger.Init(base.Logging, base.Name)
	}
	return app, nil
}

// Go registers a worker. Workers must return when their context is canceled;
// returning an error stops the application.
func (a *App[C]) Go(name string, run func(ctx context.Context) error) {
	a.workers = append(a.workers, worker{name: name, run: run})
}

// Run starts the application and blocks until a signal arrives, ctx is
// canceled or a worker fails. The returned error is the first worker
// failure joined with any stop hook failures.
func (a *App[C]) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx, true)
}

// RunTask runs task with the same lifecycle and returns when it completes.
// Registered workers run alongside it and are canceled when it returns.
func (a *App[C]) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	a.Go("task", func(ctx context.Context) error {
		if err := task(ctx); err != nil {
			return err
		}
		return errTaskDone
	})
	err := a.run(ctx, false)
	if errors.Is(err, errTaskDone) {
		return nil
	}
	return err
}

var errTaskDone = errors.New("task done")

func (a *App[C]) run(ctx context.Context, blockUntilDone bool) error {
	start := time.Now()
	a.Logger.Info("starting application", logger.Fields("name", a.Name, "version", a.Version))

	if err := runHooks(ctx, a.onStart); err != nil {
		return errors.Join(fmt.Errorf("start: %w", err), a.shutdown())
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range a.workers {
		g.Go(func() error {
			err := w.run(gctx)
			if err != nil && !errors.Is(err, errTaskDone) && !errors.Is(err, context.Canceled) {
				a.Logger.Error("worker failed", logger.Fields("worker", w.name, logger.FieldError, err.Error()))
				return fmt.Errorf("%s: %w", w.name, err)
			}
			return err
		})
	}
	a.Logger.Info("application ready", logger.Fields(
		"workers", len(a.workers),
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))

	if blockUntilDone {
		<-gctx.Done()
	}
	runErr := g.Wait()
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return errors.Join(runErr, a.shutdown())
}

func (a *App[C]) shutdown() error {
	a.Logger.Info("shutting down", logger.Fields("timeout", a.gracefulTimeout.String()))
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	err := runStopHooks(ctx, a.onStop)
	if err != nil {
		a.Logger.Error("shutdown completed with errors", logger.ErrorFields("shutdown", err))
	} else {
		a.Logger.Info("shutdown complete")
	}
	return err
}
