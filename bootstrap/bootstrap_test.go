package bootstrap

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/permgate/config"
	"github.com/kbukum/permgate/logger"
)

type testConfig struct {
	config.ServiceConfig
	Extra    string
	extraErr error
}

func (c *testConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Extra == "" {
		c.Extra = "default"
	}
}

func (c *testConfig) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	return c.extraErr
}

func newTestApp(t *testing.T, cfg *testConfig) *App[*testConfig] {
	t.Helper()
	app, err := NewApp(cfg, WithLogger(logger.Nop()), WithGracefulTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

// recorder collects lifecycle events in order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) hook(name string, err error) Hook {
	return func(context.Context) error {
		r.add(name)
		return err
	}
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func TestNewAppAppliesDefaults(t *testing.T) {
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Version: "1.0.0"}}
	app := newTestApp(t, cfg)
	if app.Name != "permgate" || app.Version != "1.0.0" {
		t.Errorf("app identity = %q %q", app.Name, app.Version)
	}
	if cfg.Extra != "default" {
		t.Errorf("own ApplyDefaults not called, Extra = %q", cfg.Extra)
	}
}

func TestNewAppValidationError(t *testing.T) {
	cfg := &testConfig{extraErr: errors.New("bad extra")}
	_, err := NewApp(cfg, WithLogger(logger.Nop()))
	if err == nil || !strings.Contains(err.Error(), "bad extra") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	app := newTestApp(t, &testConfig{})
	rec := &recorder{}
	app.OnStart(rec.hook("start-1", nil), rec.hook("start-2", nil))
	app.OnStop(rec.hook("stop-1", nil), rec.hook("stop-2", nil))
	app.Go("worker", func(ctx context.Context) error {
		rec.add("worker")
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	want := []string{"start-1", "start-2", "worker", "stop-2", "stop-1"}
	if diff := cmp.Diff(want, rec.list()); diff != "" {
		t.Errorf("lifecycle order (-want +got):\n%s", diff)
	}
}

func TestRunWorkerFailureStopsApp(t *testing.T) {
	app := newTestApp(t, &testConfig{})
	rec := &recorder{}
	app.OnStop(rec.hook("stop", nil))
	boom := errors.New("boom")
	app.Go("failing", func(context.Context) error { return boom })
	app.Go("idle", func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	err := app.Run(context.Background())
	if !errors.Is(err, boom) || !strings.Contains(err.Error(), "failing") {
		t.Fatalf("Run = %v, want wrapped boom", err)
	}
	if diff := cmp.Diff([]string{"stop"}, rec.list()); diff != "" {
		t.Errorf("stop hooks (-want +got):\n%s", diff)
	}
}

func TestRunStartFailureRunsStopHooks(t *testing.T) {
	app := newTestApp(t, &testConfig{})
	rec := &recorder{}
	app.OnStart(rec.hook("start", errors.New("bind failed")))
	app.OnStop(rec.hook("stop", nil))
	app.Go("never", func(context.Context) error {
		rec.add("worker")
		return nil
	})

	err := app.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "bind failed") {
		t.Fatalf("Run = %v", err)
	}
	if diff := cmp.Diff([]string{"start", "stop"}, rec.list()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func TestRunTask(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		app := newTestApp(t, &testConfig{})
		rec := &recorder{}
		app.OnStop(rec.hook("stop", nil))
		err := app.RunTask(context.Background(), func(context.Context) error {
			rec.add("task")
			return nil
		})
		if err != nil {
			t.Fatalf("RunTask = %v", err)
		}
		if diff := cmp.Diff([]string{"task", "stop"}, rec.list()); diff != "" {
			t.Errorf("events (-want +got):\n%s", diff)
		}
	})

	t.Run("failure", func(t *testing.T) {
		app := newTestApp(t, &testConfig{})
		boom := errors.New("boom")
		if err := app.RunTask(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("RunTask = %v", err)
		}
	})

	t.Run("cancels sibling workers", func(t *testing.T) {
		app := newTestApp(t, &testConfig{})
		stopped := make(chan struct{})
		app.Go("sibling", func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		})
		if err := app.RunTask(context.Background(), func(context.Context) error { return nil }); err != nil {
			t.Fatalf("RunTask = %v", err)
		}
		select {
		case <-stopped:
		default:
			t.Error("sibling worker still running")
		}
	})
}

func TestStopHookErrorsJoined(t *testing.T) {
	app := newTestApp(t, &testConfig{})
	app.OnStop(func(context.Context) error { return errors.New("a") })
	app.OnStop(func(context.Context) error { return errors.New("b") })

	err := app.RunTask(context.Background(), func(context.Context) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "a") || !strings.Contains(err.Error(), "b") {
		t.Fatalf("RunTask = %v, want both stop errors", err)
	}
}
