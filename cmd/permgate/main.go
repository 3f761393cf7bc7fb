// Command permgate runs a permission session behind the HTTP bridge.
//
//	permgate --config ./config.yml --env-file .env
//
// A host connects to GET /v1/permissions/prompts, shows each prompt it
// receives and posts the answer to /v1/permissions/results.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/kbukum/permgate/bootstrap"
	"github.com/kbukum/permgate/bridge"
	"github.com/kbukum/permgate/config"
	"github.com/kbukum/permgate/logger"
	"github.com/kbukum/permgate/observability"
	"github.com/kbukum/permgate/permission"
	"github.com/kbukum/permgate/version"
)

const serviceName = "permgate"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "permgate:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := pflag.NewFlagSet(serviceName, pflag.ContinueOnError)
	configFile := fs.StringP("config", "c", "", "path to the YAML config file")
	envFile := fs.String("env-file", "", "path to a .env file")
	showVersion := fs.BoolP("version", "v", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Println(version.Get())
		return nil
	}

	var cfg AppConfig
	if err := config.LoadConfig(serviceName, &cfg, config.WithConfigFile(*configFile), config.WithEnvFile(*envFile)); err != nil {
		return err
	}
	if cfg.Version == "" {
		cfg.Version = version.Short()
	}
	app, err := bootstrap.NewApp(&cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	if err := wire(ctx, app); err != nil {
		return err
	}
	return app.Run(ctx)
}

// wire builds the session and bridge and registers their lifecycle on app.
func wire(ctx context.Context, app *bootstrap.App[*AppConfig]) error {
	cfg := app.Cfg

	shutdownTelemetry, err := observability.Setup(ctx, cfg.Observability, observability.ServiceInfo{
		Name:        cfg.Name,
		Version:     cfg.Version,
		Environment: cfg.Environment,
	})
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	app.OnStop(bootstrap.Hook(shutdownTelemetry))

	metrics, err := observability.NewGateMetrics(observability.Meter(serviceName))
	if err != nil {
		return fmt.Errorf("gate metrics: %w", err)
	}

	hub := bridge.NewHub(app.Logger.WithComponent("sse_hub"))
	table := permission.NewStatusTable(nil)
	session := permission.NewSession(table, bridge.NewPromptRequester(hub),
		permission.WithConfig(cfg.Gate),
		permission.WithLogger(app.Logger.WithComponent("permission")),
		permission.WithMetrics(metrics),
	)
	tracking := session.Track(table)
	app.OnStop(func(context.Context) error {
		tracking.Cancel()
		session.Close()
		return nil
	})

	srv, err := bridge.New(cfg.Bridge, bridge.Deps{
		Session: session,
		Table:   table,
		Hub:     hub,
		Service: cfg.Name,
	}, app.Logger)
	if err != nil {
		return err
	}
	app.OnStart(srv.Start)
	app.OnStop(srv.Stop)

	if len(cfg.Require.Permissions) > 0 {
		req := newRequirement(session, cfg.Require, cfg.ErrorPolicy.Build(), app.Logger.WithComponent("require"))
		app.Go("require", req.Run)
	}

	app.Logger.Info("permgate configured", logger.Fields(
		"match", cfg.Gate.Match,
		"legacy", cfg.Gate.Legacy,
		"addr", cfg.Bridge.Addr(),
		"auth", cfg.Bridge.JWTSecret != "",
		"telemetry", cfg.Observability.Enabled,
		"require", cfg.Require.Permissions,
	))
	return nil
}
