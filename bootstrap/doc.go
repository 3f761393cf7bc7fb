// Package bootstrap runs a permgate process: typed config, logger, start
// hooks, long-running workers and graceful shutdown on SIGINT/SIGTERM.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.OnStart(srv.Start)
//	app.OnStop(srv.Stop)
//	app.Go("require", watcher.Run)
//	return app.Run(ctx)
//
// Start hooks run in order before any worker. Workers share a context that
// is canceled on signal or when any worker fails. Stop hooks run in reverse
// registration order within the graceful timeout.
package bootstrap
