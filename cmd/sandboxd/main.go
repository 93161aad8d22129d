package main

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isogon/sandboxd/config"
	"github.com/isogon/sandboxd/logger"
	"github.com/isogon/sandboxd/mcpserver"
	"github.com/isogon/sandboxd/sandbox"
	"github.com/isogon/sandboxd/worker"
)

func newEngine(cfg *config.Config, log *zap.Logger) sandbox.Engine {
	preload := cfg.Runtime.Preload
	if len(preload) == 0 {
		preload = sandbox.DefaultPreload
	}
	return sandbox.New(log, sandbox.Options{Preload: preload})
}

func newExecutor(cfg *config.Config, log *zap.Logger, engine sandbox.Engine) *worker.Executor {
	return worker.NewExecutor(log, engine,
		worker.WithDefaultTimeoutSec(cfg.Execution.DefaultTimeoutSec))
}

func main() {
	app := fx.New(
		// Provide dependencies
		fx.Provide(
			config.New,
			logger.NewFromConfig,
			newEngine,
			newExecutor,
			mcpserver.New,
		),

		// Start the appropriate transport based on config
		fx.Invoke(
			func(cfg *config.Config, log *zap.Logger, executor *worker.Executor, server *mcpserver.Server, shutdowner fx.Shutdowner) {
				switch cfg.Worker.Transport {
				case "stdio":
					go func() {
						w := worker.New(log, executor, os.Stdin, os.Stdout,
							worker.WithMaxLineBytes(cfg.Execution.MaxLineBytes))
						if err := w.Run(context.Background()); err != nil {
							log.Error("worker terminated", zap.Error(err))
							_ = shutdowner.Shutdown(fx.ExitCode(1))
							return
						}
						// Input EOF is the clean end of a session.
						_ = shutdowner.Shutdown()
					}()
				case "mcp":
					go func() {
						if err := server.ServeStdio(); err != nil {
							log.Error("mcp server terminated", zap.Error(err))
							_ = shutdowner.Shutdown(fx.ExitCode(1))
							return
						}
						_ = shutdowner.Shutdown()
					}()
				default:
					panic("unsupported transport: " + cfg.Worker.Transport)
				}
			},
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)

	app.Run()
}
