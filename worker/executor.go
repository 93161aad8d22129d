package worker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/isogon/sandboxd/protocol"
	"github.com/isogon/sandboxd/sandbox"
)

// Executor orchestrates one request's lifecycle against the runtime:
// capture install, file staging, bounded execution, outcome classification,
// capture restore. A mutex keeps executions strictly serial even when an
// embedding dispatches from concurrent handlers.
type Executor struct {
	logger *zap.Logger
	engine sandbox.Engine

	defaultTimeoutSec int

	mu sync.Mutex
}

// ExecutorOption defines a functional option for Executor
type ExecutorOption func(*Executor)

// WithDefaultTimeoutSec overrides the timeout applied to requests that
// carry none. Non-positive values are ignored.
func WithDefaultTimeoutSec(sec int) ExecutorOption {
	return func(e *Executor) {
		if sec > 0 {
			e.defaultTimeoutSec = sec
		}
	}
}

// NewExecutor creates an Executor over the given engine.
func NewExecutor(logger *zap.Logger, engine sandbox.Engine, opts ...ExecutorOption) *Executor {
	e := &Executor{
		logger:            logger,
		engine:            engine,
		defaultTimeoutSec: protocol.DefaultTimeoutSec,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize warms the runtime. Idempotent; the dispatcher calls it eagerly
// before the first request so later requests never absorb cold-start cost.
func (e *Executor) Initialize() error {
	return e.engine.Initialize()
}

// Handle dispatches a validated request to the matching operation.
func (e *Executor) Handle(ctx context.Context, req protocol.Request) protocol.Result {
	switch req.Type {
	case protocol.RequestWriteFile:
		return e.writeFile(req)
	default:
		return e.Execute(ctx, req)
	}
}

func (e *Executor) writeFile(req protocol.Request) protocol.Result {
	if err := e.engine.WriteFile(req.Path, req.Content); err != nil {
		e.logger.Warn("writeFile request failed", zap.String("path", req.Path), zap.Error(err))
		return protocol.Fail(err.Error(), "", nil)
	}
	return protocol.OK(fmt.Sprintf("File written to %s", req.Path), nil)
}

// Execute runs one execute request end to end. The capture installed at the
// top is restored exactly once on every branch; the deferred guard covers
// panics so a blown-up request cannot leak buffered output into the next.
func (e *Executor) Execute(ctx context.Context, req protocol.Request) protocol.Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.engine.Initialize(); err != nil {
		return protocol.Fail(fmt.Sprintf("runtime initialization failed: %v", err), "", nil)
	}

	capture := e.engine.InstallCapture()
	restored := false
	defer func() {
		if !restored {
			capture.Restore()
		}
	}()

	logs := []string{}
	for path, content := range req.Files {
		if err := e.engine.WriteFile(path, content); err != nil {
			// Best effort: record and keep going.
			e.logger.Warn("file staging failed", zap.String("path", path), zap.Error(err))
			logs = append(logs, fmt.Sprintf("failed to stage file: %v", err))
		}
	}

	timeoutSec := req.TimeoutSec
	if timeoutSec <= 0 {
		timeoutSec = e.defaultTimeoutSec
	}
	res := e.engine.RunBounded(ctx, req.Code, time.Duration(timeoutSec)*time.Second)

	stdout, stderr := capture.Restore()
	restored = true
	logs = appendStderrLines(logs, stderr)

	switch res.Outcome {
	case sandbox.OutcomeTimedOut:
		return protocol.Fail(fmt.Sprintf("Execution timed out after %d seconds", timeoutSec), stdout, logs)
	case sandbox.OutcomeFailed:
		if res.GuestFault {
			// Native interpreter diagnostics pass through verbatim.
			return protocol.Fail(res.Err.Error(), stdout, logs)
		}
		return protocol.Fail(fmt.Sprintf("Execution error: %v", res.Err), stdout, logs)
	}

	output := stdout
	if res.Value != "" {
		if output != "" && !strings.HasSuffix(output, "\n") {
			output += "\n"
		}
		output += res.Value
	}
	return protocol.OK(output, logs)
}

// appendStderrLines folds captured guest stderr into the result logs,
// one entry per non-empty line.
func appendStderrLines(logs []string, stderr string) []string {
	for _, line := range strings.Split(stderr, "\n") {
		if line != "" {
			logs = append(logs, line)
		}
	}
	return logs
}
