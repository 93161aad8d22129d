package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// defaultRunTimeout bounds executions whose caller passed no usable timeout.
const defaultRunTimeout = 30 * time.Second

// errDeadline is the value delivered to the interpreter's interrupt
// checkpoint when the deadline timer fires.
var errDeadline = errors.New("execution deadline exceeded")

// Options configures a Runtime.
type Options struct {
	// Preload names the prelude modules compiled and loaded during
	// initialization. Unknown names fail Initialize.
	Preload []string
}

// Runtime is the goja-backed Engine implementation. One Runtime owns one
// interpreter heap and one in-memory filesystem; both live until process
// exit and are shared by every request the Runtime serves.
type Runtime struct {
	logger *zap.Logger
	opts   Options

	initOnce sync.Once
	initErr  error
	initRuns int // expensive setups actually performed

	vm *goja.Runtime
	fs afero.Fs

	// Current guest output sinks. InstallCapture swaps these for buffers;
	// Restore puts them back.
	stdout io.Writer
	stderr io.Writer
}

var _ Engine = (*Runtime)(nil)

// New creates an uninitialized Runtime. The filesystem exists immediately so
// files can be staged before the first execution; the interpreter itself is
// built lazily by Initialize.
func New(logger *zap.Logger, opts Options) *Runtime {
	return &Runtime{
		logger: logger,
		opts:   opts,
		fs:     afero.NewMemMapFs(),
		stdout: io.Discard,
		stderr: io.Discard,
	}
}

// Initialize performs the one-time warm start: interpreter construction,
// host builtins, and the configured prelude module set. Repeated and
// concurrent calls perform the setup exactly once and observe the same
// error. A first-initialization failure leaves the Runtime unusable.
func (r *Runtime) Initialize() error {
	r.initOnce.Do(func() {
		r.initRuns++
		start := time.Now()
		r.initErr = r.setup()
		if r.initErr == nil {
			r.logger.Info("runtime initialized",
				zap.Strings("preload", r.opts.Preload),
				zap.Duration("took", time.Since(start)))
		}
	})
	return r.initErr
}

// Ready reports whether the warm start completed successfully.
func (r *Runtime) Ready() bool {
	return r.vm != nil
}

func (r *Runtime) setup() error {
	vm := goja.New()

	echo := func(sink *io.Writer) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			fmt.Fprintln(*sink, strings.Join(parts, " "))
			return goja.Undefined()
		}
	}

	if err := vm.Set("print", echo(&r.stdout)); err != nil {
		return fmt.Errorf("install print: %w", err)
	}

	console := vm.NewObject()
	if err := console.Set("log", echo(&r.stdout)); err != nil {
		return fmt.Errorf("install console.log: %w", err)
	}
	if err := console.Set("error", echo(&r.stderr)); err != nil {
		return fmt.Errorf("install console.error: %w", err)
	}
	if err := vm.Set("console", console); err != nil {
		return fmt.Errorf("install console: %w", err)
	}

	if err := vm.Set("readFile", func(call goja.FunctionCall) goja.Value {
		content, err := r.ReadFile(call.Argument(0).String())
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(content)
	}); err != nil {
		return fmt.Errorf("install readFile: %w", err)
	}

	if err := vm.Set("writeFile", func(call goja.FunctionCall) goja.Value {
		path := call.Argument(0).String()
		if err := r.WriteFile(path, call.Argument(1).String()); err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	}); err != nil {
		return fmt.Errorf("install writeFile: %w", err)
	}

	for _, name := range r.opts.Preload {
		prog, err := preludeProgram(name)
		if err != nil {
			return fmt.Errorf("compile prelude %q: %w", name, err)
		}
		if _, err := vm.RunProgram(prog); err != nil {
			return fmt.Errorf("load prelude %q: %w", name, err)
		}
	}

	r.vm = vm
	return nil
}

// RunBounded executes guest code racing a cooperative deadline. The
// interrupt is a shared flag the interpreter polls at its own safe points;
// a guest stuck inside a single native call observes it only on the next
// checkpoint. On return the interrupt state is always cleared so a stale
// timer fire cannot leak into a later request.
func (r *Runtime) RunBounded(ctx context.Context, code string, timeout time.Duration) RunResult {
	if err := r.Initialize(); err != nil {
		return RunResult{Outcome: OutcomeFailed, Err: err}
	}
	if timeout <= 0 {
		timeout = defaultRunTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var mu sync.Mutex
	finished := false
	done := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			mu.Lock()
			if !finished {
				r.vm.Interrupt(errDeadline)
			}
			mu.Unlock()
		case <-done:
		}
	}()

	value, err := r.vm.RunString(code)

	mu.Lock()
	finished = true
	mu.Unlock()
	close(done)
	r.vm.ClearInterrupt()

	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
				return RunResult{Outcome: OutcomeTimedOut}
			}
			return RunResult{Outcome: OutcomeFailed, Err: fmt.Errorf("execution cancelled: %w", context.Cause(runCtx))}
		}
		return RunResult{Outcome: OutcomeFailed, Err: err, GuestFault: isGuestError(err)}
	}

	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return RunResult{Outcome: OutcomeCompleted}
	}
	return RunResult{Outcome: OutcomeCompleted, Value: value.String()}
}

// isGuestError reports whether err is a native interpreter diagnostic,
// as opposed to a host-side fault.
func isGuestError(err error) bool {
	switch err.(type) {
	case *goja.Exception, *goja.CompilerSyntaxError, *goja.CompilerReferenceError, *goja.StackOverflowError:
		return true
	}
	return false
}
