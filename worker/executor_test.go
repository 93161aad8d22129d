package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isogon/sandboxd/protocol"
	"github.com/isogon/sandboxd/sandbox"
)

// StubCapture implements sandbox.Capture for testing
type StubCapture struct {
	stdout, stderr string
	restores       int
}

func (c *StubCapture) Restore() (string, string) {
	c.restores++
	return c.stdout, c.stderr
}

// StubEngine implements sandbox.Engine for testing
type StubEngine struct {
	initCalls  int
	initErr    error
	nextStdout string
	nextStderr string
	runResult  sandbox.RunResult
	runPanic   any

	captures    []*StubCapture
	ranCode     []string
	ranTimeouts []time.Duration
	files       map[string]string
	writeErrs   map[string]error
	reads       map[string]string
}

func NewStubEngine() *StubEngine {
	return &StubEngine{
		files: make(map[string]string),
		reads: make(map[string]string),
	}
}

func (s *StubEngine) Initialize() error {
	s.initCalls++
	return s.initErr
}

func (s *StubEngine) InstallCapture() sandbox.Capture {
	c := &StubCapture{stdout: s.nextStdout, stderr: s.nextStderr}
	s.captures = append(s.captures, c)
	return c
}

func (s *StubEngine) RunBounded(_ context.Context, code string, timeout time.Duration) sandbox.RunResult {
	s.ranCode = append(s.ranCode, code)
	s.ranTimeouts = append(s.ranTimeouts, timeout)
	if s.runPanic != nil {
		panic(s.runPanic)
	}
	return s.runResult
}

func (s *StubEngine) WriteFile(path, content string) error {
	if err, exists := s.writeErrs[path]; exists {
		return err
	}
	s.files[path] = content
	return nil
}

func (s *StubEngine) ReadFile(path string) (string, error) {
	if content, exists := s.reads[path]; exists {
		return content, nil
	}
	return "", fmt.Errorf("read %s: not found", path)
}

func (s *StubEngine) lastCapture(t *testing.T) *StubCapture {
	t.Helper()
	require.NotEmpty(t, s.captures)
	return s.captures[len(s.captures)-1]
}

func newTestExecutor(t *testing.T, engine sandbox.Engine) *Executor {
	t.Helper()
	return NewExecutor(zaptest.NewLogger(t), engine)
}

func TestExecuteDefaultTimeout(t *testing.T) {
	engine := NewStubEngine()
	executor := newTestExecutor(t, engine)

	executor.Execute(context.Background(), protocol.Request{Type: protocol.RequestExecute, Code: "1"})
	require.Len(t, engine.ranTimeouts, 1)
	assert.Equal(t, 30*time.Second, engine.ranTimeouts[0])

	executor.Execute(context.Background(), protocol.Request{Type: protocol.RequestExecute, Code: "1", TimeoutSec: 5})
	assert.Equal(t, 5*time.Second, engine.ranTimeouts[1])

	executor.Execute(context.Background(), protocol.Request{Type: protocol.RequestExecute, Code: "1", TimeoutSec: -1})
	assert.Equal(t, 30*time.Second, engine.ranTimeouts[2])
}

func TestExecuteOutputAssembly(t *testing.T) {
	tests := []struct {
		name     string
		stdout   string
		value    string
		expected string
	}{
		{"StdoutOnly", "2\n", "", "2\n"},
		{"ValueOnly", "", "42", "42"},
		{"NewlineTerminatedStdoutPlusValue", "out\n", "42", "out\n42"},
		{"UnterminatedStdoutPlusValue", "out", "42", "out\n42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewStubEngine()
			engine.nextStdout = tt.stdout
			engine.runResult = sandbox.RunResult{Outcome: sandbox.OutcomeCompleted, Value: tt.value}
			executor := newTestExecutor(t, engine)

			res := executor.Execute(context.Background(), protocol.Request{Type: protocol.RequestExecute, Code: "x"})
			require.True(t, res.Success)
			assert.Nil(t, res.Error)
			assert.Equal(t, tt.expected, res.Output)
		})
	}
}

func TestExecuteTimeoutResult(t *testing.T) {
	engine := NewStubEngine()
	engine.nextStdout = "partial"
	engine.runResult = sandbox.RunResult{Outcome: sandbox.OutcomeTimedOut}
	executor := newTestExecutor(t, engine)

	res := executor.Execute(context.Background(), protocol.Request{Type: protocol.RequestExecute, Code: "loop", TimeoutSec: 1})
	require.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, "Execution timed out after 1 seconds", *res.Error)
	assert.Equal(t, "partial", res.Output)
	assert.Equal(t, 1, engine.lastCapture(t).restores)
}

func TestExecuteErrorClassification(t *testing.T) {
	t.Run("GuestFaultVerbatim", func(t *testing.T) {
		engine := NewStubEngine()
		engine.runResult = sandbox.RunResult{
			Outcome:    sandbox.OutcomeFailed,
			Err:        errors.New("ReferenceError: nope is not defined at <eval>:1:1(0)"),
			GuestFault: true,
		}
		executor := newTestExecutor(t, engine)

		res := executor.Execute(context.Background(), protocol.Request{Type: protocol.RequestExecute, Code: "nope"})
		require.False(t, res.Success)
		assert.Equal(t, "ReferenceError: nope is not defined at <eval>:1:1(0)", *res.Error)
	})

	t.Run("HostFaultWrapped", func(t *testing.T) {
		engine := NewStubEngine()
		engine.runResult = sandbox.RunResult{
			Outcome: sandbox.OutcomeFailed,
			Err:     errors.New("engine exploded"),
		}
		executor := newTestExecutor(t, engine)

		res := executor.Execute(context.Background(), protocol.Request{Type: protocol.RequestExecute, Code: "x"})
		require.False(t, res.Success)
		assert.Equal(t, "Execution error: engine exploded", *res.Error)
	})
}

func TestExecuteFileStaging(t *testing.T) {
	t.Run("AllFilesStagedBeforeRun", func(t *testing.T) {
		engine := NewStubEngine()
		executor := newTestExecutor(t, engine)

		executor.Execute(context.Background(), protocol.Request{
			Type:  protocol.RequestExecute,
			Code:  "x",
			Files: map[string]string{"/a.txt": "A", "/b.txt": "B"},
		})
		assert.Equal(t, map[string]string{"/a.txt": "A", "/b.txt": "B"}, engine.files)
	})

	t.Run("PerFileFailureIsBestEffort", func(t *testing.T) {
		engine := NewStubEngine()
		engine.writeErrs = map[string]error{"/bad.txt": errors.New("disk says no")}
		engine.runResult = sandbox.RunResult{Outcome: sandbox.OutcomeCompleted}
		executor := newTestExecutor(t, engine)

		res := executor.Execute(context.Background(), protocol.Request{
			Type:  protocol.RequestExecute,
			Code:  "x",
			Files: map[string]string{"/bad.txt": "X", "/ok.txt": "Y"},
		})
		require.True(t, res.Success)
		require.Len(t, res.Logs, 1)
		assert.Contains(t, res.Logs[0], "disk says no")
		assert.Equal(t, "Y", engine.files["/ok.txt"])
		assert.Len(t, engine.ranCode, 1)
	})
}

func TestExecuteStderrFoldedIntoLogs(t *testing.T) {
	engine := NewStubEngine()
	engine.nextStdout = "ok\n"
	engine.nextStderr = "warn one\nwarn two\n"
	engine.runResult = sandbox.RunResult{Outcome: sandbox.OutcomeCompleted}
	executor := newTestExecutor(t, engine)

	res := executor.Execute(context.Background(), protocol.Request{Type: protocol.RequestExecute, Code: "x"})
	require.True(t, res.Success)
	assert.Equal(t, []string{"warn one", "warn two"}, res.Logs)
}

func TestExecuteCaptureRestoredOnEveryBranch(t *testing.T) {
	outcomes := []sandbox.RunResult{
		{Outcome: sandbox.OutcomeCompleted},
		{Outcome: sandbox.OutcomeTimedOut},
		{Outcome: sandbox.OutcomeFailed, Err: errors.New("boom")},
	}

	for _, outcome := range outcomes {
		engine := NewStubEngine()
		engine.runResult = outcome
		executor := newTestExecutor(t, engine)

		executor.Execute(context.Background(), protocol.Request{Type: protocol.RequestExecute, Code: "x"})
		assert.Equal(t, 1, engine.lastCapture(t).restores)
	}
}

func TestExecuteCaptureRestoredOnPanic(t *testing.T) {
	engine := NewStubEngine()
	engine.runPanic = "engine blew up"
	executor := newTestExecutor(t, engine)

	require.Panics(t, func() {
		executor.Execute(context.Background(), protocol.Request{Type: protocol.RequestExecute, Code: "x"})
	})
	assert.Equal(t, 1, engine.lastCapture(t).restores)
}

func TestExecuteInitializeInline(t *testing.T) {
	t.Run("CalledPerRequest", func(t *testing.T) {
		engine := NewStubEngine()
		executor := newTestExecutor(t, engine)

		executor.Execute(context.Background(), protocol.Request{Type: protocol.RequestExecute, Code: "x"})
		executor.Execute(context.Background(), protocol.Request{Type: protocol.RequestExecute, Code: "y"})
		// The engine's own sync.Once makes repeats cheap; the executor
		// just has to keep asking.
		assert.Equal(t, 2, engine.initCalls)
	})

	t.Run("InitFailureProducesErrorResult", func(t *testing.T) {
		engine := NewStubEngine()
		engine.initErr = errors.New("cold start failed")
		executor := newTestExecutor(t, engine)

		res := executor.Execute(context.Background(), protocol.Request{Type: protocol.RequestExecute, Code: "x"})
		require.False(t, res.Success)
		assert.Contains(t, *res.Error, "cold start failed")
		assert.Empty(t, engine.captures)
	})
}

func TestHandleWriteFile(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		engine := NewStubEngine()
		executor := newTestExecutor(t, engine)

		res := executor.Handle(context.Background(), protocol.Request{
			Type: protocol.RequestWriteFile, Path: "/tmp/a.txt", Content: "hi",
		})
		require.True(t, res.Success)
		assert.Equal(t, "File written to /tmp/a.txt", res.Output)
		assert.Nil(t, res.Error)
		assert.Empty(t, res.Logs)
		assert.Equal(t, "hi", engine.files["/tmp/a.txt"])
	})

	t.Run("Failure", func(t *testing.T) {
		engine := NewStubEngine()
		engine.writeErrs = map[string]error{"/tmp/a.txt": errors.New("write /tmp/a.txt: full")}
		executor := newTestExecutor(t, engine)

		res := executor.Handle(context.Background(), protocol.Request{
			Type: protocol.RequestWriteFile, Path: "/tmp/a.txt", Content: "hi",
		})
		require.False(t, res.Success)
		assert.Contains(t, *res.Error, "/tmp/a.txt")
	})
}
