package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/isogon/sandboxd/protocol"
)

// DefaultMaxLineBytes caps a single request line. A line exceeding it breaks
// the protocol framing irrecoverably and is treated as a fatal transport
// fault.
const DefaultMaxLineBytes = 10 * 1024 * 1024

// Worker is the process's single-threaded read loop: it consumes one JSON
// request per input line, drives the Executor, and writes one JSON result
// per request to the output stream in submission order.
type Worker struct {
	logger   *zap.Logger
	executor *Executor
	in       io.Reader
	out      io.Writer

	maxLineBytes int
}

// Option configures a Worker.
type Option func(*Worker)

// WithMaxLineBytes overrides the request line size cap.
func WithMaxLineBytes(n int) Option {
	return func(w *Worker) {
		w.maxLineBytes = n
	}
}

// New creates a Worker reading requests from in and writing results to out.
// Diagnostics go to the logger only; out carries nothing but protocol data.
func New(logger *zap.Logger, executor *Executor, in io.Reader, out io.Writer, opts ...Option) *Worker {
	w := &Worker{
		logger:       logger,
		executor:     executor,
		in:           in,
		out:          out,
		maxLineBytes: DefaultMaxLineBytes,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run initializes the runtime, then serves requests until the input stream
// closes. A first-initialization failure is fatal and propagates; so do
// read and write faults on the protocol streams. Everything else becomes a
// per-request error result and the loop continues.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("initializing runtime before accepting requests")
	if err := w.executor.Initialize(); err != nil {
		return fmt.Errorf("runtime initialization failed: %w", err)
	}
	w.logger.Info("worker ready")

	scanner := bufio.NewScanner(w.in)
	scanner.Buffer(make([]byte, 0, 64*1024), w.maxLineBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := w.emit(w.process(ctx, line)); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read requests: %w", err)
	}

	w.logger.Info("input closed, worker exiting")
	return nil
}

// process turns one input line into exactly one result. Panics raised
// anywhere below the loop are converted to error results here so a single
// request can never take the worker down.
func (w *Worker) process(ctx context.Context, line []byte) (res protocol.Result) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("panic while processing request", zap.Any("panic", r))
			res = protocol.Fail(fmt.Sprintf("internal error: %v", r), "", nil)
		}
	}()

	req, err := protocol.Parse(line)
	if err != nil {
		return protocol.Fail(err.Error(), "", nil)
	}
	return w.executor.Handle(ctx, req)
}

func (w *Worker) emit(res protocol.Result) error {
	data, err := json.Marshal(res)
	if err != nil {
		// Result structs always marshal; guard anyway so the one-response
		// invariant survives.
		w.logger.Error("marshal response failed", zap.Error(err))
		data, _ = json.Marshal(protocol.Fail("internal error: failed to encode response", "", nil))
	}
	data = append(data, '\n')
	_, err = w.out.Write(data)
	return err
}
