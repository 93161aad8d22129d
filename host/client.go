package host

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/isogon/sandboxd/protocol"
	"github.com/isogon/sandboxd/worker"
)

// Client speaks the line-delimited protocol over an attached reader/writer
// pair. It serializes callers: the worker answers exactly one request at a
// time, in order.
type Client struct {
	mu      sync.Mutex
	enc     *json.Encoder
	scanner *bufio.Scanner
}

// NewClient attaches to a worker's input and output streams.
func NewClient(in io.Writer, out io.Reader) *Client {
	scanner := bufio.NewScanner(out)
	scanner.Buffer(make([]byte, 0, 64*1024), worker.DefaultMaxLineBytes)
	return &Client{
		enc:     json.NewEncoder(in),
		scanner: scanner,
	}
}

// Do sends one request and blocks for its result.
func (c *Client) Do(req protocol.Request) (protocol.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enc.Encode(req); err != nil {
		return protocol.Result{}, fmt.Errorf("send request: %w", err)
	}
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return protocol.Result{}, fmt.Errorf("read result: %w", err)
		}
		return protocol.Result{}, fmt.Errorf("worker closed its output stream")
	}

	var res protocol.Result
	if err := json.Unmarshal(c.scanner.Bytes(), &res); err != nil {
		return protocol.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return res, nil
}

// Execute runs code in the worker's persistent runtime.
func (c *Client) Execute(code string, files map[string]string, timeoutSec int) (protocol.Result, error) {
	return c.Do(protocol.Request{
		Type:       protocol.RequestExecute,
		Code:       code,
		Files:      files,
		TimeoutSec: timeoutSec,
	})
}

// WriteFile stages a file into the worker's virtual filesystem.
func (c *Client) WriteFile(path, content string) (protocol.Result, error) {
	return c.Do(protocol.Request{
		Type:    protocol.RequestWriteFile,
		Path:    path,
		Content: content,
	})
}

// Process is a spawned worker with an attached Client.
type Process struct {
	logger *zap.Logger
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	client *Client
}

// Spawn starts the worker binary with piped stdio. The worker's stderr is
// forwarded to this process's stderr; it never carries protocol data.
func Spawn(ctx context.Context, logger *zap.Logger, binPath string, args ...string) (*Process, error) {
	cmd := exec.CommandContext(ctx, binPath, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker %s: %w", binPath, err)
	}
	logger.Info("worker spawned", zap.String("bin", binPath), zap.Int("pid", cmd.Process.Pid))

	return &Process{
		logger: logger,
		cmd:    cmd,
		stdin:  stdin,
		client: NewClient(stdin, stdout),
	}, nil
}

// Client returns the protocol client attached to the spawned worker.
func (p *Process) Client() *Client {
	return p.client
}

// Close signals end of input and waits for the worker to exit; the worker
// treats stdin EOF as a clean shutdown.
func (p *Process) Close() error {
	if err := p.stdin.Close(); err != nil {
		return fmt.Errorf("close worker stdin: %w", err)
	}
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("worker exit: %w", err)
	}
	p.logger.Info("worker exited cleanly")
	return nil
}
