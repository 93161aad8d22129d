package sandbox

import (
	"bytes"
	"io"
)

// streamCapture remembers the sinks it displaced so restoration is exact
// even when several captures were never used.
type streamCapture struct {
	r                *Runtime
	stdout, stderr   *bytes.Buffer
	prevOut, prevErr io.Writer

	restored           bool
	savedOut, savedErr string
}

// InstallCapture swaps the guest output sinks for fresh buffers. The
// returned handle must be restored exactly once per request; a leaked
// capture would bleed one request's output into the next.
func (r *Runtime) InstallCapture() Capture {
	c := &streamCapture{
		r:       r,
		stdout:  &bytes.Buffer{},
		stderr:  &bytes.Buffer{},
		prevOut: r.stdout,
		prevErr: r.stderr,
	}
	r.stdout = c.stdout
	r.stderr = c.stderr
	return c
}

// Restore writes the original sinks back and returns whatever the buffers
// accumulated, which may be partial on timeout or error paths. Repeated
// calls return the same text without swapping again, and buffers that were
// never established yield empty strings rather than a panic.
func (c *streamCapture) Restore() (string, string) {
	if c.restored {
		return c.savedOut, c.savedErr
	}
	c.restored = true

	if c.stdout != nil {
		c.savedOut = c.stdout.String()
	}
	if c.stderr != nil {
		c.savedErr = c.stderr.String()
	}

	c.r.stdout = c.prevOut
	c.r.stderr = c.prevErr
	if c.r.stdout == nil {
		c.r.stdout = io.Discard
	}
	if c.r.stderr == nil {
		c.r.stderr = io.Discard
	}
	return c.savedOut, c.savedErr
}
