// Package protocol defines the JSON-line message types exchanged between
// an owning host process and the sandboxd worker.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// RequestType tags the semantic action a request carries.
type RequestType string

const (
	RequestExecute   RequestType = "execute"
	RequestWriteFile RequestType = "writeFile"
)

// DefaultTimeoutSec bounds execution when a request carries no timeout,
// or a non-positive one.
const DefaultTimeoutSec = 30

// errNoCode keeps the historic wire text expected by existing hosts.
var errNoCode = errors.New("No code provided for execution")

// Request is the envelope sent from host → worker, one JSON object per line.
type Request struct {
	Type RequestType `json:"type,omitempty"`

	// Execute fields
	Code       string            `json:"code,omitempty"`
	Files      map[string]string `json:"files,omitempty"`
	TimeoutSec int               `json:"timeout,omitempty"`

	// WriteFile fields
	Path    string `json:"path,omitempty"`
	Content string `json:"content,omitempty"`
}

// EffectiveTimeoutSec returns the timeout to enforce for this request.
// Absent or non-positive values fall back to DefaultTimeoutSec; unbounded
// execution is never allowed.
func (r *Request) EffectiveTimeoutSec() int {
	if r.TimeoutSec > 0 {
		return r.TimeoutSec
	}
	return DefaultTimeoutSec
}

// Result is the envelope sent from worker → host, exactly one per request.
// Error is null exactly when Success is true.
type Result struct {
	Success bool     `json:"success"`
	Output  string   `json:"output"`
	Error   *string  `json:"error"`
	Logs    []string `json:"logs"`
}

// OK builds a successful result. Logs always serializes as an array,
// never null.
func OK(output string, logs []string) Result {
	if logs == nil {
		logs = []string{}
	}
	return Result{Success: true, Output: output, Logs: logs}
}

// Fail builds a failed result carrying whatever partial output accumulated.
func Fail(errMsg, output string, logs []string) Result {
	if logs == nil {
		logs = []string{}
	}
	return Result{Success: false, Output: output, Error: &errMsg, Logs: logs}
}

// Parse decodes one protocol line into a validated Request.
//
// Normalization: a missing or unrecognized type with a non-empty code field
// is treated as an execute request. This is a documented legacy default and
// the single place it is encoded.
func Parse(line []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Request{}, fmt.Errorf("invalid request: %w", err)
	}

	switch req.Type {
	case RequestExecute, RequestWriteFile:
	default:
		if req.Code != "" {
			req.Type = RequestExecute
			break
		}
		if req.Type == "" {
			return Request{}, errors.New("request has no type and no code")
		}
		return Request{}, fmt.Errorf("unknown request type: %s", req.Type)
	}

	return req, req.validate()
}

func (r *Request) validate() error {
	switch r.Type {
	case RequestExecute:
		if r.Code == "" {
			return errNoCode
		}
	case RequestWriteFile:
		if r.Path == "" {
			return errors.New("writeFile request missing path")
		}
		if r.Content == "" {
			return errors.New("writeFile request missing content")
		}
	}
	return nil
}
