// Package worker implements the request-processing side of the sandboxd
// process: the per-request executor state machine and the single-threaded
// dispatch loop that reads newline-delimited JSON requests, drives the
// executor, and emits exactly one JSON result per request in submission
// order.
//
// The loop is deliberately hard to kill: malformed requests, guest-code
// failures, and internal panics all become well-formed error results. Only
// input EOF or an unrecoverable transport fault ends it.
package worker
