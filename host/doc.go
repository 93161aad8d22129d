// Package host implements the owning-process side of the worker protocol.
//
// A host spawns the sandboxd binary once, streams one JSON request per line
// into its stdin, and reads one JSON result per line from its stdout. The
// worker's stderr carries diagnostics only and is passed through.
//
// The Client is strictly serial, matching the worker: one request in
// flight at a time, responses arrive in submission order.
package host
