// Package main is the entry point for the sandboxd worker.
//
// sandboxd is a long-lived worker process that executes code inside a
// single persistent, pre-warmed interpreter. An owning host process spawns
// it once, streams one JSON request per line into stdin, and reads one JSON
// result per line from stdout; stderr carries structured diagnostics only.
// No network port is ever opened.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main
