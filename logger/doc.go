// Package logger provides structured logging capabilities.
//
// The logger package sets up the application's logging system using zap.
// Both output paths are forced to stderr: stdout belongs to the wire
// protocol in this process and must never carry diagnostics.
//
// Usage:
//
//	logger, err := logger.New("production", "info")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	logger.Info("worker started")
package logger
