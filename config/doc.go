// Package config provides application configuration management.
//
// The config package handles loading and validation of the worker's
// configuration from YAML files. It covers the transport selection,
// execution limits, the runtime's prelude module set, and logging.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Transport: %s\n", cfg.Worker.Transport)
package config
