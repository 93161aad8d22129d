// Package sandbox provides the warm code-execution runtime.
//
// The sandbox package hosts a single persistent ECMAScript interpreter that
// is initialized once per process and reused across many requests. It owns
// the runtime's private in-memory filesystem, the install/restore discipline
// for guest output streams, and the bounded execution call that races guest
// code against a cooperative deadline interrupt.
//
// The package defines the Engine interface and the concrete goja-backed
// Runtime. Warm-state reuse is deliberate: guest globals and written files
// persist across requests in the same process.
//
// Usage:
//
//	rt := sandbox.New(logger, sandbox.Options{Preload: sandbox.DefaultPreload})
//	if err := rt.Initialize(); err != nil {
//	    log.Fatal(err)
//	}
//	capture := rt.InstallCapture()
//	res := rt.RunBounded(ctx, "print('hello')", 30*time.Second)
//	stdout, stderr := capture.Restore()
package sandbox
