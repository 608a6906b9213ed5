package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/btcsuite/btclog"
)

// handlePanic recovers a panic on a spawned goroutine, logs it through
// the daemon subsystem logger, and exits the process, mirroring
// util/panics.HandlePanic's recover-log-exit shape but built against
// btclog.Logger directly rather than a bespoke logs.Logger wrapper.
func handlePanic(log btclog.Logger, name string) {
	err := recover()
	if err == nil {
		return
	}
	log.Criticalf("Fatal error in %s: %+v", name, err)
	fmt.Fprintf(os.Stderr, "terminosd: fatal error in %s: %+v\n%s\n", name, err, debug.Stack())
	os.Exit(1)
}

// spawn runs f on its own goroutine, recovering and logging any panic
// instead of letting it silently crash the process (spec §5 "long-lived
// tasks"; grounded on util/panics.GoroutineWrapperFunc).
func spawn(log btclog.Logger, name string, f func()) {
	go func() {
		defer handlePanic(log, name)
		f()
	}()
}
