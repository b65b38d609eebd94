//go:build !windows

package main

import (
	"os"
	"syscall"
)

// stopSignals end a simulation and kill the engine child. A closed
// terminal counts.
func stopSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}
}
