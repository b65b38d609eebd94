//go:build !windows

package mcp

import (
	"os"
	"syscall"
)

// stopSignals close the stdio session; the supervisor outlives it.
func stopSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
