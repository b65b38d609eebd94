//go:build windows

package main

import "os"

// stopSignals end a simulation. Windows delivers only Ctrl+C, which stops
// the household loop and kills the engine child.
func stopSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
