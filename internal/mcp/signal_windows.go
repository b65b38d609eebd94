//go:build windows

package mcp

import "os"

// stopSignals close the stdio session. An MCP client on Windows can only
// send Ctrl+C.
func stopSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
