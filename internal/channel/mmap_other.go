//go:build !unix

package channel

import "errors"

var errNoMmap = errors.New("channel: file-backed blocks need a unix platform")

// Create is unavailable on this platform; use New.
func Create(path string) (*Channel, error) {
	return nil, errNoMmap
}

// Open is unavailable on this platform.
func Open(path string) (*Channel, error) {
	return nil, errNoMmap
}
