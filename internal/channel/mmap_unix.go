//go:build unix

package channel

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/adubusi/AI-Family/internal/house"
	"golang.org/x/sys/unix"
)

// Create maps path read-write as a shared block, creating the file if needed,
// and initializes it to DefaultState. Other processes can Open the same path.
func Create(path string) (*Channel, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening channel file: %w", err)
	}
	defer f.Close()

	if err := f.Truncate(ByteSize); err != nil {
		return nil, fmt.Errorf("sizing channel file: %w", err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, ByteSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mapping channel file: %w", err)
	}

	c := fromMapping(data)
	atomic.StoreUint64(&c.words[wordMagic], magic)
	c.Reset(DefaultState(house.DefaultModel()))
	return c, nil
}

// Open maps an existing block read-only. The returned channel observes the
// writer's updates live; its write methods are no-ops.
func Open(path string) (*Channel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening channel file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat channel file: %w", err)
	}
	if info.Size() < ByteSize {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrBadMagic, info.Size(), ByteSize)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, ByteSize, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mapping channel file: %w", err)
	}

	c := fromMapping(data)
	c.readOnly = true
	if atomic.LoadUint64(&c.words[wordMagic]) != magic {
		c.Close()
		return nil, ErrBadMagic
	}
	return c, nil
}

// fromMapping views a page-aligned mapping as the channel's word array.
func fromMapping(data []byte) *Channel {
	words := unsafe.Slice((*uint64)(unsafe.Pointer(&data[0])), totalWords)
	return &Channel{
		words: words,
		unmap: func() error { return unix.Munmap(data) },
	}
}
