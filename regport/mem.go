// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regport

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/go-lpc/specinv/internal/mmap"
)

type rwer interface {
	io.ReaderAt
	io.WriterAt
}

// Mem is a port over a memory-mapped register window.
// Registers are little-endian 32-bit words.
type Mem struct {
	mu   sync.Mutex
	rw   rwer
	buf  [4]byte
	done func() error
}

// NewMem returns a port accessing registers through rw, with register
// offsets relative to the start of rw.
func NewMem(rw rwer) *Mem {
	return &Mem{rw: rw}
}

// OpenMem maps size bytes of the device memory file fname (usually
// /dev/mem), starting at the physical address base.
func OpenMem(fname string, base int64, size int) (*Mem, error) {
	h, err := mmap.Open(fname, base, size)
	if err != nil {
		return nil, fmt.Errorf("regport: could not map register window: %w", err)
	}
	mem := NewMem(h)
	mem.done = h.Close
	return mem, nil
}

func (mem *Mem) Read32(off uint32) (uint32, error) {
	if off%4 != 0 {
		return 0, fmt.Errorf("regport: could not read register 0x%x: %w", off, errInvalidOffset)
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()

	_, err := mem.rw.ReadAt(mem.buf[:4], int64(off))
	if err != nil {
		return 0, fmt.Errorf("regport: could not read register 0x%x: %w", off, err)
	}
	return binary.LittleEndian.Uint32(mem.buf[:4]), nil
}

func (mem *Mem) Write32(off, v uint32) error {
	if off%4 != 0 {
		return fmt.Errorf("regport: could not write register 0x%x: %w", off, errInvalidOffset)
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()

	binary.LittleEndian.PutUint32(mem.buf[:4], v)
	_, err := mem.rw.WriteAt(mem.buf[:4], int64(off))
	if err != nil {
		return fmt.Errorf("regport: could not write register 0x%x: %w", off, err)
	}
	return nil
}

// Close releases the register window, if the port owns it.
func (mem *Mem) Close() error {
	mem.mu.Lock()
	defer mem.mu.Unlock()

	if mem.done == nil {
		return nil
	}
	done := mem.done
	mem.done = nil
	return done()
}

var _ PortCloser = (*Mem)(nil)
