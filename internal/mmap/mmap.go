// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap maps windows of a device memory file (e.g. /dev/mem) into
// the address space of the process.
package mmap // import "github.com/go-lpc/specinv/internal/mmap"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

var (
	errClosed = errors.New("mmap: closed")
)

// Handle is a memory-mapped window of a file.
type Handle struct {
	f    *os.File
	page []byte // whole page-aligned mapping
	data []byte // requested window, inside page
}

// Open maps size bytes of the file fname, starting at offset base.
//
// base does not need to be page aligned.
func Open(fname string, base int64, size int) (*Handle, error) {
	if base < 0 || size <= 0 {
		return nil, fmt.Errorf("mmap: invalid window (base=0x%x, size=%d)", base, size)
	}

	f, err := os.OpenFile(fname, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not open %q: %w", fname, err)
	}

	var (
		pgsz  = int64(os.Getpagesize())
		start = base &^ (pgsz - 1)
		delta = int(base - start)
	)

	page, err := unix.Mmap(
		int(f.Fd()), start, size+delta,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED,
	)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap: could not map %q (base=0x%x, size=%d): %w", fname, base, size, err)
	}

	h := &Handle{f: f, page: page, data: page[delta : delta+size]}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h, nil
}

// HandleFrom returns a handle over an already mapped (or plain) slice.
// Closing such a handle does not unmap anything.
func HandleFrom(data []byte) *Handle {
	return &Handle{data: data}
}

// Close unmaps the window and closes the underlying file.
func (h *Handle) Close() error {
	if h == nil {
		return os.ErrInvalid
	}

	if h.data == nil {
		return nil
	}
	var (
		page = h.page
		f    = h.f
	)
	h.data = nil
	h.page = nil
	h.f = nil
	runtime.SetFinalizer(h, nil)

	if page == nil {
		return nil
	}

	err := unix.Munmap(page)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("mmap: could not unmap window: %w", err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("mmap: could not close device file: %w", err)
	}
	return nil
}

// Len returns the length of the mapped window.
func (h *Handle) Len() int {
	return len(h.data)
}

// ReadAt implements the io.ReaderAt interface.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid ReadAt offset %d", off)
	}
	n := copy(p, h.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements the io.WriterAt interface.
func (h *Handle) WriteAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid WriteAt offset %d", off)
	}
	n := copy(h.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

var (
	_ io.ReaderAt = (*Handle)(nil)
	_ io.WriterAt = (*Handle)(nil)
	_ io.Closer   = (*Handle)(nil)
)
