// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package invert holds the controller of the spectral-inversion DSP block.
//
// The block conjugates the complex samples flowing through it,
//
//	out = conj(in) = real(in) - j*imag(in)
//
// which mirrors the spectrum of the stream. Signals undersampled in an even
// Nyquist zone (zone 2: fs/2 to fs, zone 4: 3fs/2 to 2fs, ...) show up
// spectrum-inverted and are recovered by enabling the inversion.
//
// The inversion is either requested manually or delegated to the hardware
// auto-detection heuristic, which compares the signal energy over a window
// of samples against a threshold.
//
// A Controller is a thin stateful facade over the four registers of the
// block, accessed through a Port.
package invert // import "github.com/go-lpc/specinv/invert"

const (
	// NocID is the NoC identifier of the spectral-inversion block.
	NocID = 0x51EC1000

	// BlockName is the name the block registers itself under.
	BlockName = "specinvert"
)

// Port is a 32-bit register access port to a device register file.
//
// Errors returned by a Port are transport faults (bus error, timeout,
// absent device). They are handed back as-is, wrapped, to the caller of the
// Controller operation that triggered them.
type Port interface {
	Write32(offset, value uint32) error
	Read32(offset uint32) (uint32, error)
}
