// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package invert

import "fmt"

// Register is the byte offset of a block register.
type Register uint32

const (
	RegInvertControl      Register = 0x00 // bit0: inversion enable, bit1: auto-detect enable
	RegInvertStatus       Register = 0x04 // bit0: inversion active, bits[31:1]: samples processed
	RegDetectionThreshold Register = 0x08 // auto-detect energy threshold
	RegDetectionWindow    Register = 0x0C // auto-detect window, in samples
)

// control register bits.
const (
	CtrlInvertEnable uint32 = 1 << 0
	CtrlAutoDetect   uint32 = 1 << 1
)

// status register bits.
const (
	StatusInvertActive uint32 = 1 << 0

	statusSamplesShift = 1
)

func (reg Register) String() string {
	switch reg {
	case RegInvertControl:
		return "INVERT_CONTROL"
	case RegInvertStatus:
		return "INVERT_STATUS"
	case RegDetectionThreshold:
		return "DETECTION_THRESHOLD"
	case RegDetectionWindow:
		return "DETECTION_WINDOW"
	default:
		return fmt.Sprintf("Register(0x%02x)", uint32(reg))
	}
}

// Registers returns the block registers, ordered by offset.
func Registers() []Register {
	return []Register{
		RegInvertControl,
		RegInvertStatus,
		RegDetectionThreshold,
		RegDetectionWindow,
	}
}
