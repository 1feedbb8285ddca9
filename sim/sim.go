// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sim simulates the register file and the runtime behavior of a
// spectral-inversion block.
//
// The simulated block models what the firmware is expected to do:
//   - in manual mode, the inversion follows bit0 of INVERT_CONTROL as soon
//     as it is written;
//   - in auto-detect mode (bit1 of INVERT_CONTROL), the block integrates the
//     power of the incoming samples over DETECTION_WINDOW samples and inverts
//     when the mean power reaches DETECTION_THRESHOLD.
//
// When both bits are set, the simulation lets auto-detection decide.
// That precedence is a property of this model only: the real hardware
// behavior in that case is not documented.
package sim // import "github.com/go-lpc/specinv/sim"

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/go-lpc/specinv/invert"
)

var (
	// ErrBadRegister is returned for accesses outside the register map.
	ErrBadRegister = errors.New("sim: invalid register")
)

const (
	// PowerScale is the threshold value matching a mean sample power of 1
	// (full-scale complex sinusoid).
	PowerScale = 1 << 16

	samplesMask = math.MaxUint32 >> 1
)

// Access is a register access recorded by a Device.
type Access struct {
	Write  bool
	Offset invert.Register
	Value  uint32
}

func (acc Access) String() string {
	op := "R"
	if acc.Write {
		op = "W"
	}
	return fmt.Sprintf("%s %v=0x%x", op, acc.Offset, acc.Value)
}

// Device is a simulated spectral-inversion block.
// It implements the register access port interface and is safe for
// concurrent use.
type Device struct {
	mu sync.Mutex

	ctrl      uint32
	threshold uint32
	window    uint32

	active  bool
	samples uint32

	acc struct {
		power float64
		n     uint32
	}

	log   []Access
	fault error
}

// New returns a simulated block in its power-on state: all registers
// cleared, passing samples through.
func New() *Device {
	return &Device{}
}

// Reset brings the device back to its power-on state.
// The access log is kept.
func (dev *Device) Reset() {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	dev.ctrl = 0
	dev.threshold = 0
	dev.window = 0
	dev.active = false
	dev.samples = 0
	dev.acc.power = 0
	dev.acc.n = 0
}

// Fail makes every subsequent register access fail with err.
// A nil err restores normal operation.
func (dev *Device) Fail(err error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.fault = err
}

// Accesses returns the register accesses issued so far.
func (dev *Device) Accesses() []Access {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	out := make([]Access, len(dev.log))
	copy(out, dev.log)
	return out
}

// ClearAccesses empties the access log.
func (dev *Device) ClearAccesses() {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.log = dev.log[:0]
}

func (dev *Device) Read32(off uint32) (uint32, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.fault != nil {
		return 0, dev.fault
	}

	var v uint32
	switch reg := invert.Register(off); reg {
	case invert.RegInvertControl:
		v = dev.ctrl
	case invert.RegInvertStatus:
		v = dev.status()
	case invert.RegDetectionThreshold:
		v = dev.threshold
	case invert.RegDetectionWindow:
		v = dev.window
	default:
		return 0, fmt.Errorf("sim: could not read 0x%x: %w", off, ErrBadRegister)
	}

	dev.log = append(dev.log, Access{Offset: invert.Register(off), Value: v})
	return v, nil
}

func (dev *Device) Write32(off, v uint32) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.fault != nil {
		return dev.fault
	}

	switch reg := invert.Register(off); reg {
	case invert.RegInvertControl:
		dev.setControl(v)
	case invert.RegInvertStatus:
		// read-only.
	case invert.RegDetectionThreshold:
		dev.threshold = v
	case invert.RegDetectionWindow:
		dev.window = v
		dev.acc.power = 0
		dev.acc.n = 0
	default:
		return fmt.Errorf("sim: could not write 0x%x: %w", off, ErrBadRegister)
	}

	dev.log = append(dev.log, Access{Write: true, Offset: invert.Register(off), Value: v})
	return nil
}

func (dev *Device) setControl(v uint32) {
	v &= invert.CtrlInvertEnable | invert.CtrlAutoDetect
	prev := dev.ctrl
	dev.ctrl = v

	if v&invert.CtrlAutoDetect == 0 {
		dev.active = v&invert.CtrlInvertEnable != 0
		return
	}

	if prev&invert.CtrlAutoDetect == 0 {
		// entering auto-detect: keep the current state until the first
		// window completes.
		dev.acc.power = 0
		dev.acc.n = 0
	}
}

func (dev *Device) status() uint32 {
	v := dev.samples << 1
	if dev.active {
		v |= invert.StatusInvertActive
	}
	return v
}

// Process streams samples through the block, updating the sample counter
// and, in auto-detect mode, the inversion decision.
func (dev *Device) Process(iq []complex64) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	auto := dev.ctrl&invert.CtrlAutoDetect != 0
	window := dev.window
	if window == 0 {
		window = 1
	}

	for _, s := range iq {
		dev.samples = (dev.samples + 1) & samplesMask
		if !auto {
			continue
		}

		re, im := float64(real(s)), float64(imag(s))
		dev.acc.power += re*re + im*im
		dev.acc.n++
		if dev.acc.n < window {
			continue
		}

		mean := dev.acc.power / float64(dev.acc.n)
		dev.active = level(mean) >= dev.threshold
		dev.acc.power = 0
		dev.acc.n = 0
	}
}

// Active reports whether the block currently conjugates its input.
func (dev *Device) Active() bool {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.active
}

func level(power float64) uint32 {
	v := power * PowerScale
	if v >= math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(v)
}
