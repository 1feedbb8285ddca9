// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import (
	"errors"
	"io"
	"log"
	"reflect"
	"testing"

	"github.com/go-lpc/specinv/invert"
)

func newController(t *testing.T, dev *Device) *invert.Controller {
	t.Helper()
	ctl, err := invert.New(dev, invert.WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("could not create controller: %+v", err)
	}
	return ctl
}

func TestPowerOn(t *testing.T) {
	dev := New()
	for _, reg := range invert.Registers() {
		v, err := dev.Read32(uint32(reg))
		if err != nil {
			t.Fatalf("could not read %v: %+v", reg, err)
		}
		if v != 0 {
			t.Fatalf("invalid power-on value for %v: 0x%x", reg, v)
		}
	}
	if dev.Active() {
		t.Fatalf("block should pass samples through at power-on")
	}
}

func TestInitialization(t *testing.T) {
	dev := New()
	ctl := newController(t, dev)

	want := []Access{
		{Write: true, Offset: invert.RegInvertControl, Value: 0x1},
		{Write: true, Offset: invert.RegDetectionThreshold, Value: 0x1000},
		{Write: true, Offset: invert.RegDetectionWindow, Value: 1024},
	}
	if got := dev.Accesses(); !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid accesses:\ngot= %v\nwant=%v", got, want)
	}

	st, err := ctl.Status()
	if err != nil {
		t.Fatalf("could not read status: %+v", err)
	}
	if got, want := st.State(), invert.Inverting; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}
}

func TestManualMode(t *testing.T) {
	dev := New()
	ctl := newController(t, dev)

	for _, tc := range []struct {
		invert bool
		want   invert.State
	}{
		{false, invert.Passthrough},
		{true, invert.Inverting},
		{false, invert.Passthrough},
	} {
		err := ctl.SetInvertEnabled(tc.invert)
		if err != nil {
			t.Fatalf("could not set inversion: %+v", err)
		}
		// loud signal: ignored in manual mode.
		dev.Process(Tone(2048, 1, 0.1))

		st, err := ctl.Status()
		if err != nil {
			t.Fatalf("could not read status: %+v", err)
		}
		if got := st.State(); got != tc.want {
			t.Fatalf("invert=%v: invalid state: got=%v, want=%v", tc.invert, got, tc.want)
		}
	}
}

func TestAutoDetect(t *testing.T) {
	dev := New()
	ctl := newController(t, dev)

	const window = 64
	for _, f := range []func() error{
		func() error { return ctl.SetInvertEnabled(false) },
		func() error { return ctl.SetDetectionWindow(window) },
		func() error { return ctl.SetDetectionThreshold(PowerScale / 4) },
		func() error { return ctl.SetAutoDetect(true) },
	} {
		err := f()
		if err != nil {
			t.Fatalf("could not configure block: %+v", err)
		}
	}

	state := func() invert.State {
		t.Helper()
		st, err := ctl.Status()
		if err != nil {
			t.Fatalf("could not read status: %+v", err)
		}
		return st.State()
	}

	// loud signal (power=1), but window not complete yet.
	dev.Process(Tone(window-1, 1, 0.1))
	if got, want := state(), invert.Passthrough; got != want {
		t.Fatalf("invalid state before window end: got=%v, want=%v", got, want)
	}

	dev.Process(Tone(1, 1, 0.1))
	if got, want := state(), invert.Inverting; got != want {
		t.Fatalf("invalid state after loud window: got=%v, want=%v", got, want)
	}

	// quiet signal (power=0.01).
	dev.Process(Tone(window, 0.1, 0.1))
	if got, want := state(), invert.Passthrough; got != want {
		t.Fatalf("invalid state after quiet window: got=%v, want=%v", got, want)
	}

	// manual bit is ignored while auto-detect is on.
	err := ctl.SetInvertEnabled(true)
	if err != nil {
		t.Fatalf("could not set inversion: %+v", err)
	}
	if got, want := ctl.Config().ControlWord(), uint32(0x3); got != want {
		t.Fatalf("invalid control word: got=0x%x, want=0x%x", got, want)
	}
	if got, want := state(), invert.Passthrough; got != want {
		t.Fatalf("invalid state with both bits set: got=%v, want=%v", got, want)
	}

	// leaving auto-detect hands control back to the manual bit.
	err = ctl.SetAutoDetect(false)
	if err != nil {
		t.Fatalf("could not disable auto-detect: %+v", err)
	}
	if got, want := state(), invert.Inverting; got != want {
		t.Fatalf("invalid state after auto-detect: got=%v, want=%v", got, want)
	}
}

func TestSampleCounter(t *testing.T) {
	dev := New()
	ctl := newController(t, dev)

	dev.Process(make([]complex64, 100))
	dev.Process(make([]complex64, 23))

	st, err := ctl.Status()
	if err != nil {
		t.Fatalf("could not read status: %+v", err)
	}
	if got, want := st.SamplesProcessed, uint32(123); got != want {
		t.Fatalf("invalid sample counter: got=%d, want=%d", got, want)
	}

	dev.mu.Lock()
	dev.samples = samplesMask
	dev.mu.Unlock()
	dev.Process(make([]complex64, 2))

	st, err = ctl.Status()
	if err != nil {
		t.Fatalf("could not read status: %+v", err)
	}
	if got, want := st.SamplesProcessed, uint32(1); got != want {
		t.Fatalf("invalid wrapped sample counter: got=%d, want=%d", got, want)
	}
}

func TestFault(t *testing.T) {
	dev := New()
	ctl := newController(t, dev)

	errTimeout := errors.New("bus timeout")
	dev.Fail(errTimeout)

	err := ctl.SetDetectionThreshold(42)
	if !errors.Is(err, errTimeout) {
		t.Fatalf("invalid write error: %+v", err)
	}
	_, err = ctl.Status()
	if !errors.Is(err, errTimeout) {
		t.Fatalf("invalid read error: %+v", err)
	}

	dev.Fail(nil)
	v, err := dev.Read32(uint32(invert.RegDetectionThreshold))
	if err != nil {
		t.Fatalf("could not read threshold: %+v", err)
	}
	if got, want := v, uint32(0x1000); got != want {
		t.Fatalf("failed write reached the device: got=0x%x, want=0x%x", got, want)
	}
	if got, want := ctl.Config().DetectionThreshold, uint32(42); got != want {
		t.Fatalf("invalid requested threshold: got=%d, want=%d", got, want)
	}
}

func TestBadRegister(t *testing.T) {
	dev := New()
	_, err := dev.Read32(0x10)
	if !errors.Is(err, ErrBadRegister) {
		t.Fatalf("invalid read error: %+v", err)
	}
	err = dev.Write32(0x10, 1)
	if !errors.Is(err, ErrBadRegister) {
		t.Fatalf("invalid write error: %+v", err)
	}

	// status register is read-only.
	err = dev.Write32(uint32(invert.RegInvertStatus), 1)
	if err != nil {
		t.Fatalf("could not write status register: %+v", err)
	}
	if dev.Active() {
		t.Fatalf("write to read-only status changed the block state")
	}
}

func TestReset(t *testing.T) {
	dev := New()
	_ = newController(t, dev)
	dev.Process(make([]complex64, 10))

	dev.Reset()
	if dev.Active() {
		t.Fatalf("block should pass samples through after reset")
	}
	for _, reg := range invert.Registers() {
		v, err := dev.Read32(uint32(reg))
		if err != nil {
			t.Fatalf("could not read %v: %+v", reg, err)
		}
		if v != 0 {
			t.Fatalf("invalid value after reset for %v: 0x%x", reg, v)
		}
	}
	if got, want := len(dev.Accesses()), 3+4; got != want {
		t.Fatalf("invalid access log length: got=%d, want=%d", got, want)
	}
	dev.ClearAccesses()
	if got := dev.Accesses(); len(got) != 0 {
		t.Fatalf("access log not cleared: %v", got)
	}
}
