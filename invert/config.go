// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package invert

import "fmt"

const (
	defaultThreshold = 0x1000
	defaultWindow    = 1024
)

// Config is the desired configuration of the block.
//
// No validation is performed on any field: the detection threshold is in
// device-defined units and the window is a number of samples.
type Config struct {
	InvertEnabled      bool   `json:"invert_enabled"`
	AutoDetect         bool   `json:"auto_detect"`
	DetectionThreshold uint32 `json:"detection_threshold"`
	DetectionWindow    uint32 `json:"detection_window"`
}

// DefaultConfig returns the configuration applied when a Controller is created.
func DefaultConfig() Config {
	return Config{
		InvertEnabled:      true,
		AutoDetect:         false,
		DetectionThreshold: defaultThreshold,
		DetectionWindow:    defaultWindow,
	}
}

// ControlWord returns the INVERT_CONTROL value encoding cfg.
//
// Both bits are encoded as requested, even when set together: which of
// the manual and auto-detect requests wins is decided by the hardware.
func (cfg Config) ControlWord() uint32 {
	var v uint32
	if cfg.AutoDetect {
		v |= CtrlAutoDetect
	}
	if cfg.InvertEnabled {
		v |= CtrlInvertEnable
	}
	return v
}

func (cfg Config) String() string {
	return fmt.Sprintf(
		"invert=%v auto-detect=%v threshold=0x%x window=%d",
		cfg.InvertEnabled, cfg.AutoDetect,
		cfg.DetectionThreshold, cfg.DetectionWindow,
	)
}

// State is the operating state of the block, as observed from its status.
type State uint8

const (
	Passthrough State = iota // samples are forwarded untouched
	Inverting                // samples are conjugated
)

func (st State) String() string {
	switch st {
	case Passthrough:
		return "PASSTHROUGH"
	case Inverting:
		return "INVERTING"
	default:
		return fmt.Sprintf("State(%d)", uint8(st))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (st State) MarshalText() ([]byte, error) {
	switch st {
	case Passthrough, Inverting:
		return []byte(st.String()), nil
	default:
		return nil, fmt.Errorf("invert: invalid state %d", uint8(st))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (st *State) UnmarshalText(p []byte) error {
	switch string(p) {
	case "PASSTHROUGH":
		*st = Passthrough
	case "INVERTING":
		*st = Inverting
	default:
		return fmt.Errorf("invert: invalid state %q", p)
	}
	return nil
}

// Status is the block status, as reported by the hardware.
type Status struct {
	InversionActive  bool   `json:"inversion_active"`
	SamplesProcessed uint32 `json:"samples_processed"`
}

// State returns the operating state described by the status.
func (st Status) State() State {
	if st.InversionActive {
		return Inverting
	}
	return Passthrough
}

// decodeStatus decodes the INVERT_STATUS register.
//
// FIXME(specinv): the sample counter layout is not documented by the
// firmware yet. It is assumed to occupy bits [31:1].
func decodeStatus(v uint32) Status {
	return Status{
		InversionActive:  v&StatusInvertActive != 0,
		SamplesProcessed: v >> statusSamplesShift,
	}
}
