// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package invert

import (
	"fmt"
	"log"
	"os"
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used by the controller.
func WithLogger(msg *log.Logger) Option {
	return func(ctl *Controller) {
		ctl.msg = msg
	}
}

// Controller drives a spectral-inversion block through its registers.
//
// The configuration held by a Controller is the last one it attempted to
// write: a write that failed still updates it, and nothing is read back to
// verify the hardware state.
//
// A Controller is not safe for concurrent use.
// Updating the control word reads both the inversion and auto-detect
// fields: callers sharing a Controller must serialize every call to it
// (one mutex guarding all the mutators), otherwise a control word built
// from a stale snapshot may be written.
type Controller struct {
	msg  *log.Logger
	port Port
	cfg  Config
}

// New creates a Controller driving the block behind port and pushes the
// default configuration to the device.
//
// Exactly three writes are issued, in this order: INVERT_CONTROL,
// DETECTION_THRESHOLD and DETECTION_WINDOW.
// The writes are not atomic: a concurrent status read may observe a
// partially applied configuration.
func New(port Port, opts ...Option) (*Controller, error) {
	ctl := &Controller{
		msg:  log.New(os.Stdout, "invert: ", 0),
		port: port,
		cfg:  DefaultConfig(),
	}
	for _, opt := range opts {
		opt(ctl)
	}

	ctl.msg.Printf("initializing %s block (%v)", BlockName, ctl.cfg)
	err := ctl.init()
	if err != nil {
		return nil, fmt.Errorf("invert: could not initialize block: %w", err)
	}

	return ctl, nil
}

func (ctl *Controller) init() error {
	err := ctl.write(RegInvertControl, ctl.cfg.ControlWord())
	if err != nil {
		return err
	}

	err = ctl.write(RegDetectionThreshold, ctl.cfg.DetectionThreshold)
	if err != nil {
		return err
	}

	return ctl.write(RegDetectionWindow, ctl.cfg.DetectionWindow)
}

// Config returns the configuration last requested from the block.
func (ctl *Controller) Config() Config {
	return ctl.cfg
}

// Apply replaces the whole configuration and writes it to the device, in
// the same order as New.
func (ctl *Controller) Apply(cfg Config) error {
	ctl.cfg = cfg
	err := ctl.init()
	if err != nil {
		return fmt.Errorf("invert: could not apply configuration: %w", err)
	}
	return nil
}

// SetInvertEnabled requests (or cancels) the spectral inversion.
//
// When auto-detection is enabled, the hardware may override this request.
func (ctl *Controller) SetInvertEnabled(v bool) error {
	ctl.cfg.InvertEnabled = v
	return ctl.write(RegInvertControl, ctl.cfg.ControlWord())
}

// SetAutoDetect enables (or disables) the hardware auto-detection of
// spectrum inversion.
func (ctl *Controller) SetAutoDetect(v bool) error {
	ctl.cfg.AutoDetect = v
	return ctl.write(RegInvertControl, ctl.cfg.ControlWord())
}

// SetDetectionThreshold sets the energy threshold used by the auto-detection.
func (ctl *Controller) SetDetectionThreshold(v uint32) error {
	ctl.cfg.DetectionThreshold = v
	return ctl.write(RegDetectionThreshold, v)
}

// SetDetectionWindow sets the number of samples the auto-detection
// integrates over.
func (ctl *Controller) SetDetectionWindow(v uint32) error {
	ctl.cfg.DetectionWindow = v
	return ctl.write(RegDetectionWindow, v)
}

// Status reads the block status from the device.
//
// The status is read from the hardware on each call: under auto-detection
// the reported inversion state may differ from the requested one.
func (ctl *Controller) Status() (Status, error) {
	v, err := ctl.read(RegInvertStatus)
	if err != nil {
		return Status{}, err
	}
	return decodeStatus(v), nil
}

func (ctl *Controller) write(reg Register, v uint32) error {
	err := ctl.port.Write32(uint32(reg), v)
	if err != nil {
		return fmt.Errorf("invert: could not write 0x%x to register %v: %w", v, reg, err)
	}
	return nil
}

func (ctl *Controller) read(reg Register) (uint32, error) {
	v, err := ctl.port.Read32(uint32(reg))
	if err != nil {
		return 0, fmt.Errorf("invert: could not read register %v: %w", reg, err)
	}
	return v, nil
}
