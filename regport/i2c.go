// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regport

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// I2C is a port to a device on an I²C bus.
//
// Registers are read by writing the 8-bit register offset followed by a
// 4-byte read, and written with the offset followed by the 4 value bytes.
// Values are little-endian.
type I2C struct {
	mu  sync.Mutex
	dev conn.Conn
	bus io.Closer
	w   [5]byte
	r   [4]byte
}

// NewI2C returns a port to the device at addr on bus.
func NewI2C(bus i2c.Bus, addr uint16) *I2C {
	return &I2C{dev: &i2c.Dev{Bus: bus, Addr: addr}}
}

// OpenI2C initializes the host drivers and opens the named I²C bus.
// An empty name selects the first available bus.
func OpenI2C(name string, addr uint16) (*I2C, error) {
	_, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("regport: could not initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("regport: could not open I2C bus %q: %w", name, err)
	}

	p := NewI2C(bus, addr)
	p.bus = bus
	return p, nil
}

func (p *I2C) Read32(off uint32) (uint32, error) {
	reg, err := i2cReg(off)
	if err != nil {
		return 0, fmt.Errorf("regport: could not read register 0x%x: %w", off, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.w[0] = reg
	err = p.dev.Tx(p.w[:1], p.r[:4])
	if err != nil {
		return 0, fmt.Errorf("regport: could not read register 0x%x: %w", off, err)
	}
	return binary.LittleEndian.Uint32(p.r[:4]), nil
}

func (p *I2C) Write32(off, v uint32) error {
	reg, err := i2cReg(off)
	if err != nil {
		return fmt.Errorf("regport: could not write register 0x%x: %w", off, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.w[0] = reg
	binary.LittleEndian.PutUint32(p.w[1:5], v)
	err = p.dev.Tx(p.w[:5], nil)
	if err != nil {
		return fmt.Errorf("regport: could not write register 0x%x: %w", off, err)
	}
	return nil
}

// Close closes the I²C bus, if the port opened it.
func (p *I2C) Close() error {
	if p.bus == nil {
		return nil
	}
	bus := p.bus
	p.bus = nil
	return bus.Close()
}

func i2cReg(off uint32) (uint8, error) {
	if off%4 != 0 || off > 0xff {
		return 0, errInvalidOffset
	}
	return uint8(off), nil
}

var _ PortCloser = (*I2C)(nil)
