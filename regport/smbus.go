// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regport

import (
	"fmt"
	"sync"

	"github.com/go-daq/smbus"
)

type smbusConn interface {
	ReadWord(addr, reg uint8) (uint16, error)
	WriteWord(addr, reg uint8, v uint16) error
	Close() error
}

var _ smbusConn = (*smbus.Conn)(nil)

// SMBus is a port to a device on a SMBus.
//
// A 32-bit register at offset off is accessed as two 16-bit word
// transfers: the low word at command off, the high word at off+2.
type SMBus struct {
	mu   sync.Mutex
	conn smbusConn
	addr uint8
}

// OpenSMBus opens the SMBus device at address addr on bus number bus.
func OpenSMBus(bus int, addr uint8) (*SMBus, error) {
	conn, err := smbus.Open(bus, addr)
	if err != nil {
		return nil, fmt.Errorf("regport: could not open SMBus %d (addr=0x%x): %w", bus, addr, err)
	}
	return &SMBus{conn: conn, addr: addr}, nil
}

func (p *SMBus) Read32(off uint32) (uint32, error) {
	reg, err := smbusReg(off)
	if err != nil {
		return 0, fmt.Errorf("regport: could not read register 0x%x: %w", off, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	lo, err := p.conn.ReadWord(p.addr, reg)
	if err != nil {
		return 0, fmt.Errorf("regport: could not read low word of register 0x%x: %w", off, err)
	}
	hi, err := p.conn.ReadWord(p.addr, reg+2)
	if err != nil {
		return 0, fmt.Errorf("regport: could not read high word of register 0x%x: %w", off, err)
	}
	return uint32(hi)<<16 | uint32(lo), nil
}

func (p *SMBus) Write32(off, v uint32) error {
	reg, err := smbusReg(off)
	if err != nil {
		return fmt.Errorf("regport: could not write register 0x%x: %w", off, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.conn.WriteWord(p.addr, reg, uint16(v))
	if err != nil {
		return fmt.Errorf("regport: could not write low word of register 0x%x: %w", off, err)
	}
	err = p.conn.WriteWord(p.addr, reg+2, uint16(v>>16))
	if err != nil {
		return fmt.Errorf("regport: could not write high word of register 0x%x: %w", off, err)
	}
	return nil
}

func (p *SMBus) Close() error {
	return p.conn.Close()
}

func smbusReg(off uint32) (uint8, error) {
	if off%4 != 0 || off > 0xfc {
		return 0, errInvalidOffset
	}
	return uint8(off), nil
}

var _ PortCloser = (*SMBus)(nil)
