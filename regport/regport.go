// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regport provides 32-bit register access ports to device register
// files: memory-mapped windows, SMBus and I²C devices, and remote devices
// reached through a byte stream (TCP, serial line).
package regport // import "github.com/go-lpc/specinv/regport"

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Port is a 32-bit register access port.
type Port interface {
	Write32(offset, value uint32) error
	Read32(offset uint32) (uint32, error)
}

// PortCloser is a Port holding resources.
type PortCloser interface {
	Port
	io.Closer
}

var (
	// ErrDeviceFault is returned when a remote device reports a failed
	// register access.
	ErrDeviceFault = errors.New("regport: device fault")

	errInvalidOffset = errors.New("regport: invalid register offset")
)

// Open opens the register access port described by uri:
//
//	mem:///dev/mem?base=0xff200000&size=0x1000
//	smbus://1/0x40
//	i2c://I2C1/0x40   (i2c:///0x40 for the first available bus)
//	tcp://host:port
//	serial:///dev/ttyUSB0?baud=115200
func Open(uri string) (PortCloser, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("regport: could not parse port URI %q: %w", uri, err)
	}

	switch u.Scheme {
	case "mem":
		base, err := parseUint(u.Query().Get("base"), 0, 64)
		if err != nil {
			return nil, fmt.Errorf("regport: invalid mem base in %q: %w", uri, err)
		}
		size, err := parseUint(u.Query().Get("size"), 0x1000, 32)
		if err != nil {
			return nil, fmt.Errorf("regport: invalid mem size in %q: %w", uri, err)
		}
		return OpenMem(u.Path, int64(base), int(size))

	case "smbus":
		bus, err := strconv.Atoi(u.Host)
		if err != nil {
			return nil, fmt.Errorf("regport: invalid SMBus bus in %q: %w", uri, err)
		}
		addr, err := parseAddr(u.Path, 7)
		if err != nil {
			return nil, fmt.Errorf("regport: invalid SMBus address in %q: %w", uri, err)
		}
		return OpenSMBus(bus, uint8(addr))

	case "i2c":
		addr, err := parseAddr(u.Path, 10)
		if err != nil {
			return nil, fmt.Errorf("regport: invalid I2C address in %q: %w", uri, err)
		}
		return OpenI2C(u.Host, uint16(addr))

	case "tcp":
		conn, err := net.Dial("tcp", u.Host)
		if err != nil {
			return nil, fmt.Errorf("regport: could not dial %q: %w", u.Host, err)
		}
		return NewStream(conn), nil

	case "serial":
		baud, err := parseUint(u.Query().Get("baud"), 115200, 32)
		if err != nil {
			return nil, fmt.Errorf("regport: invalid baud rate in %q: %w", uri, err)
		}
		return OpenSerial(u.Path, int(baud))

	default:
		return nil, fmt.Errorf("regport: unknown port scheme %q", u.Scheme)
	}
}

func parseUint(s string, def uint64, bits int) (uint64, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, err
	}
	return v, nil
}

func parseAddr(path string, bits int) (uint64, error) {
	s := strings.Trim(path, "/")
	if s == "" {
		return 0, fmt.Errorf("missing device address")
	}
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, err
	}
	return v, nil
}
