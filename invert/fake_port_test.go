// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package invert

import (
	"errors"
	"io"
	"log"
)

var errBus = errors.New("bus error")

type access struct {
	op  byte // 'r' or 'w'
	reg Register
	v   uint32
}

// fakePort records every register access and returns canned status values.
type fakePort struct {
	ops    []access
	status []uint32

	failW map[Register]bool
	failR bool
}

func (p *fakePort) Write32(off, v uint32) error {
	reg := Register(off)
	p.ops = append(p.ops, access{'w', reg, v})
	if p.failW[reg] {
		return errBus
	}
	return nil
}

func (p *fakePort) Read32(off uint32) (uint32, error) {
	reg := Register(off)
	if p.failR {
		p.ops = append(p.ops, access{'r', reg, 0})
		return 0, errBus
	}
	var v uint32
	if reg == RegInvertStatus && len(p.status) > 0 {
		v = p.status[0]
		p.status = p.status[1:]
	}
	p.ops = append(p.ops, access{'r', reg, v})
	return v, nil
}

func (p *fakePort) writes() []access {
	var ws []access
	for _, op := range p.ops {
		if op.op == 'w' {
			ws = append(ws, op)
		}
	}
	return ws
}

func (p *fakePort) reset() { p.ops = p.ops[:0] }

func newTestController(p *fakePort) (*Controller, error) {
	return New(p, WithLogger(log.New(io.Discard, "", 0)))
}
