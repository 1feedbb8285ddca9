// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regport

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// Register protocol over a byte stream.
//
// A request is 9 bytes: op (1) | offset (u32) | value (u32).
// A reply is 5 bytes: code (1) | value (u32).
// Integers are little-endian; value is ignored in read requests and in
// write replies.
const (
	opRead  = 'R'
	opWrite = 'W'

	codeOK    = 0x00
	codeFault = 0x01
	codeBadOp = 0x02

	reqSize = 9
	repSize = 5
)

type request struct {
	op  byte
	off uint32
	v   uint32
}

func (req request) encode(p []byte) {
	p[0] = req.op
	binary.LittleEndian.PutUint32(p[1:5], req.off)
	binary.LittleEndian.PutUint32(p[5:9], req.v)
}

func (req *request) decode(p []byte) {
	req.op = p[0]
	req.off = binary.LittleEndian.Uint32(p[1:5])
	req.v = binary.LittleEndian.Uint32(p[5:9])
}

type reply struct {
	code byte
	v    uint32
}

func (rep reply) encode(p []byte) {
	p[0] = rep.code
	binary.LittleEndian.PutUint32(p[1:5], rep.v)
}

func (rep *reply) decode(p []byte) {
	rep.code = p[0]
	rep.v = binary.LittleEndian.Uint32(p[1:5])
}

// Stream is a port to a remote device, speaking the register protocol
// over a byte stream.
// Request/reply pairs are serialized: a Stream may be shared.
type Stream struct {
	mu  sync.Mutex
	rw  io.ReadWriter
	req [reqSize]byte
	rep [repSize]byte
}

// NewStream returns a port exchanging register requests over rw.
func NewStream(rw io.ReadWriter) *Stream {
	return &Stream{rw: rw}
}

func (s *Stream) Read32(off uint32) (uint32, error) {
	v, err := s.roundTrip(request{op: opRead, off: off})
	if err != nil {
		return 0, fmt.Errorf("regport: could not read register 0x%x: %w", off, err)
	}
	return v, nil
}

func (s *Stream) Write32(off, v uint32) error {
	_, err := s.roundTrip(request{op: opWrite, off: off, v: v})
	if err != nil {
		return fmt.Errorf("regport: could not write register 0x%x: %w", off, err)
	}
	return nil
}

func (s *Stream) roundTrip(req request) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req.encode(s.req[:])
	_, err := s.rw.Write(s.req[:])
	if err != nil {
		return 0, fmt.Errorf("could not send request: %w", err)
	}

	_, err = io.ReadFull(s.rw, s.rep[:])
	if err != nil {
		return 0, fmt.Errorf("could not receive reply: %w", err)
	}

	var rep reply
	rep.decode(s.rep[:])
	switch rep.code {
	case codeOK:
		return rep.v, nil
	case codeFault:
		return 0, ErrDeviceFault
	default:
		return 0, fmt.Errorf("invalid reply code 0x%x", rep.code)
	}
}

// Close closes the underlying stream, if it can be closed.
func (s *Stream) Close() error {
	c, ok := s.rw.(io.Closer)
	if !ok {
		return nil
	}
	return c.Close()
}

var _ PortCloser = (*Stream)(nil)
