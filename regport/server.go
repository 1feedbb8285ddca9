// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regport

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"
)

// Server exposes a Port on the network, with the register protocol.
type Server struct {
	ln  net.Listener
	msg *log.Logger

	mu   sync.Mutex // serializes accesses to port
	port Port
}

// NewServer creates a server exposing port on the listener ln.
func NewServer(ln net.Listener, port Port) *Server {
	return &Server{
		ln:   ln,
		msg:  log.New(os.Stdout, "regport: ", 0),
		port: port,
	}
}

// SetLogger sets the logger of the server.
func (srv *Server) SetLogger(msg *log.Logger) {
	srv.msg = msg
}

// Addr returns the network address the server listens on.
func (srv *Server) Addr() net.Addr {
	return srv.ln.Addr()
}

// Serve accepts connections and serves register requests until the
// listener is closed.
func (srv *Server) Serve() error {
	for {
		conn, err := srv.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("regport: could not accept connection: %w", err)
		}
		go srv.handle(conn)
	}
}

// Close stops the server.
func (srv *Server) Close() error {
	return srv.ln.Close()
}

func (srv *Server) handle(conn net.Conn) {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	var (
		ibuf [reqSize]byte
		obuf [repSize]byte
	)
	for {
		_, err := io.ReadFull(conn, ibuf[:])
		if err != nil {
			if !errors.Is(err, io.EOF) {
				srv.msg.Printf("could not read request: %+v", err)
			}
			return
		}

		var req request
		req.decode(ibuf[:])

		rep := srv.dispatch(req)
		rep.encode(obuf[:])
		_, err = conn.Write(obuf[:])
		if err != nil {
			srv.msg.Printf("could not send reply: %+v", err)
			return
		}
	}
}

func (srv *Server) dispatch(req request) reply {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	switch req.op {
	case opRead:
		v, err := srv.port.Read32(req.off)
		if err != nil {
			srv.msg.Printf("could not read register 0x%x: %+v", req.off, err)
			return reply{code: codeFault}
		}
		return reply{code: codeOK, v: v}

	case opWrite:
		err := srv.port.Write32(req.off, req.v)
		if err != nil {
			srv.msg.Printf("could not write register 0x%x: %+v", req.off, err)
			return reply{code: codeFault}
		}
		return reply{code: codeOK}

	default:
		srv.msg.Printf("unknown request op 0x%x", req.op)
		return reply{code: codeBadOp}
	}
}
