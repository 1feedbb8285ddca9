// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctlsrv

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"sync"

	"github.com/go-lpc/specinv/invert"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger of the server.
func WithLogger(msg *log.Logger) Option {
	return func(srv *Server) {
		srv.msg = msg
	}
}

// Server serves the configuration/query operations of a block controller.
//
// Connections are served concurrently; all accesses to the controller are
// serialized by the server.
type Server struct {
	ctl net.Listener
	msg *log.Logger

	mu  sync.Mutex
	dev *invert.Controller
}

// Serve listens on addr and serves requests for dev until an error occurs.
func Serve(addr string, dev *invert.Controller, opts ...Option) error {
	srv, err := New(addr, dev, opts...)
	if err != nil {
		return fmt.Errorf("could not create ctlsrv server: %w", err)
	}
	return srv.Serve()
}

// New creates a server for dev, listening on addr.
func New(addr string, dev *invert.Controller, opts ...Option) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ctlsrv: could not listen on %q: %w", addr, err)
	}

	srv := &Server{
		ctl: ln,
		msg: log.New(os.Stdout, "ctlsrv: ", 0),
		dev: dev,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv, nil
}

// Addr returns the address the server listens on.
func (srv *Server) Addr() net.Addr {
	return srv.ctl.Addr()
}

// Serve accepts and serves connections until the server is closed.
func (srv *Server) Serve() error {
	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("ctlsrv: could not accept connection: %w", err)
		}
		go srv.handle(conn)
	}
}

// Close stops accepting new connections.
func (srv *Server) Close() error {
	return srv.ctl.Close()
}

func (srv *Server) handle(conn net.Conn) {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	var (
		dec = json.NewDecoder(conn)
		enc = json.NewEncoder(conn)
	)
	for {
		var req Request
		err := dec.Decode(&req)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				srv.msg.Printf("could not decode command request: %+v", err)
			}
			return
		}

		rep := srv.dispatch(req)
		err = enc.Encode(rep)
		if err != nil {
			srv.msg.Printf("could not send reply to %q: %+v", req.Name, err)
			return
		}
	}
}

func (srv *Server) dispatch(req Request) Reply {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	var (
		rep Reply
		err error
	)

	switch strings.ToLower(req.Name) {
	case CmdSetInvert:
		var v bool
		err = decodeArgs(req, &v)
		if err == nil {
			err = srv.dev.SetInvertEnabled(v)
		}

	case CmdSetAutoDetect:
		var v bool
		err = decodeArgs(req, &v)
		if err == nil {
			err = srv.dev.SetAutoDetect(v)
		}

	case CmdSetThreshold:
		var v uint32
		err = decodeArgs(req, &v)
		if err == nil {
			err = srv.dev.SetDetectionThreshold(v)
		}

	case CmdSetWindow:
		var v uint32
		err = decodeArgs(req, &v)
		if err == nil {
			err = srv.dev.SetDetectionWindow(v)
		}

	case CmdApply:
		var cfg invert.Config
		err = decodeArgs(req, &cfg)
		if err == nil {
			err = srv.dev.Apply(cfg)
		}

	case CmdConfig:
		cfg := srv.dev.Config()
		rep.Config = &cfg

	case CmdStatus:
		var st invert.Status
		st, err = srv.dev.Status()
		if err == nil {
			rep.Status = &st
		}

	default:
		err = fmt.Errorf("unknown command %q", req.Name)
	}

	rep.Msg = replyOK
	if err != nil {
		srv.msg.Printf("could not run %q: %+v", req.Name, err)
		rep.Msg = fmt.Sprintf("%+v", err)
	}
	return rep
}

func decodeArgs(req Request, ptr interface{}) error {
	if req.Args == nil {
		return fmt.Errorf("missing arguments for %q", req.Name)
	}
	err := json.Unmarshal(*req.Args, ptr)
	if err != nil {
		return fmt.Errorf("could not decode %q payload: %w", req.Name, err)
	}
	return nil
}
