// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package block hosts a spectral-inversion block controller inside a
// run-control (tdaq) process.
package block // import "github.com/go-lpc/specinv/block"

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"
	"strings"
	"sync"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/specinv/invert"
	"github.com/go-lpc/specinv/regport"
)

// Presets retrieves named block configurations.
// *conddb.DB implements Presets.
type Presets interface {
	Preset(ctx context.Context, name string) (invert.Config, error)
}

// Server is a tdaq process driving a single block.
type Server struct {
	uri    string // register access port URI
	preset string // name of the configuration preset
	freq   time.Duration

	db   Presets
	open func(uri string) (regport.PortCloser, error)

	mu   sync.Mutex
	port regport.PortCloser
	ctl  *invert.Controller
	cfg  invert.Config

	n      int // number of status polls during the current run
	last   invert.Status
	status chan []byte
}

// Option configures a Server.
type Option func(*Server)

// WithPresets sets the database used to retrieve the configuration preset
// named name on /config.
func WithPresets(db Presets, name string) Option {
	return func(srv *Server) {
		srv.db = db
		srv.preset = name
	}
}

// WithPollFreq sets the status polling period during runs.
func WithPollFreq(freq time.Duration) Option {
	return func(srv *Server) {
		srv.freq = freq
	}
}

// New creates a run-control server for the block reachable through uri.
func New(uri string, opts ...Option) *Server {
	srv := &Server{
		uri:    uri,
		freq:   time.Second,
		open:   regport.Open,
		cfg:    invert.DefaultConfig(),
		status: make(chan []byte, 1024),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Config returns the desired configuration of the block.
func (srv *Server) Config() invert.Config {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	return srv.cfg
}

func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	name := srv.preset
	if len(req.Body) > 0 {
		dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
		name = dec.ReadStr()
		if err := dec.Err(); err != nil {
			ctx.Msg.Errorf("could not decode /config payload: %+v", err)
			return fmt.Errorf("could not decode /config payload: %w", err)
		}
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()

	switch {
	case name == "" || srv.db == nil:
		srv.cfg = invert.DefaultConfig()
	default:
		cfg, err := srv.db.Preset(ctx.Ctx, name)
		if err != nil {
			ctx.Msg.Errorf("could not retrieve preset %q: %+v", name, err)
			return fmt.Errorf("could not retrieve preset %q: %w", name, err)
		}
		ctx.Msg.Infof("preset %q: %v", name, cfg)
		srv.cfg = cfg
	}

	if srv.ctl == nil {
		return nil
	}

	err := srv.ctl.Apply(srv.cfg)
	if err != nil {
		ctx.Msg.Errorf("could not apply configuration: %+v", err)
		return fmt.Errorf("could not apply configuration: %w", err)
	}
	return nil
}

func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.port != nil {
		_ = srv.port.Close()
		srv.port = nil
		srv.ctl = nil
	}

	port, err := srv.open(srv.uri)
	if err != nil {
		ctx.Msg.Errorf("could not open register port %q: %+v", srv.uri, err)
		return fmt.Errorf("could not open register port %q: %w", srv.uri, err)
	}

	ctl, err := invert.New(port, invert.WithLogger(newLogger(ctx.Msg)))
	if err != nil {
		_ = port.Close()
		ctx.Msg.Errorf("could not create block controller: %+v", err)
		return fmt.Errorf("could not create block controller: %w", err)
	}

	if ctl.Config() != srv.cfg {
		err = ctl.Apply(srv.cfg)
		if err != nil {
			_ = port.Close()
			ctx.Msg.Errorf("could not apply configuration: %+v", err)
			return fmt.Errorf("could not apply configuration: %w", err)
		}
	}

	srv.port = port
	srv.ctl = ctl
	ctx.Msg.Infof("block %s on %q: %v", invert.BlockName, srv.uri, ctl.Config())

	return nil
}

func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.cfg = invert.DefaultConfig()
	srv.n = 0
	if srv.ctl == nil {
		return nil
	}

	err := srv.ctl.Apply(srv.cfg)
	if err != nil {
		ctx.Msg.Errorf("could not apply default configuration: %+v", err)
		return fmt.Errorf("could not apply default configuration: %w", err)
	}
	return nil
}

func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.ctl == nil {
		return fmt.Errorf("block not initialized")
	}
	srv.n = 0
	return nil
}

func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	srv.mu.Lock()
	n := srv.n
	last := srv.last
	srv.mu.Unlock()

	ctx.Msg.Debugf("received /stop command... -> n=%d, last=%v (%d samples)",
		n, last.State(), last.SamplesProcessed,
	)
	return nil
}

func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")

	srv.mu.Lock()
	defer srv.mu.Unlock()

	srv.ctl = nil
	if srv.port == nil {
		return nil
	}

	err := srv.port.Close()
	srv.port = nil
	if err != nil {
		ctx.Msg.Errorf("could not close register port: %+v", err)
		return fmt.Errorf("could not close register port: %w", err)
	}
	return nil
}

// Status sends the JSON-encoded block status polled during runs.
func (srv *Server) Status(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.status:
		dst.Body = data
	}
	return nil
}

// Run polls the block status until the run is stopped.
func (srv *Server) Run(ctx tdaq.Context) error {
	tck := time.NewTicker(srv.freq)
	defer tck.Stop()

	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		case <-tck.C:
			err := srv.poll(ctx)
			if err != nil {
				return err
			}
		}
	}
}

func (srv *Server) poll(ctx tdaq.Context) error {
	srv.mu.Lock()
	defer srv.mu.Unlock()

	if srv.ctl == nil {
		return fmt.Errorf("block not initialized")
	}

	st, err := srv.ctl.Status()
	if err != nil {
		ctx.Msg.Errorf("could not read block status: %+v", err)
		return fmt.Errorf("could not read block status: %w", err)
	}

	if srv.n > 0 && st.InversionActive != srv.last.InversionActive {
		ctx.Msg.Infof("block state: %v -> %v", srv.last.State(), st.State())
	}
	srv.last = st
	srv.n++

	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("could not encode block status: %w", err)
	}

	select {
	case srv.status <- raw:
	default:
		ctx.Msg.Warnf("status queue full: dropping status %v", st)
	}
	return nil
}

// msgWriter forwards the lines written to it to a tdaq message stream.
type msgWriter struct {
	msg log.MsgStream
}

func (w msgWriter) Write(p []byte) (int, error) {
	w.msg.Debugf("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func newLogger(msg log.MsgStream) *stdlog.Logger {
	return stdlog.New(msgWriter{msg}, "invert: ", 0)
}
