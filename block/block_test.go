// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package block

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/specinv/conddb"
	"github.com/go-lpc/specinv/invert"
	"github.com/go-lpc/specinv/regport"
	"github.com/go-lpc/specinv/sim"
)

type simPort struct {
	*sim.Device
	closed bool
}

func (p *simPort) Close() error {
	p.closed = true
	return nil
}

type fakePresets map[string]invert.Config

func (db fakePresets) Preset(ctx context.Context, name string) (invert.Config, error) {
	cfg, ok := db[name]
	if !ok {
		return cfg, fmt.Errorf("could not find %q: %w", name, conddb.ErrNoPreset)
	}
	return cfg, nil
}

var _ Presets = (*conddb.DB)(nil)

func newTestServer(t *testing.T, opts ...Option) (*Server, *simPort, tdaq.Context) {
	t.Helper()

	port := &simPort{Device: sim.New()}
	srv := New("sim://", opts...)
	srv.open = func(uri string) (regport.PortCloser, error) {
		return port, nil
	}

	ctx := tdaq.Context{
		Ctx: context.Background(),
		Msg: log.NewMsgStream("specinv-rc", log.LvlDebug, io.Discard),
	}
	return srv, port, ctx
}

func TestLifecycle(t *testing.T) {
	presets := fakePresets{
		"nyquist-2": {
			InvertEnabled:      false,
			AutoDetect:         true,
			DetectionThreshold: 500,
			DetectionWindow:    64,
		},
	}

	srv, port, ctx := newTestServer(t, WithPresets(presets, "nyquist-2"))

	var (
		resp tdaq.Frame
		req  tdaq.Frame
	)

	err := srv.OnConfig(ctx, &resp, req)
	if err != nil {
		t.Fatalf("could not /config: %+v", err)
	}
	if got, want := srv.Config(), presets["nyquist-2"]; got != want {
		t.Fatalf("invalid config: got=%v, want=%v", got, want)
	}
	if got := len(port.Accesses()); got != 0 {
		t.Fatalf("/config should not access the block before /init: got=%d accesses", got)
	}

	err = srv.OnInit(ctx, &resp, req)
	if err != nil {
		t.Fatalf("could not /init: %+v", err)
	}

	want := []sim.Access{
		// defaults on construction.
		{Write: true, Offset: invert.RegInvertControl, Value: 0x1},
		{Write: true, Offset: invert.RegDetectionThreshold, Value: 0x1000},
		{Write: true, Offset: invert.RegDetectionWindow, Value: 1024},
		// preset.
		{Write: true, Offset: invert.RegInvertControl, Value: 0x2},
		{Write: true, Offset: invert.RegDetectionThreshold, Value: 500},
		{Write: true, Offset: invert.RegDetectionWindow, Value: 64},
	}
	got := port.Accesses()
	if len(got) != len(want) {
		t.Fatalf("invalid accesses:\ngot= %v\nwant=%v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("invalid access[%d]: got=%v, want=%v", i, got[i], want[i])
		}
	}

	err = srv.OnStart(ctx, &resp, req)
	if err != nil {
		t.Fatalf("could not /start: %+v", err)
	}

	port.Process(sim.Tone(64, 1, 0.1))
	err = srv.poll(ctx)
	if err != nil {
		t.Fatalf("could not poll status: %+v", err)
	}

	var dst tdaq.Frame
	err = srv.Status(ctx, &dst)
	if err != nil {
		t.Fatalf("could not fetch status: %+v", err)
	}
	var st invert.Status
	err = json.Unmarshal(dst.Body, &st)
	if err != nil {
		t.Fatalf("could not decode status frame: %+v", err)
	}
	if !st.InversionActive {
		t.Fatalf("block should have detected the high-power tone")
	}
	if got, want := st.SamplesProcessed, uint32(64); got != want {
		t.Fatalf("invalid samples: got=%d, want=%d", got, want)
	}

	err = srv.OnStop(ctx, &resp, req)
	if err != nil {
		t.Fatalf("could not /stop: %+v", err)
	}

	port.ClearAccesses()
	err = srv.OnReset(ctx, &resp, req)
	if err != nil {
		t.Fatalf("could not /reset: %+v", err)
	}
	if got, want := srv.Config(), invert.DefaultConfig(); got != want {
		t.Fatalf("invalid config after /reset: got=%v, want=%v", got, want)
	}
	if got, want := len(port.Accesses()), 3; got != want {
		t.Fatalf("invalid number of accesses after /reset: got=%d, want=%d", got, want)
	}

	err = srv.OnQuit(ctx, &resp, req)
	if err != nil {
		t.Fatalf("could not /quit: %+v", err)
	}
	if !port.closed {
		t.Fatalf("register port not closed")
	}
}

func TestConfigPayload(t *testing.T) {
	presets := fakePresets{
		"low": {DetectionThreshold: 1, DetectionWindow: 2},
	}
	srv, _, ctx := newTestServer(t, WithPresets(presets, "missing"))

	var (
		resp tdaq.Frame
		req  tdaq.Frame
	)

	err := srv.OnConfig(ctx, &resp, req)
	if !errors.Is(err, conddb.ErrNoPreset) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, conddb.ErrNoPreset)
	}

	buf := new(bytes.Buffer)
	enc := tdaq.NewEncoder(buf)
	enc.WriteStr("low")
	if err := enc.Err(); err != nil {
		t.Fatalf("could not encode /config payload: %+v", err)
	}
	req.Body = buf.Bytes()

	err = srv.OnConfig(ctx, &resp, req)
	if err != nil {
		t.Fatalf("could not /config: %+v", err)
	}
	if got, want := srv.Config(), presets["low"]; got != want {
		t.Fatalf("invalid config: got=%v, want=%v", got, want)
	}
}

func TestErrors(t *testing.T) {
	var (
		resp tdaq.Frame
		req  tdaq.Frame
	)

	t.Run("start-before-init", func(t *testing.T) {
		srv, _, ctx := newTestServer(t)
		err := srv.OnStart(ctx, &resp, req)
		if err == nil {
			t.Fatalf("expected an error")
		}
	})

	t.Run("open", func(t *testing.T) {
		srv, _, ctx := newTestServer(t)
		want := errors.New("no such device")
		srv.open = func(string) (regport.PortCloser, error) { return nil, want }
		err := srv.OnInit(ctx, &resp, req)
		if !errors.Is(err, want) {
			t.Fatalf("invalid error: got=%+v, want=%+v", err, want)
		}
	})

	t.Run("init", func(t *testing.T) {
		srv, port, ctx := newTestServer(t)
		want := errors.New("bus error")
		port.Fail(want)
		err := srv.OnInit(ctx, &resp, req)
		if !errors.Is(err, want) {
			t.Fatalf("invalid error: got=%+v, want=%+v", err, want)
		}
		if !port.closed {
			t.Fatalf("register port not closed after failed /init")
		}
	})

	t.Run("poll", func(t *testing.T) {
		srv, port, ctx := newTestServer(t)
		err := srv.OnInit(ctx, &resp, req)
		if err != nil {
			t.Fatalf("could not /init: %+v", err)
		}
		want := errors.New("bus error")
		port.Fail(want)
		err = srv.poll(ctx)
		if !errors.Is(err, want) {
			t.Fatalf("invalid error: got=%+v, want=%+v", err, want)
		}
	})
}

func TestRun(t *testing.T) {
	srv, _, ctx := newTestServer(t, WithPollFreq(time.Millisecond))

	var (
		resp tdaq.Frame
		req  tdaq.Frame
	)
	err := srv.OnInit(ctx, &resp, req)
	if err != nil {
		t.Fatalf("could not /init: %+v", err)
	}

	cctx, cancel := context.WithCancel(ctx.Ctx)
	defer cancel()
	rctx := tdaq.Context{Ctx: cctx, Msg: ctx.Msg}

	done := make(chan error)
	go func() { done <- srv.Run(rctx) }()

	var dst tdaq.Frame
	err = srv.Status(rctx, &dst)
	if err != nil {
		t.Fatalf("could not fetch status: %+v", err)
	}
	if len(dst.Body) == 0 {
		t.Fatalf("empty status frame")
	}

	cancel()
	err = <-done
	if err != nil {
		t.Fatalf("run loop failed: %+v", err)
	}
}

func TestControllerLogs(t *testing.T) {
	srv, _, ctx := newTestServer(t)
	out := new(bytes.Buffer)
	ctx.Msg = log.NewMsgStream("specinv-rc", log.LvlDebug, out)

	var (
		resp tdaq.Frame
		req  tdaq.Frame
	)
	err := srv.OnInit(ctx, &resp, req)
	if err != nil {
		t.Fatalf("could not /init: %+v", err)
	}

	if got, want := out.String(), "invert: initializing specinvert block"; !strings.Contains(got, want) {
		t.Fatalf("controller messages not forwarded to the run-control stream:\ngot:\n%s\nwant:\n%s", got, want)
	}
}
