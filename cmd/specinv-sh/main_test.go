// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-lpc/specinv/conddb"
	"github.com/go-lpc/specinv/invert"
)

type fakeCtl struct {
	cfg invert.Config
	st  invert.Status
}

func (ctl *fakeCtl) SetInvertEnabled(v bool) error        { ctl.cfg.InvertEnabled = v; return nil }
func (ctl *fakeCtl) SetAutoDetect(v bool) error           { ctl.cfg.AutoDetect = v; return nil }
func (ctl *fakeCtl) SetDetectionThreshold(v uint32) error { ctl.cfg.DetectionThreshold = v; return nil }
func (ctl *fakeCtl) SetDetectionWindow(v uint32) error    { ctl.cfg.DetectionWindow = v; return nil }
func (ctl *fakeCtl) Apply(cfg invert.Config) error        { ctl.cfg = cfg; return nil }
func (ctl *fakeCtl) Config() (invert.Config, error)       { return ctl.cfg, nil }
func (ctl *fakeCtl) Status() (invert.Status, error)       { return ctl.st, nil }

func TestEval(t *testing.T) {
	ctl := &fakeCtl{st: invert.Status{InversionActive: true, SamplesProcessed: 42}}
	out := new(bytes.Buffer)

	for _, line := range []string{
		"invert off",
		"auto on",
		"threshold 0x800",
		"window 64",
	} {
		err := eval(ctl, nil, out, line)
		if err != nil {
			t.Fatalf("could not eval %q: %+v", line, err)
		}
	}

	want := invert.Config{
		InvertEnabled:      false,
		AutoDetect:         true,
		DetectionThreshold: 0x800,
		DetectionWindow:    64,
	}
	if got := ctl.cfg; got != want {
		t.Fatalf("invalid config: got=%v, want=%v", got, want)
	}

	err := eval(ctl, nil, out, "config")
	if err != nil {
		t.Fatalf("could not eval config: %+v", err)
	}
	if got, want := out.String(), want.String()+"\n"; got != want {
		t.Fatalf("invalid config output: got=%q, want=%q", got, want)
	}

	out.Reset()
	err = eval(ctl, nil, out, "status")
	if err != nil {
		t.Fatalf("could not eval status: %+v", err)
	}
	if got, want := out.String(), "state=INVERTING samples=42\n"; got != want {
		t.Fatalf("invalid status output: got=%q, want=%q", got, want)
	}

	err = eval(ctl, nil, out, "defaults")
	if err != nil {
		t.Fatalf("could not eval defaults: %+v", err)
	}
	if got, want := ctl.cfg, invert.DefaultConfig(); got != want {
		t.Fatalf("invalid config: got=%v, want=%v", got, want)
	}

	out.Reset()
	err = eval(ctl, nil, out, "help")
	if err != nil {
		t.Fatalf("could not eval help: %+v", err)
	}
	if got, want := strings.Count(out.String(), "\n"), len(cmds); got != want {
		t.Fatalf("invalid help output: got=%d lines, want=%d", got, want)
	}

	err = eval(ctl, nil, out, "quit")
	if !errors.Is(err, errQuit) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, errQuit)
	}
}

func TestEvalErrors(t *testing.T) {
	ctl := &fakeCtl{}
	for _, line := range []string{
		"boom",
		"invert",
		"invert maybe",
		"auto on off",
		"threshold -1",
		"window 0x100000000",
		"status now",
		"presets",
		"preset zone2",
	} {
		t.Run(line, func(t *testing.T) {
			err := eval(ctl, nil, new(bytes.Buffer), line)
			if err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestComplete(t *testing.T) {
	for _, tc := range []struct {
		line string
		want []string
	}{
		{"", []string{"auto", "config", "defaults", "help", "invert", "preset", "presets", "quit", "status", "threshold", "window"}},
		{"s", []string{"status"}},
		{"pre", []string{"preset", "presets"}},
		{"x", nil},
	} {
		t.Run(tc.line, func(t *testing.T) {
			got := complete(tc.line)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("invalid completion: got=%q, want=%q", got, tc.want)
			}
		})
	}
}

type fakeDB struct {
	presets []conddb.Preset
	err     error
}

func (db *fakeDB) Presets(ctx context.Context) ([]conddb.Preset, error) {
	return db.presets, db.err
}

func TestEvalPresets(t *testing.T) {
	db := &fakeDB{
		presets: []conddb.Preset{
			{
				Name: "zone2-auto",
				Date: time.Date(2026, 10, 2, 8, 0, 0, 0, time.UTC),
				Config: invert.Config{
					AutoDetect:         true,
					DetectionThreshold: 0x800,
					DetectionWindow:    512,
				},
			},
			{
				Name:   "zone2-auto",
				Date:   time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
				Config: invert.DefaultConfig(),
			},
			{
				Name:   "passthrough",
				Date:   time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC),
				Config: invert.Config{DetectionThreshold: 0x1000, DetectionWindow: 1024},
			},
		},
	}
	ctl := &fakeCtl{}
	out := new(bytes.Buffer)

	err := eval(ctl, db, out, "presets")
	if err != nil {
		t.Fatalf("could not list presets: %+v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if got, want := len(lines), len(db.presets); got != want {
		t.Fatalf("invalid number of presets: got=%d, want=%d\n%s", got, want, out)
	}
	if got, want := lines[0], "2026-10-02T08:00:00Z"; !strings.HasPrefix(lines[0], "zone2-auto") || !strings.Contains(got, want) {
		t.Fatalf("invalid first preset: got=%q, want=%q", got, want)
	}

	// the most recent preset recorded under a name wins.
	err = eval(ctl, db, out, "preset zone2-auto")
	if err != nil {
		t.Fatalf("could not apply preset: %+v", err)
	}
	if got, want := ctl.cfg, db.presets[0].Config; got != want {
		t.Fatalf("invalid config: got=%v, want=%v", got, want)
	}

	err = eval(ctl, db, out, "preset zone4")
	if !errors.Is(err, conddb.ErrNoPreset) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, conddb.ErrNoPreset)
	}

	db.err = errors.New("db down")
	err = eval(ctl, db, out, "presets")
	if !errors.Is(err, db.err) {
		t.Fatalf("invalid error: got=%+v, want=%+v", err, db.err)
	}
}
