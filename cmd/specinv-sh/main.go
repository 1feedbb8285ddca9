// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command specinv-sh is an interactive shell to configure and query a
// spectral-inversion block served by specinv-svc.
//
// Usage: specinv-sh [OPTIONS]
//
// Example:
//
//	$> specinv-sh -addr localhost:9999
//	specinv> status
//	state=INVERTING samples=12345
//	specinv> auto on
//	specinv> threshold 0x800
//
// When a configuration database is given (-db), the recorded presets can be
// listed and applied:
//
//	$> specinv-sh -addr localhost:9999 -db specinv
//	specinv> presets
//	specinv> preset zone2-auto
package main // import "github.com/go-lpc/specinv/cmd/specinv-sh"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-lpc/specinv/conddb"
	"github.com/go-lpc/specinv/ctlsrv"
	"github.com/go-lpc/specinv/invert"
	"github.com/peterh/liner"
)

func main() {
	var (
		addr = flag.String("addr", "localhost:9999", "specinv-svc address")
		hist = flag.String("history", filepath.Join(os.TempDir(), ".specinv-sh.history"), "history file")
		name = flag.String("db", "", "name of the configuration database holding presets")
	)

	log.SetPrefix("specinv-sh: ")
	log.SetFlags(0)

	flag.Parse()

	cli, err := ctlsrv.Dial(*addr)
	if err != nil {
		log.Fatalf("could not connect to specinv-svc: %+v", err)
	}
	defer cli.Close()

	var db presetDB
	if *name != "" {
		cdb, err := conddb.Open(*name)
		if err != nil {
			log.Fatalf("could not open configuration database: %+v", err)
		}
		defer cdb.Close()
		db = cdb
	}

	err = run(cli, db, *hist)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

type controller interface {
	SetInvertEnabled(v bool) error
	SetAutoDetect(v bool) error
	SetDetectionThreshold(v uint32) error
	SetDetectionWindow(v uint32) error
	Apply(cfg invert.Config) error
	Config() (invert.Config, error)
	Status() (invert.Status, error)
}

var _ controller = (*ctlsrv.Client)(nil)

type presetDB interface {
	Presets(ctx context.Context) ([]conddb.Preset, error)
}

var _ presetDB = (*conddb.DB)(nil)

const dbTimeout = 10 * time.Second

var errQuit = errors.New("quit")

func run(ctl controller, db presetDB, hist string) error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(complete)

	if f, err := os.Open(hist); err == nil {
		_, _ = term.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		f, err := os.Create(hist)
		if err != nil {
			log.Printf("could not save history: %+v", err)
			return
		}
		defer f.Close()
		_, _ = term.WriteHistory(f)
	}()

	for {
		line, err := term.Prompt("specinv> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		err = eval(ctl, db, os.Stdout, line)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case err != nil:
			fmt.Fprintf(os.Stdout, "error: %+v\n", err)
		}
	}
}

var cmds = map[string]string{
	"invert":    "invert on|off       enable/disable the spectral inversion",
	"auto":      "auto on|off         enable/disable the automatic detection",
	"threshold": "threshold VALUE     set the detection threshold",
	"window":    "window SAMPLES      set the detection window",
	"defaults":  "defaults            apply the default configuration",
	"presets":   "presets             list the presets of the configuration database",
	"preset":    "preset NAME         apply a preset of the configuration database",
	"config":    "config              display the desired configuration",
	"status":    "status              display the block status",
	"help":      "help                display this help message",
	"quit":      "quit                exit the shell",
}

func complete(line string) []string {
	var out []string
	for name := range cmds {
		if strings.HasPrefix(name, line) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func eval(ctl controller, db presetDB, w io.Writer, line string) error {
	toks := strings.Fields(line)
	if len(toks) == 0 {
		return nil
	}

	name, args := toks[0], toks[1:]
	nargs := 0
	switch name {
	case "invert", "auto", "threshold", "window", "preset":
		nargs = 1
	}
	if _, ok := cmds[name]; !ok {
		return fmt.Errorf("unknown command %q (try \"help\")", name)
	}
	if len(args) != nargs {
		return fmt.Errorf("invalid number of arguments for %q: got=%d, want=%d", name, len(args), nargs)
	}

	switch name {
	case "invert":
		v, err := parseBool(args[0])
		if err != nil {
			return err
		}
		return ctl.SetInvertEnabled(v)

	case "auto":
		v, err := parseBool(args[0])
		if err != nil {
			return err
		}
		return ctl.SetAutoDetect(v)

	case "threshold":
		v, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return fmt.Errorf("could not parse threshold %q: %w", args[0], err)
		}
		return ctl.SetDetectionThreshold(uint32(v))

	case "window":
		v, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return fmt.Errorf("could not parse window %q: %w", args[0], err)
		}
		return ctl.SetDetectionWindow(uint32(v))

	case "defaults":
		return ctl.Apply(invert.DefaultConfig())

	case "presets":
		presets, err := listPresets(db)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		for _, p := range presets {
			fmt.Fprintf(tw, "%s\t%s\t%v\n", p.Name, p.Date.Format(time.RFC3339), p.Config)
		}
		return tw.Flush()

	case "preset":
		presets, err := listPresets(db)
		if err != nil {
			return err
		}
		for _, p := range presets {
			if p.Name == args[0] {
				return ctl.Apply(p.Config)
			}
		}
		return fmt.Errorf("could not find preset %q: %w", args[0], conddb.ErrNoPreset)

	case "config":
		cfg, err := ctl.Config()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%v\n", cfg)

	case "status":
		st, err := ctl.Status()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "state=%v samples=%d\n", st.State(), st.SamplesProcessed)

	case "help":
		names := make([]string, 0, len(cmds))
		for name := range cmds {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %s\n", cmds[name])
		}

	case "quit":
		return errQuit
	}

	return nil
}

// listPresets returns the recorded presets, most recent first.
func listPresets(db presetDB) ([]conddb.Preset, error) {
	if db == nil {
		return nil, fmt.Errorf("no configuration database (see -db)")
	}
	ctx, cancel := context.WithTimeout(context.Background(), dbTimeout)
	defer cancel()

	presets, err := db.Presets(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list presets: %w", err)
	}
	return presets, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "1", "true", "yes":
		return true, nil
	case "off", "0", "false", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value %q", s)
}
