// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command specinv-svc configures a spectral-inversion block and serves its
// configuration and status over the network.
//
// Usage: specinv-svc [OPTIONS]
//
// Example:
//
//	$> specinv-svc -port "mem:///dev/mem?base=0xff200000" -addr :9999
//	$> specinv-svc -port tcp://localhost:5555 -preset nyquist-2
//	$> specinv-svc -port tcp://localhost:5555 -last
package main // import "github.com/go-lpc/specinv/cmd/specinv-svc"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/go-lpc/specinv/conddb"
	"github.com/go-lpc/specinv/ctlsrv"
	"github.com/go-lpc/specinv/invert"
	"github.com/go-lpc/specinv/regport"
	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		addr   = flag.String("addr", ":9999", "[addr]:port to serve")
		uri    = flag.String("port", "mem:///dev/mem?base=0xff200000&size=0x1000", "register access port URI")
		preset = flag.String("preset", "", "name of the configuration preset to apply")
		last   = flag.Bool("last", false, "apply the most recently recorded preset when -preset is empty")
		dbname = flag.String("db", "specinv", "name of the configuration database")

		doMon   = flag.Bool("pmon", false, "enable pmon self-monitoring")
		monFreq = flag.Duration("freq", 1*time.Second, "pmon frequency")
		monOut  = flag.String("pmon-out", "specinv-svc-pmon.log", "pmon output file")
	)

	log.SetPrefix("specinv-svc: ")
	log.SetFlags(0)

	flag.Parse()

	if *doMon {
		stop, err := monitor(*monOut, *monFreq)
		if err != nil {
			log.Fatalf("could not start pmon: %+v", err)
		}
		defer stop()
	}

	err := run(*addr, *uri, *preset, *last, *dbname)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(addr, uri, preset string, last bool, dbname string) error {
	port, err := regport.Open(uri)
	if err != nil {
		return fmt.Errorf("could not open register port: %w", err)
	}
	defer port.Close()

	ctl, err := invert.New(port)
	if err != nil {
		return fmt.Errorf("could not create block controller: %w", err)
	}

	if preset != "" || last {
		db, err := conddb.Open(dbname)
		if err != nil {
			return fmt.Errorf("could not open configuration database: %w", err)
		}
		name, cfg, err := loadPreset(db, preset)
		_ = db.Close()
		if err != nil {
			return fmt.Errorf("could not load preset: %w", err)
		}
		log.Printf("preset %q: %v", name, cfg)

		err = ctl.Apply(cfg)
		if err != nil {
			return fmt.Errorf("could not apply preset %q: %w", name, err)
		}
	}

	srv, err := ctlsrv.New(addr, ctl)
	if err != nil {
		return fmt.Errorf("could not create ctlsrv server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var grp errgroup.Group
	grp.Go(func() error {
		log.Printf("serving %s block on %v...", invert.BlockName, srv.Addr())
		return srv.Serve()
	})
	grp.Go(func() error {
		<-ctx.Done()
		log.Printf("shutting down...")
		return srv.Close()
	})

	err = grp.Wait()
	if err != nil {
		return fmt.Errorf("could not serve block: %w", err)
	}
	return nil
}

type presetDB interface {
	LastPreset(ctx context.Context) (string, error)
	Preset(ctx context.Context, name string) (invert.Config, error)
}

var _ presetDB = (*conddb.DB)(nil)

// loadPreset retrieves the configuration recorded under name, or under the
// most recently recorded preset when name is empty.
func loadPreset(db presetDB, name string) (string, invert.Config, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if name == "" {
		var err error
		name, err = db.LastPreset(ctx)
		if err != nil {
			return name, invert.Config{}, err
		}
	}

	cfg, err := db.Preset(ctx, name)
	if err != nil {
		return name, cfg, err
	}
	return name, cfg, nil
}

func monitor(fname string, freq time.Duration) (func(), error) {
	p, err := pmon.Monitor(os.Getpid())
	if err != nil {
		return nil, fmt.Errorf("could not monitor pid=%d: %w", os.Getpid(), err)
	}

	f, err := os.Create(fname)
	if err != nil {
		return nil, fmt.Errorf("could not create pmon log file: %w", err)
	}
	p.W = f
	p.Freq = freq

	go func() {
		err := p.Run()
		if err != nil {
			log.Printf("could not run pmon: %+v", err)
		}
	}()

	return func() {
		err := p.Kill()
		if err != nil {
			log.Printf("could not stop pmon: %+v", err)
		}
		_ = f.Close()
	}, nil
}
