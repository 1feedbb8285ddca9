// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command specinv-sim serves a simulated spectral-inversion block on the
// binary register protocol, feeding it with a synthetic tone.
//
// Usage: specinv-sim [OPTIONS]
//
// Example:
//
//	$> specinv-sim -addr :5555 -amp 0.5 &
//	$> specinv-svc -port tcp://localhost:5555
package main // import "github.com/go-lpc/specinv/cmd/specinv-sim"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/go-lpc/specinv/regport"
	"github.com/go-lpc/specinv/sim"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		addr  = flag.String("addr", ":5555", "[addr]:port to serve")
		amp   = flag.Float64("amp", 0.5, "amplitude of the input tone")
		freq  = flag.Float64("tone", 0.125, "normalized frequency of the input tone")
		chunk = flag.Int("n", 1024, "number of samples per chunk")
		every = flag.Duration("every", 10*time.Millisecond, "period between chunks")
	)

	log.SetPrefix("specinv-sim: ")
	log.SetFlags(0)

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, *addr, sim.Tone(*chunk, *amp, *freq), *every)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(ctx context.Context, addr string, iq []complex64, every time.Duration) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("could not listen on %q: %w", addr, err)
	}

	dev := sim.New()
	srv := regport.NewServer(ln, dev)
	srv.SetLogger(log.New(os.Stdout, "specinv-sim: ", 0))

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		log.Printf("serving simulated block on %v...", srv.Addr())
		return srv.Serve()
	})
	grp.Go(func() error {
		defer srv.Close()
		return feed(ctx, dev, iq, every)
	})

	return grp.Wait()
}

func feed(ctx context.Context, dev *sim.Device, iq []complex64, every time.Duration) error {
	tck := time.NewTicker(every)
	defer tck.Stop()

	active := dev.Active()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tck.C:
			dev.Process(iq)
			if v := dev.Active(); v != active {
				log.Printf("inversion active: %v", v)
				active = v
			}
		}
	}
}
