// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command specinv-mon monitors the state of a set of spectral-inversion
// blocks served by specinv-svc.
//
// Usage: specinv-mon [OPTIONS] NAME=ADDR [NAME=ADDR...]
//
// Example:
//
//	$> specinv-mon -mqtt tcp://localhost:1883 -http :8080 rx0=localhost:9999
//
// State transitions are logged, published on MQTT (when -mqtt is set), sent
// by mail (when -mail is set, see the MAIL_xxx environment variables) and
// broadcast to websocket clients connected to /ws (when -http is set).
package main // import "github.com/go-lpc/specinv/cmd/specinv-mon"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-lpc/specinv/ctlsrv"
	"github.com/go-lpc/specinv/monitor"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		freq   = flag.Duration("freq", 5*time.Second, "polling period")
		broker = flag.String("mqtt", "", "MQTT broker URI")
		topic  = flag.String("topic", "specinv/status", "MQTT topic prefix")
		doMail = flag.Bool("mail", false, "enable mail alerts")
		addr   = flag.String("http", "", "[addr]:port for the websocket server")
	)

	log.SetPrefix("specinv-mon: ")
	log.SetFlags(0)

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing block address")
	}

	blocks, err := parseBlocks(flag.Args())
	if err != nil {
		log.Fatalf("%+v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = run(ctx, blocks, *freq, *broker, *topic, *doMail, *addr)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func parseBlocks(args []string) (map[string]string, error) {
	blocks := make(map[string]string, len(args))
	for _, arg := range args {
		name, addr, ok := strings.Cut(arg, "=")
		if !ok {
			name, addr = arg, arg
		}
		if name == "" || addr == "" {
			return nil, fmt.Errorf("invalid block %q", arg)
		}
		if _, dup := blocks[name]; dup {
			return nil, fmt.Errorf("duplicate block %q", name)
		}
		blocks[name] = addr
	}
	return blocks, nil
}

func run(ctx context.Context, blocks map[string]string, freq time.Duration, broker, topic string, doMail bool, addr string) error {
	srcs := make(map[string]monitor.Source, len(blocks))
	for name, endpoint := range blocks {
		cli, err := ctlsrv.Dial(endpoint)
		if err != nil {
			return fmt.Errorf("could not connect to block %q: %w", name, err)
		}
		defer cli.Close()
		srcs[name] = cli
	}

	opts := []monitor.Option{
		monitor.WithFreq(freq),
		monitor.WithSink(monitor.NewLogSink(log.Default())),
	}

	if broker != "" {
		cli, err := monitor.DialMQTT(broker, "specinv-mon")
		if err != nil {
			return err
		}
		defer cli.Disconnect(250)
		opts = append(opts, monitor.WithSink(monitor.NewMQTT(cli, topic)))
	}

	if doMail {
		sink, err := monitor.NewMail()
		if err != nil {
			return err
		}
		opts = append(opts, monitor.WithSink(sink))
	}

	grp, ctx := errgroup.WithContext(ctx)

	if addr != "" {
		hub := monitor.NewHub()
		defer hub.Close()
		opts = append(opts, monitor.WithSink(hub))

		mux := http.NewServeMux()
		mux.Handle("/ws", hub)
		srv := &http.Server{Addr: addr, Handler: mux}
		grp.Go(func() error {
			log.Printf("serving websocket on %s/ws...", addr)
			err := srv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		grp.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
	}

	mon := monitor.New(srcs, opts...)
	grp.Go(func() error {
		return mon.Run(ctx)
	})

	return grp.Wait()
}
