// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package monitor polls the status of spectral-inversion blocks and
// reports the PASSTHROUGH/INVERTING transitions to a set of sinks.
package monitor // import "github.com/go-lpc/specinv/monitor"

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/go-lpc/specinv/invert"
	"golang.org/x/sync/errgroup"
)

// Source provides the status of a block.
type Source interface {
	Status() (invert.Status, error)
}

// Event describes the state of a block when it was first observed, or
// when it changed.
type Event struct {
	Time   time.Time     `json:"time"`
	Block  string        `json:"block"`
	First  bool          `json:"first"`
	From   invert.State  `json:"from"`
	To     invert.State  `json:"to"`
	Status invert.Status `json:"status"`
}

func (evt Event) String() string {
	if evt.First {
		return fmt.Sprintf("%s: %v (samples=%d)", evt.Block, evt.To, evt.Status.SamplesProcessed)
	}
	return fmt.Sprintf("%s: %v -> %v (samples=%d)",
		evt.Block, evt.From, evt.To, evt.Status.SamplesProcessed,
	)
}

// Sink receives block events.
type Sink interface {
	Send(ctx context.Context, evt Event) error
}

// Monitor polls a set of blocks.
type Monitor struct {
	msg   *log.Logger
	freq  time.Duration
	srcs  map[string]Source
	sinks []Sink
	now   func() time.Time
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger of the monitor.
func WithLogger(msg *log.Logger) Option {
	return func(mon *Monitor) {
		mon.msg = msg
	}
}

// WithFreq sets the polling period.
func WithFreq(freq time.Duration) Option {
	return func(mon *Monitor) {
		mon.freq = freq
	}
}

// WithSink adds a sink to the monitor.
func WithSink(sink Sink) Option {
	return func(mon *Monitor) {
		mon.sinks = append(mon.sinks, sink)
	}
}

// New creates a monitor for the named sources.
func New(srcs map[string]Source, opts ...Option) *Monitor {
	mon := &Monitor{
		msg:  log.New(os.Stdout, "monitor: ", 0),
		freq: 5 * time.Second,
		srcs: srcs,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(mon)
	}
	return mon
}

// Run polls all the sources until ctx is canceled or a source fails.
func (mon *Monitor) Run(ctx context.Context) error {
	names := make([]string, 0, len(mon.srcs))
	for name := range mon.srcs {
		names = append(names, name)
	}
	sort.Strings(names)

	grp, ctx := errgroup.WithContext(ctx)
	for _, name := range names {
		name := name
		src := mon.srcs[name]
		grp.Go(func() error {
			return mon.poll(ctx, name, src)
		})
	}

	err := grp.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (mon *Monitor) poll(ctx context.Context, name string, src Source) error {
	tck := time.NewTicker(mon.freq)
	defer tck.Stop()

	var (
		first = true
		state invert.State
	)
	for {
		st, err := src.Status()
		if err != nil {
			return fmt.Errorf("monitor: could not read status of %q: %w", name, err)
		}

		if first || st.State() != state {
			evt := Event{
				Time:   mon.now().UTC(),
				Block:  name,
				First:  first,
				From:   state,
				To:     st.State(),
				Status: st,
			}
			mon.dispatch(ctx, evt)
		}
		first = false
		state = st.State()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tck.C:
		}
	}
}

func (mon *Monitor) dispatch(ctx context.Context, evt Event) {
	for _, sink := range mon.sinks {
		err := sink.Send(ctx, evt)
		if err != nil {
			mon.msg.Printf("could not send event %v: %+v", evt, err)
		}
	}
}

// LogSink writes events to a logger.
type LogSink struct {
	msg *log.Logger
}

func NewLogSink(msg *log.Logger) *LogSink {
	return &LogSink{msg: msg}
}

func (sink *LogSink) Send(ctx context.Context, evt Event) error {
	sink.msg.Printf("%v", evt)
	return nil
}

var (
	_ Sink = (*LogSink)(nil)
)
