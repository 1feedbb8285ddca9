// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command specinv-rc starts a TDAQ process driving a spectral-inversion
// block.
//
// Usage: specinv-rc [TDAQ-OPTIONS] PORT-URI [PRESET]
//
// When a PRESET name is given, the block configuration is retrieved from
// the configuration database on /config.
package main // import "github.com/go-lpc/specinv/cmd/specinv-rc"

import (
	"context"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/specinv/block"
	"github.com/go-lpc/specinv/conddb"
)

func main() {
	cmd := flags.New()
	if len(cmd.Args) < 1 {
		log.Fatalf("missing register port URI")
	}

	var opts []block.Option
	if len(cmd.Args) > 1 {
		dbname := os.Getenv("SPECINV_DB")
		if dbname == "" {
			dbname = "specinv"
		}
		db, err := conddb.Open(dbname)
		if err != nil {
			log.Panicf("could not open configuration db: %+v", err)
		}
		defer db.Close()
		opts = append(opts, block.WithPresets(db, cmd.Args[1]))
	}

	dev := block.New(cmd.Args[0], opts...)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.OutputHandle("/status", dev.Status)

	srv.RunHandle(dev.Run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
