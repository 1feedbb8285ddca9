// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ctlsrv exposes the configuration and status of a
// spectral-inversion block over the network.
//
// Requests and replies are JSON objects exchanged over a TCP stream:
//
//	{"name": "set-invert", "args": true}
//	{"name": "set-auto-detect", "args": false}
//	{"name": "set-threshold", "args": 4096}
//	{"name": "set-window", "args": 1024}
//	{"name": "apply", "args": {"invert_enabled": true, ...}}
//	{"name": "config"}
//	{"name": "status"}
//
// Each request is answered with {"msg": "ok"} or {"msg": <error>}, along
// with the configuration or the status when requested.
package ctlsrv // import "github.com/go-lpc/specinv/ctlsrv"

import (
	"encoding/json"

	"github.com/go-lpc/specinv/invert"
)

// Request names.
const (
	CmdSetInvert     = "set-invert"
	CmdSetAutoDetect = "set-auto-detect"
	CmdSetThreshold  = "set-threshold"
	CmdSetWindow     = "set-window"
	CmdApply         = "apply"
	CmdConfig        = "config"
	CmdStatus        = "status"
)

// Request is a command sent to a Server.
type Request struct {
	Name string           `json:"name"`
	Args *json.RawMessage `json:"args,omitempty"`
}

// Reply is the answer of a Server to a Request.
type Reply struct {
	Msg    string         `json:"msg"`
	Config *invert.Config `json:"config,omitempty"`
	Status *invert.Status `json:"status,omitempty"`
}

const replyOK = "ok"
