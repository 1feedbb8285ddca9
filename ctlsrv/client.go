// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ctlsrv

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/go-lpc/specinv/invert"
)

// Client is a connection to a Server.
// A Client is safe for concurrent use.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

// Dial connects to the server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("ctlsrv: could not dial %q: %w", addr, err)
	}
	return &Client{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
	}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) SetInvertEnabled(v bool) error {
	_, err := c.send(CmdSetInvert, v)
	return err
}

func (c *Client) SetAutoDetect(v bool) error {
	_, err := c.send(CmdSetAutoDetect, v)
	return err
}

func (c *Client) SetDetectionThreshold(v uint32) error {
	_, err := c.send(CmdSetThreshold, v)
	return err
}

func (c *Client) SetDetectionWindow(v uint32) error {
	_, err := c.send(CmdSetWindow, v)
	return err
}

func (c *Client) Apply(cfg invert.Config) error {
	_, err := c.send(CmdApply, cfg)
	return err
}

func (c *Client) Config() (invert.Config, error) {
	rep, err := c.send(CmdConfig, nil)
	if err != nil {
		return invert.Config{}, err
	}
	if rep.Config == nil {
		return invert.Config{}, fmt.Errorf("ctlsrv: missing configuration in reply")
	}
	return *rep.Config, nil
}

func (c *Client) Status() (invert.Status, error) {
	rep, err := c.send(CmdStatus, nil)
	if err != nil {
		return invert.Status{}, err
	}
	if rep.Status == nil {
		return invert.Status{}, fmt.Errorf("ctlsrv: missing status in reply")
	}
	return *rep.Status, nil
}

func (c *Client) send(name string, args interface{}) (Reply, error) {
	req := Request{Name: name}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return Reply{}, fmt.Errorf("ctlsrv: could not encode %q payload: %w", name, err)
		}
		msg := json.RawMessage(raw)
		req.Args = &msg
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.enc.Encode(req)
	if err != nil {
		return Reply{}, fmt.Errorf("ctlsrv: could not send %q request: %w", name, err)
	}

	var rep Reply
	err = c.dec.Decode(&rep)
	if err != nil {
		return rep, fmt.Errorf("ctlsrv: could not decode %q reply: %w", name, err)
	}

	if rep.Msg != replyOK {
		return rep, fmt.Errorf("ctlsrv: %q failed: %w", name, errors.New(rep.Msg))
	}
	return rep, nil
}
