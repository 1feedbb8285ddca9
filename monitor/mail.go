// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package monitor

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"

	mail "gopkg.in/gomail.v2"
)

type mailSender interface {
	DialAndSend(m ...*mail.Message) error
}

// Mail sends an alert mail on each block state transition.
// The first observation of a block is not mailed.
type Mail struct {
	from string
	tgts []string
	dial mailSender
}

// NewMail creates a mail sink from the MAIL_USERNAME, MAIL_PASSWORD,
// MAIL_SERVER, MAIL_PORT and MAIL_TGTS environment variables.
func NewMail() (*Mail, error) {
	var (
		usr  = os.Getenv("MAIL_USERNAME")
		pwd  = os.Getenv("MAIL_PASSWORD")
		srv  = os.Getenv("MAIL_SERVER")
		tgts = splitTargets(os.Getenv("MAIL_TGTS"))
	)
	port, err := strconv.Atoi(os.Getenv("MAIL_PORT"))
	if err != nil || port == 0 {
		return nil, fmt.Errorf("monitor: invalid MAIL_PORT %q", os.Getenv("MAIL_PORT"))
	}

	if usr == "" || pwd == "" || srv == "" || len(tgts) == 0 {
		return nil, fmt.Errorf("monitor: missing mail credentials")
	}

	dial := mail.NewDialer(srv, port, usr, pwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}

	return &Mail{from: usr, tgts: tgts, dial: dial}, nil
}

func splitTargets(v string) []string {
	var out []string
	for _, tgt := range strings.Split(v, ",") {
		tgt = strings.TrimSpace(tgt)
		if tgt == "" {
			continue
		}
		out = append(out, tgt)
	}
	return out
}

func (sink *Mail) Send(ctx context.Context, evt Event) error {
	if evt.First {
		return nil
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", sink.from)
	msg.SetHeader("Bcc", sink.tgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[specinv] %s: %v -> %v", evt.Block, evt.From, evt.To))
	msg.SetBody("text/plain", fmt.Sprintf("block:   %s\ntime:    %v\nstate:   %v -> %v\nsamples: %d",
		evt.Block, evt.Time, evt.From, evt.To, evt.Status.SamplesProcessed,
	))

	err := sink.dial.DialAndSend(msg)
	if err != nil {
		return fmt.Errorf("monitor: could not send mail alert: %w", err)
	}
	return nil
}

var _ Sink = (*Mail)(nil)
