// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package regport

import (
	"fmt"
	"time"

	"github.com/tarm/serial"
)

const serialTimeout = 500 * time.Millisecond

// OpenSerial opens a port to a device behind a UART register bridge
// speaking the register protocol.
func OpenSerial(name string, baud int) (*Stream, error) {
	sp, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: serialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("regport: could not open serial port %q: %w", name, err)
	}

	err = sp.Flush()
	if err != nil {
		_ = sp.Close()
		return nil, fmt.Errorf("regport: could not flush serial port %q: %w", name, err)
	}

	return NewStream(sp), nil
}
