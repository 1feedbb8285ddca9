// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sim

import "math"

// Tone returns n samples of a complex sinusoid of amplitude amp, at the
// normalized frequency freq (cycles per sample), starting at phase 0.
func Tone(n int, amp, freq float64) []complex64 {
	out := make([]complex64, n)
	for i := range out {
		phi := 2 * math.Pi * freq * float64(i)
		out[i] = complex(float32(amp*math.Cos(phi)), float32(amp*math.Sin(phi)))
	}
	return out
}
