// Copyright 2020 Nelson Elhage
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package channel

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/nelhage/modecast/frame"
)

type Mode int

const (
	// Direct carries one character per frame, mixed with decoys.
	Direct Mode = iota
	// Packed concatenates 7-bit character codes and slices the
	// stream into 10-bit frames. No decoys.
	Packed
)

func (m Mode) String() string {
	switch m {
	case Direct:
		return "direct"
	case Packed:
		return "packed"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

const (
	charBits = 7
	// decoyMin is the smallest decoy value; every real direct-mode
	// frame is below it.
	decoyMin frame.Value = 1 << charBits

	// MaxFrames is how many frames fit in a five-digit name before
	// lexicographic order stops matching creation order.
	MaxFrames = 100000
)

var (
	ErrNotASCII           = errors.New("message contains a non 7-bit character")
	ErrNamespaceExhausted = errors.New("message needs more frames than can be named")
)

// Frame is one planned covert object.
type Frame struct {
	Order int
	Value frame.Value
	Decoy bool
}

// Options configure a Plan or an Encoder. The zero value is direct mode
// with DefaultDecoyRate and a time-seeded random source.
type Options struct {
	Mode   Mode
	Policy Policy
	Rand   *rand.Rand
	// MaxFrames caps the number of frames; 0 means MaxFrames.
	MaxFrames int

	NamePrefix  string
	Placeholder []byte
	Verbose     bool
}

func (o *Options) policy() Policy {
	if o.Policy != nil {
		return o.Policy
	}
	return RandomPolicy{Rate: DefaultDecoyRate}
}

func (o *Options) rng() *rand.Rand {
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o.Rand
}

func (o *Options) maxFrames() int {
	if o.MaxFrames <= 0 || o.MaxFrames > MaxFrames {
		return MaxFrames
	}
	return o.MaxFrames
}

func checkASCII(msg string) error {
	for i := 0; i < len(msg); i++ {
		if msg[i] >= 1<<charBits {
			return fmt.Errorf("byte %d (0x%02x): %w", i, msg[i], ErrNotASCII)
		}
	}
	return nil
}

// Plan computes the frames that carry msg, without touching a store.
func Plan(msg string, opts Options) ([]Frame, error) {
	if err := checkASCII(msg); err != nil {
		return nil, err
	}
	switch opts.Mode {
	case Direct:
		return planDirect(msg, &opts)
	case Packed:
		return planPacked(msg, &opts)
	default:
		return nil, fmt.Errorf("unknown mode %v", opts.Mode)
	}
}

func planDirect(msg string, opts *Options) ([]Frame, error) {
	policy := opts.policy()
	rng := opts.rng()
	limit := opts.maxFrames()

	var frames []Frame
	for i := 0; i < len(msg); {
		if len(frames) >= limit {
			return nil, fmt.Errorf("%d characters left after %d frames: %w",
				len(msg)-i, len(frames), ErrNamespaceExhausted)
		}
		f := Frame{Order: len(frames)}
		if policy.ShouldEmitDecoy(rng) {
			f.Value = decoyMin + frame.Value(rng.Intn(int(frame.Max-decoyMin)+1))
			f.Decoy = true
		} else {
			f.Value = frame.Value(msg[i])
			i++
		}
		frames = append(frames, f)
	}
	return frames, nil
}

func planPacked(msg string, opts *Options) ([]Frame, error) {
	nbits := charBits * len(msg)
	nframes := (nbits + frame.Bits - 1) / frame.Bits
	if nframes > opts.maxFrames() {
		return nil, fmt.Errorf("%d frames: %w", nframes, ErrNamespaceExhausted)
	}

	var w bitWriter
	for i := 0; i < len(msg); i++ {
		w.write(uint(msg[i]), charBits)
	}
	w.pad(frame.Bits)

	frames := make([]Frame, 0, nframes)
	r := bitReader{bits: w.bits}
	for r.remaining() > 0 {
		frames = append(frames, Frame{
			Order: len(frames),
			Value: frame.Value(r.read(frame.Bits)),
		})
	}
	return frames, nil
}

// bitWriter accumulates a most-significant-bit-first stream, one bool
// per bit.
type bitWriter struct {
	bits []bool
}

func (w *bitWriter) write(v uint, width int) {
	for i := width - 1; i >= 0; i-- {
		w.bits = append(w.bits, v&(1<<uint(i)) != 0)
	}
}

// pad appends zero bits until the length is a multiple of n.
func (w *bitWriter) pad(n int) {
	for len(w.bits)%n != 0 {
		w.bits = append(w.bits, false)
	}
}

type bitReader struct {
	bits []bool
	pos  int
}

func (r *bitReader) remaining() int { return len(r.bits) - r.pos }

// read consumes up to width bits. If fewer remain, it returns the value
// of what is left.
func (r *bitReader) read(width int) uint {
	var v uint
	for i := 0; i < width && r.pos < len(r.bits); i++ {
		v <<= 1
		if r.bits[r.pos] {
			v |= 1
		}
		r.pos++
	}
	return v
}
