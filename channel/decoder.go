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
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/nelhage/modecast/frame"
	"github.com/nelhage/modecast/store"
	"github.com/nelhage/modecast/tracing"
)

// DecodeError reports a listing entry whose permission field could not
// be turned into a frame.
type DecodeError struct {
	Index int
	Entry store.Entry
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("entry %d (%s): %s", e.Index, e.Entry.Name, e.Err.Error())
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Values decodes every entry of a listing, in order.
func Values(entries []store.Entry) ([]frame.Value, error) {
	values := make([]frame.Value, len(entries))
	for i, ent := range entries {
		v, err := frame.ParsePermString(ent.Perm)
		if err != nil {
			return nil, &DecodeError{Index: i, Entry: ent, Err: err}
		}
		values[i] = v
	}
	return values, nil
}

// IsDecoy reports whether direct mode discards v.
func IsDecoy(v frame.Value) bool {
	return v >= decoyMin
}

// Decode turns an ordered listing back into a message.
//
// In packed mode there is no length marker, so the zero bits used to
// pad the last frame come back as trailing NUL characters, one per
// started 7-bit group, whenever 7*len(msg) is not a multiple of 10.
// Callers that need an exact round trip must carry the length
// separately.
func Decode(entries []store.Entry, mode Mode) (string, error) {
	values, err := Values(entries)
	if err != nil {
		return "", err
	}
	return DecodeValues(values, mode)
}

func DecodeValues(values []frame.Value, mode Mode) (string, error) {
	var out strings.Builder
	switch mode {
	case Direct:
		for _, v := range values {
			if IsDecoy(v) {
				continue
			}
			out.WriteByte(byte(v))
		}
	case Packed:
		var w bitWriter
		for _, v := range values {
			w.write(uint(v), frame.Bits)
		}
		r := bitReader{bits: w.bits}
		for r.remaining() > 0 {
			out.WriteByte(byte(r.read(charBits)))
		}
	default:
		return "", fmt.Errorf("unknown mode %v", mode)
	}
	return out.String(), nil
}

type Decoder struct {
	st      store.Store
	mode    Mode
	verbose bool
}

func NewDecoder(st store.Store, opts Options) *Decoder {
	return &Decoder{st: st, mode: opts.Mode, verbose: opts.Verbose}
}

// Read lists the store and decodes the result. Every call re-reads the
// whole listing.
func (d *Decoder) Read(ctx context.Context) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "read")
	defer span.End()
	span.SetLabel("mode", d.mode.String())

	entries, err := d.st.List(ctx)
	if err != nil {
		return "", err
	}
	span.SetMetric("entries", float64(len(entries)))
	if d.verbose {
		for _, ent := range entries {
			log.Printf("%s %s", ent.Perm, ent.Name)
		}
	}
	return Decode(entries, d.mode)
}
