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

	"github.com/nelhage/modecast/frame"
	"github.com/nelhage/modecast/store"
	"github.com/nelhage/modecast/tracing"
)

const (
	DefaultNamePrefix = "file"
	nameDigits        = 5
)

var defaultPlaceholder = []byte("dummy text")

// FrameName returns the object name for the order'th frame.
func FrameName(prefix string, order int) string {
	return fmt.Sprintf("%s%0*d", prefix, nameDigits, order)
}

// WriteError is returned when a store operation fails partway through
// a message. Frames before the failure stay on the store.
type WriteError struct {
	Written int
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("after %d frames: %s", e.Written, e.Err.Error())
}

func (e *WriteError) Unwrap() error { return e.Err }

type Encoder struct {
	st   store.Store
	opts Options
}

func NewEncoder(st store.Store, opts Options) *Encoder {
	if opts.NamePrefix == "" {
		opts.NamePrefix = DefaultNamePrefix
	}
	if opts.Placeholder == nil {
		opts.Placeholder = defaultPlaceholder
	}
	return &Encoder{st: st, opts: opts}
}

// Write plans msg and creates one object per frame, in order. It
// returns the frames written. On a store failure the error is a
// *WriteError and nothing is rolled back.
func (e *Encoder) Write(ctx context.Context, msg string) ([]Frame, error) {
	ctx, span := tracing.StartSpan(ctx, "write")
	defer span.End()
	span.SetLabel("mode", e.opts.Mode.String())
	span.SetMetric("message_bytes", float64(len(msg)))

	frames, err := Plan(msg, e.opts)
	if err != nil {
		return nil, err
	}
	for i, f := range frames {
		if err := e.emit(ctx, f); err != nil {
			span.SetMetric("frames", float64(i))
			return frames[:i], &WriteError{Written: i, Err: err}
		}
	}
	span.SetMetric("frames", float64(len(frames)))
	return frames, nil
}

func (e *Encoder) emit(ctx context.Context, f Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name := FrameName(e.opts.NamePrefix, f.Order)
	isContainer, perm := frame.Split(f.Value)

	_, span := tracing.StartSpan(ctx, "emit_frame")
	defer span.End()
	span.SetLabel("name", name)
	span.SetMetric("value", float64(f.Value))
	if f.Decoy {
		span.SetMetric("decoy", 1)
	}

	if e.opts.Verbose {
		log.Printf("creating %s with %03o permissions", name, perm)
	}
	var err error
	if isContainer {
		err = e.st.CreateContainer(ctx, name)
	} else {
		err = e.st.CreateFile(ctx, name, e.opts.Placeholder)
	}
	if err != nil {
		return err
	}
	return e.st.SetPermissionBits(ctx, name, perm)
}
