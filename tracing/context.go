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

package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Span is one timed operation. Spans are written out as JSON lines.
type Span struct {
	TraceId  string             `json:"trace_id"`
	SpanId   string             `json:"span_id"`
	ParentId string             `json:"parent_id,omitempty"`
	Name     string             `json:"name"`
	Start    time.Time          `json:"start"`
	Duration time.Duration      `json:"duration"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Labels   map[string]string  `json:"labels,omitempty"`
}

type key int

const (
	tracerKey key = iota
	spanKey
)

func WithTracer(ctx context.Context, tr Tracer) context.Context {
	return context.WithValue(ctx, tracerKey, tr)
}

func TracerFromContext(ctx context.Context) (Tracer, bool) {
	v, ok := ctx.Value(tracerKey).(Tracer)
	return v, ok
}

func SpanFromContext(ctx context.Context) (*Span, bool) {
	v, ok := ctx.Value(spanKey).(*Span)
	return v, ok
}

// StartSpan begins a span as a child of whatever span ctx carries. If
// ctx has no tracer the span is still timed but never submitted.
func StartSpan(ctx context.Context, name string) (context.Context, *SpanBuilder) {
	sb := SpanBuilder{
		span: Span{
			SpanId: newId(),
			Name:   name,
			Start:  time.Now(),
		},
	}
	if parent, ok := SpanFromContext(ctx); ok {
		sb.span.TraceId = parent.TraceId
		sb.span.ParentId = parent.SpanId
	} else {
		sb.span.TraceId = newId()
	}
	sb.tracer, _ = TracerFromContext(ctx)
	return context.WithValue(ctx, spanKey, &sb.span), &sb
}

func newId() string {
	var buf [8]byte
	if _, err := rand.Reader.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("rand: %s", err.Error()))
	}
	return hex.EncodeToString(buf[:])
}
