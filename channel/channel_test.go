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
	"errors"
	"math/rand"
	"testing"

	"github.com/nelhage/modecast/frame"
	"github.com/nelhage/modecast/store"
	"github.com/nelhage/modecast/tracing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var messages = []string{
	"",
	"H",
	"Hi",
	"hello",
	"Hello, world!",
	"0123456789",
	"\x00\x01\x7f\x7e",
	"The quick brown fox jumps over the lazy dog.\n",
}

func seeded(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func writeThenRead(t *testing.T, msg string, opts Options) (string, []Frame, store.Store) {
	ctx := context.Background()
	st := store.InMemory()
	frames, err := NewEncoder(st, opts).Write(ctx, msg)
	require.NoError(t, err)
	got, err := NewDecoder(st, opts).Read(ctx)
	require.NoError(t, err)
	return got, frames, st
}

func TestDirectRoundTrip(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		for _, msg := range messages {
			got, frames, _ := writeThenRead(t, msg, Options{
				Mode:   Direct,
				Policy: RandomPolicy{Rate: 0.5},
				Rand:   seeded(seed),
			})
			assert.Equal(t, msg, got, "seed=%d", seed)
			assert.GreaterOrEqual(t, len(frames), len(msg))
		}
	}
}

func TestDecoyInvariant(t *testing.T) {
	msg := "The quick brown fox jumps over the lazy dog."
	frames, err := Plan(msg, Options{Policy: RandomPolicy{Rate: 0.9}, Rand: seeded(1)})
	require.NoError(t, err)

	decoys := 0
	for i, f := range frames {
		assert.Equal(t, i, f.Order)
		assert.LessOrEqual(t, int(f.Value), int(frame.Max))
		if f.Decoy {
			decoys++
			assert.True(t, IsDecoy(f.Value), "decoy frame %d = %d", i, f.Value)
		} else {
			assert.False(t, IsDecoy(f.Value), "real frame %d = %d", i, f.Value)
		}
	}
	assert.Equal(t, len(msg), len(frames)-decoys)
	assert.NotZero(t, decoys)
}

func TestCheckDecoyRate(t *testing.T) {
	for _, rate := range []float64{0, 0.35, 0.999} {
		assert.NoError(t, CheckDecoyRate(rate), "%v", rate)
	}
	for _, rate := range []float64{-0.1, 1, 7} {
		err := CheckDecoyRate(rate)
		assert.True(t, errors.Is(err, ErrDecoyRate), "%v: %v", rate, err)
	}
}

func TestDirectNoDecoysHi(t *testing.T) {
	got, frames, st := writeThenRead(t, "Hi", Options{Mode: Direct, Policy: NoDecoys})
	assert.Equal(t, "Hi", got)
	assert.Equal(t, []Frame{{Order: 0, Value: 72}, {Order: 1, Value: 105}}, frames)

	entries, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []store.Entry{
		{Name: "file00000", Perm: "---x--x---", Type: store.TypeFile},
		{Name: "file00001", Perm: "---xr-x--x", Type: store.TypeFile},
	}, entries)
}

func TestDirectSequencePolicy(t *testing.T) {
	frames, err := Plan("ab", Options{
		Policy: Sequence(true, false, true, true, false),
		Rand:   seeded(3),
	})
	require.NoError(t, err)
	var decoy []bool
	for _, f := range frames {
		decoy = append(decoy, f.Decoy)
	}
	assert.Equal(t, []bool{true, false, true, true, false}, decoy)
	assert.Equal(t, frame.Value('a'), frames[1].Value)
	assert.Equal(t, frame.Value('b'), frames[4].Value)

	got, err := DecodeValues([]frame.Value{
		frames[0].Value, frames[1].Value, frames[2].Value, frames[3].Value, frames[4].Value,
	}, Direct)
	require.NoError(t, err)
	assert.Equal(t, "ab", got)
}

func TestDecoysCreateContainers(t *testing.T) {
	ctx := context.Background()
	st := store.InMemory()
	_, err := NewEncoder(st, Options{
		Policy: PolicyFunc(func(rng *rand.Rand) bool { return rng.Intn(2) == 0 }),
		Rand:   seeded(7),
	}).Write(ctx, "covert channel over directory listings")
	require.NoError(t, err)

	entries, err := st.List(ctx)
	require.NoError(t, err)
	values, err := Values(entries)
	require.NoError(t, err)
	for i, v := range values {
		isContainer, _ := frame.Split(v)
		assert.Equal(t, isContainer, entries[i].Type == store.TypeContainer, entries[i].Name)
	}
}

func TestPackedHi(t *testing.T) {
	frames, err := Plan("Hi", Options{Mode: Packed})
	require.NoError(t, err)
	// 1001000 1101001, padded with six zero bits.
	assert.Equal(t, []Frame{
		{Order: 0, Value: 0x246},
		{Order: 1, Value: 0x240},
	}, frames)

	got, _, st := writeThenRead(t, "Hi", Options{Mode: Packed})
	assert.Equal(t, "Hi\x00", got)

	entries, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []store.Entry{
		{Name: "file00000", Perm: "d--x---rw-", Type: store.TypeContainer},
		{Name: "file00001", Perm: "d--x------", Type: store.TypeContainer},
	}, entries)
}

func TestPackedRoundTrip(t *testing.T) {
	for _, msg := range messages {
		frames, err := Plan(msg, Options{Mode: Packed})
		require.NoError(t, err)
		assert.Equal(t, (7*len(msg)+9)/10, len(frames), "%q", msg)

		got, _, _ := writeThenRead(t, msg, Options{Mode: Packed})
		require.True(t, len(got) >= len(msg), "%q -> %q", msg, got)
		assert.Equal(t, msg, got[:len(msg)])

		pad := 10*len(frames) - 7*len(msg)
		if pad == 0 {
			assert.Equal(t, msg, got)
			continue
		}
		// Padding comes back as trailing NULs: one per started 7-bit group.
		extra := got[len(msg):]
		assert.Len(t, extra, (pad+6)/7, "%q", msg)
		for _, c := range []byte(extra) {
			assert.Equal(t, byte(0), c, "%q", msg)
		}
	}
}

func TestPackedTenCharsHasNoPadding(t *testing.T) {
	frames, err := Plan("0123456789", Options{Mode: Packed})
	require.NoError(t, err)
	assert.Len(t, frames, 7)
}

func TestPackedOrderMatters(t *testing.T) {
	ctx := context.Background()
	st := store.InMemory()
	_, err := NewEncoder(st, Options{Mode: Packed}).Write(ctx, "Hello, world!")
	require.NoError(t, err)
	entries, err := st.List(ctx)
	require.NoError(t, err)

	inOrder, err := Decode(entries, Packed)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world!", inOrder[:13])

	swapped := append([]store.Entry(nil), entries...)
	swapped[0], swapped[1] = swapped[1], swapped[0]
	outOfOrder, err := Decode(swapped, Packed)
	require.NoError(t, err)
	assert.NotEqual(t, inOrder, outOfOrder)

	store.SortEntries(swapped)
	restored, err := Decode(swapped, Packed)
	require.NoError(t, err)
	assert.Equal(t, inOrder, restored)
}

func TestNotASCII(t *testing.T) {
	for _, mode := range []Mode{Direct, Packed} {
		_, err := Plan("caf\xc3\xa9", Options{Mode: mode})
		assert.True(t, errors.Is(err, ErrNotASCII), "%v: %v", mode, err)
	}
}

func TestNamespaceExhausted(t *testing.T) {
	_, err := Plan("x", Options{Policy: AlwaysDecoy, Rand: seeded(1), MaxFrames: 50})
	assert.True(t, errors.Is(err, ErrNamespaceExhausted), "%v", err)

	_, err = Plan("0123456789", Options{Mode: Packed, MaxFrames: 6})
	assert.True(t, errors.Is(err, ErrNamespaceExhausted), "%v", err)
}

func TestFrameName(t *testing.T) {
	assert.Equal(t, "file00000", FrameName("file", 0))
	assert.Equal(t, "file00042", FrameName("file", 42))
	assert.Equal(t, "x99999", FrameName("x", MaxFrames-1))
	assert.True(t, FrameName("file", 9999) < FrameName("file", 10000))
}

type failingStore struct {
	store.Store
	creates int
	failAt  int
}

func (f *failingStore) CreateFile(ctx context.Context, name string, content []byte) error {
	if f.creates == f.failAt {
		return &store.OpError{Op: "STOR", Name: name, Response: "552 Quota exceeded"}
	}
	f.creates++
	return f.Store.CreateFile(ctx, name, content)
}

func TestWritePartialFailure(t *testing.T) {
	ctx := context.Background()
	st := &failingStore{Store: store.InMemory(), failAt: 3}

	written, err := NewEncoder(st, Options{Policy: NoDecoys}).Write(ctx, "hello")
	var werr *WriteError
	require.True(t, errors.As(err, &werr), "%v", err)
	assert.Equal(t, 3, werr.Written)
	assert.Len(t, written, 3)
	var opErr *store.OpError
	assert.True(t, errors.As(err, &opErr))
	assert.Contains(t, err.Error(), "552 Quota exceeded")

	// Nothing is rolled back.
	got, err := NewDecoder(st, Options{}).Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hel", got)
}

func TestDecodeMalformedEntry(t *testing.T) {
	entries := []store.Entry{
		{Name: "file00000", Perm: "---x--x---"},
		{Name: "file00001", Perm: "-rwsr-xr-x"},
	}
	_, err := Decode(entries, Direct)
	var derr *DecodeError
	require.True(t, errors.As(err, &derr), "%v", err)
	assert.Equal(t, 1, derr.Index)
	assert.Equal(t, "file00001", derr.Entry.Name)
	assert.True(t, errors.Is(err, frame.ErrPermString))
}

func TestWriteSpans(t *testing.T) {
	spans, err := tracing.CollectSpans(context.Background(), func(ctx context.Context) error {
		_, err := NewEncoder(store.InMemory(), Options{Policy: NoDecoys}).Write(ctx, "Hi")
		return err
	})
	require.NoError(t, err)
	emits := tracing.Named(spans, "emit_frame")
	require.Len(t, emits, 2)
	assert.Equal(t, "file00001", emits[1].Labels["name"])
	assert.Equal(t, 105.0, emits[1].Metrics["value"])

	writes := tracing.Named(spans, "write")
	require.Len(t, writes, 1)
	assert.Equal(t, 2.0, writes[0].Metrics["frames"])
	assert.Equal(t, writes[0].SpanId, emits[0].ParentId)
}
