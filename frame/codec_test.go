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

package frame

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTripAllValues(t *testing.T) {
	for v := Value(0); v <= Max; v++ {
		isContainer, perm := Split(v)
		assert.Equal(t, v, Join(isContainer, perm))

		got, err := ParsePermString(FormatPermString(v))
		if assert.NoError(t, err, "value %d", v) {
			assert.Equal(t, v, got, "value %d", v)
		}
	}
}

func TestSplit(t *testing.T) {
	isContainer, perm := Split(0x3FF)
	assert.True(t, isContainer)
	assert.Equal(t, uint16(0777), perm)

	isContainer, perm = Split('H')
	assert.False(t, isContainer)
	assert.Equal(t, uint16(0110), perm)
}

func TestFormatPermString(t *testing.T) {
	assert.Equal(t, "----------", FormatPermString(0))
	assert.Equal(t, "---x--x---", FormatPermString('H'))
	assert.Equal(t, "drwxr-xr-x", FormatPermString(ContainerBit|0755))
}

func TestParsePermString(t *testing.T) {
	cases := []struct {
		in   string
		want Value
	}{
		{"-rw-r--r--", 0644},
		{"drwxr-xr-x", ContainerBit | 0755},
		{"lrwxrwxrwx", Max},
		{"-rw-r--r--+", 0644},
		{"-rw-r--r--@", 0644},
		{"-rw-r-.-r--", 0644},
	}
	for _, tc := range cases {
		got, err := ParsePermString(tc.in)
		if assert.NoError(t, err, tc.in) {
			assert.Equal(t, tc.want, got, tc.in)
		}
	}
}

func TestParsePermStringMalformed(t *testing.T) {
	for _, in := range []string{
		"",
		"-rw-r--r-",
		"-rwsr-xr-x",
		"drwxrwxrwt",
		"-rw-r--r---",
	} {
		_, err := ParsePermString(in)
		assert.True(t, errors.Is(err, ErrPermString), "%q: %v", in, err)
	}
}
