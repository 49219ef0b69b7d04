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
	"fmt"
)

// Value is one frame: a container flag in bit 9 and nine permission
// bits below it.
type Value uint16

const (
	// Bits is the number of bits carried by one frame.
	Bits = 10

	ContainerBit Value = 1 << 9
	PermMask     Value = 0x1FF
	Max          Value = 1<<Bits - 1
)

var ErrPermString = errors.New("malformed permission string")

// Split breaks v into the object type and the nine bits to chmod it with.
func Split(v Value) (isContainer bool, perm uint16) {
	return v&ContainerBit != 0, uint16(v & PermMask)
}

func Join(isContainer bool, perm uint16) Value {
	v := Value(perm) & PermMask
	if isContainer {
		v |= ContainerBit
	}
	return v
}

const permLetters = "rwxrwxrwx"

// FormatPermString renders v the way a unix directory listing would,
// e.g. "drwxr-x---".
func FormatPermString(v Value) string {
	var buf [Bits]byte
	buf[0] = '-'
	if v&ContainerBit != 0 {
		buf[0] = 'd'
	}
	for i := 0; i < 9; i++ {
		if v&(1<<(8-i)) != 0 {
			buf[i+1] = permLetters[i]
		} else {
			buf[i+1] = '-'
		}
	}
	return string(buf[:])
}

// ParsePermString recovers the frame value from a listing's permission
// field. Any of "dlrwx" is a one bit and '-' is a zero bit; every other
// character is skipped. Exactly ten bits must remain.
func ParsePermString(s string) (Value, error) {
	var v Value
	n := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'd', 'l', 'r', 'w', 'x':
			v = v<<1 | 1
		case '-':
			v <<= 1
		default:
			continue
		}
		n++
		if n > Bits {
			return 0, fmt.Errorf("%q: more than %d flag characters: %w", s, Bits, ErrPermString)
		}
	}
	if n < Bits {
		return 0, fmt.Errorf("%q: only %d of %d flag characters: %w", s, n, Bits, ErrPermString)
	}
	return v, nil
}
