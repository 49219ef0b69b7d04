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

package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Entry types, taken from the first character of a listing's
// permission field.
const (
	TypeFile      = '-'
	TypeContainer = 'd'
	TypeLink      = 'l'
)

// Entry is one object as reported by a directory listing.
type Entry struct {
	Name string
	// Perm is the permission field exactly as the server reported
	// it, type character included.
	Perm string
	Type byte
}

var ErrNotExists = errors.New("Requested object does not exist")

// Store is a remote directory that frames are written into and listed
// back out of. Implementations must return List in name order.
type Store interface {
	List(ctx context.Context) ([]Entry, error)
	CreateFile(ctx context.Context, name string, content []byte) error
	CreateContainer(ctx context.Context, name string) error
	SetPermissionBits(ctx context.Context, name string, perm uint16) error
	Close() error
}

// OpError reports a failed store operation along with whatever the
// server said about it.
type OpError struct {
	Op       string
	Name     string
	Response string
	Err      error
}

func (e *OpError) Error() string {
	msg := e.Op
	if e.Name != "" {
		msg += " " + e.Name
	}
	if e.Response != "" {
		msg += fmt.Sprintf(" (Response: %s)", e.Response)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OpError) Unwrap() error { return e.Err }

// SortEntries orders a listing by name. Frame names are zero-padded so
// this is also creation order.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
}
