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
	"fmt"

	"github.com/nelhage/modecast/frame"
)

type memObject struct {
	container bool
	perm      uint16
	data      []byte
}

type inMemory struct {
	objects map[string]*memObject
	closed  bool
}

// InMemory returns a Store that keeps objects in a map. New files get
// mode 0644 and new containers 0755, like a typical FTP server.
func InMemory() Store {
	return &inMemory{
		objects: make(map[string]*memObject),
	}
}

func (s *inMemory) List(ctx context.Context) ([]Entry, error) {
	if s.closed {
		return nil, &OpError{Op: "LIST", Err: fmt.Errorf("store closed")}
	}
	entries := make([]Entry, 0, len(s.objects))
	for name, obj := range s.objects {
		perm := frame.FormatPermString(frame.Join(obj.container, obj.perm))
		entries = append(entries, Entry{
			Name: name,
			Perm: perm,
			Type: perm[0],
		})
	}
	SortEntries(entries)
	return entries, nil
}

func (s *inMemory) create(op, name string, obj *memObject) error {
	if s.closed {
		return &OpError{Op: op, Name: name, Err: fmt.Errorf("store closed")}
	}
	if _, ok := s.objects[name]; ok {
		return &OpError{Op: op, Name: name, Response: "550 File exists"}
	}
	s.objects[name] = obj
	return nil
}

func (s *inMemory) CreateFile(ctx context.Context, name string, content []byte) error {
	return s.create("STOR", name, &memObject{
		perm: 0644,
		data: append([]byte(nil), content...),
	})
}

func (s *inMemory) CreateContainer(ctx context.Context, name string) error {
	return s.create("MKD", name, &memObject{container: true, perm: 0755})
}

func (s *inMemory) SetPermissionBits(ctx context.Context, name string, perm uint16) error {
	obj, ok := s.objects[name]
	if !ok {
		return &OpError{Op: "SITE CHMOD", Name: name, Response: "550 No such file or directory", Err: ErrNotExists}
	}
	obj.perm = perm & uint16(frame.PermMask)
	return nil
}

func (s *inMemory) Close() error {
	s.closed = true
	return nil
}
