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
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("another writer holds the lock for this target")

type lockedStore struct {
	Store
	lk *flock.Flock
}

// Locked takes an exclusive advisory lock at lockPath for as long as
// the returned Store is open. Frame names are sequence numbers, so two
// writers on the same directory would interleave garbage; this keeps
// two local processes from doing that.
func Locked(inner Store, lockPath string) (Store, error) {
	if err := os.MkdirAll(path.Dir(lockPath), 0700); err != nil {
		return nil, err
	}
	lk := flock.New(lockPath)
	ok, err := lk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", lockPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", lockPath, ErrLocked)
	}
	return &lockedStore{Store: inner, lk: lk}, nil
}

func (s *lockedStore) Close() error {
	err := s.Store.Close()
	if uerr := s.lk.Unlock(); err == nil {
		err = uerr
	}
	return err
}
