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
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestInMemoryListIsSorted(t *testing.T) {
	ctx := context.Background()
	st := InMemory()
	for _, name := range []string{"file00002", "file00010", "file00000", "file00001"} {
		require.NoError(t, st.CreateFile(ctx, name, []byte("dummy text")))
	}
	require.NoError(t, st.CreateContainer(ctx, "file00003"))

	got, err := st.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"file00000", "file00001", "file00002", "file00003", "file00010"}, names(got))
	assert.Equal(t, Entry{Name: "file00003", Perm: "drwxr-xr-x", Type: TypeContainer}, got[3])
	assert.Equal(t, Entry{Name: "file00000", Perm: "-rw-r--r--", Type: TypeFile}, got[0])
}

func TestInMemorySetPermissionBits(t *testing.T) {
	ctx := context.Background()
	st := InMemory()
	require.NoError(t, st.CreateFile(ctx, "a", nil))
	require.NoError(t, st.SetPermissionBits(ctx, "a", 0110))

	got, err := st.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "---x--x---", got[0].Perm)

	err = st.SetPermissionBits(ctx, "missing", 0777)
	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "SITE CHMOD", opErr.Op)
	assert.True(t, errors.Is(err, ErrNotExists))
}

func TestInMemoryCreateTwice(t *testing.T) {
	ctx := context.Background()
	st := InMemory()
	require.NoError(t, st.CreateContainer(ctx, "a"))
	err := st.CreateFile(ctx, "a", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "550")
}

const sampleListing = `total 20
drwxr-xr-x    2 0        0            4096 Oct 19 10:00 .
drwxr-xr-x    5 0        0            4096 Oct 19 10:00 ..
---x--x---    1 1000     1000           10 Oct 19 10:00 file00001
---x--x---    1 1000     1000           10 Oct 19 10:00 file00000
drwxrw-r-x    2 1000     1000         4096 Oct 19 10:00 file00002
-rw-r--r--    1 1000     1000           10 Oct 19 10:00 notes with spaces.txt
lrwxrwxrwx    1 1000     1000            9 Oct 19 10:00 link -> file00000
`

func TestParseListing(t *testing.T) {
	got, err := ParseListing(strings.NewReader(sampleListing))
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "file00000", Perm: "---x--x---", Type: TypeFile},
		{Name: "file00001", Perm: "---x--x---", Type: TypeFile},
		{Name: "file00002", Perm: "drwxrw-r-x", Type: TypeContainer},
		{Name: "link", Perm: "lrwxrwxrwx", Type: TypeLink},
		{Name: "notes with spaces.txt", Perm: "-rw-r--r--", Type: TypeFile},
	}, got)
}

func TestParseListLineCRLF(t *testing.T) {
	ent, ok := ParseListLine("-rw-r--r--   1 ftp ftp 10 Jan  1  2020 file00007\r\n")
	require.True(t, ok)
	assert.Equal(t, "file00007", ent.Name)

	_, ok = ParseListLine("10-19-26  10:00AM       <DIR>          file00000")
	assert.False(t, ok)
}

func TestOpErrorMessage(t *testing.T) {
	err := &OpError{Op: "MKD", Name: "file00004", Response: "550 Permission denied"}
	assert.Equal(t, "MKD file00004 (Response: 550 Permission denied)", err.Error())
}

func TestLocked(t *testing.T) {
	lockPath := path.Join(t.TempDir(), "locks", "target.lock")

	first, err := Locked(InMemory(), lockPath)
	require.NoError(t, err)

	_, err = Locked(InMemory(), lockPath)
	assert.True(t, errors.Is(err, ErrLocked), "second lock: %v", err)

	require.NoError(t, first.Close())

	again, err := Locked(InMemory(), lockPath)
	require.NoError(t, err)
	assert.NoError(t, again.Close())
}
