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
	"bufio"
	"io"
	"strings"
)

// ParseListing reads the output of a unix-style LIST command, e.g.
//
//	drwxr-xr-x    2 ftp      ftp          4096 Mar 01 12:00 file00001
//
// Lines that don't look like an entry ("total 12", blank lines) are
// skipped, as are "." and "..". The result is sorted by name.
func ParseListing(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scan := bufio.NewScanner(r)
	for scan.Scan() {
		ent, ok := ParseListLine(scan.Text())
		if !ok {
			continue
		}
		entries = append(entries, ent)
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	SortEntries(entries)
	return entries, nil
}

// ParseListLine parses a single LIST line. Names containing spaces are
// kept intact; symlink targets ("name -> target") are dropped.
func ParseListLine(line string) (Entry, bool) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)
	if len(fields) < 9 || fields[0] == "total" {
		return Entry{}, false
	}
	name := nthFieldOnward(line, 8)
	if fields[0][0] == TypeLink {
		if i := strings.Index(name, " -> "); i >= 0 {
			name = name[:i]
		}
	}
	if name == "." || name == ".." {
		return Entry{}, false
	}
	return Entry{
		Name: name,
		Perm: fields[0],
		Type: fields[0][0],
	}, true
}

// nthFieldOnward returns the suffix of line starting at its n'th
// whitespace-separated field.
func nthFieldOnward(line string, n int) string {
	rest := strings.TrimLeft(line, " \t")
	for i := 0; i < n; i++ {
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			return ""
		}
		rest = strings.TrimLeft(rest[end:], " \t")
	}
	return rest
}
