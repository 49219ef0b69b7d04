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

package cli

import (
	"log"
	"os"
	"path"

	"github.com/mitchellh/go-homedir"
)

func ConfigDir() string {
	if dir := os.Getenv("MODECAST_DIR"); dir != "" {
		return dir
	}
	home, err := homedir.Dir()
	if err != nil {
		log.Fatalf("Cannot find homedir: %s", err.Error())
	}
	return path.Join(home, ".modecast")
}

func ConfigPath() string {
	return path.Join(ConfigDir(), "modecast.json")
}

// LockPath is the lock file guarding writes to target.
func LockPath(target string) string {
	return path.Join(ConfigDir(), "locks", sanitize(target)+".lock")
}

func sanitize(s string) string {
	out := []byte(s)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
