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
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path"
)

// Config is the on-disk configuration. Passwords are never written
// out.
type Config struct {
	// Store is an ftp://, ftps:// or s3:// address. If it is empty
	// the FTP fields below are used.
	Store string `json:"store,omitempty"`

	Host   string `json:"host,omitempty"`
	Port   int    `json:"port,omitempty"`
	User   string `json:"user,omitempty"`
	Dir    string `json:"dir,omitempty"`
	Active bool   `json:"active,omitempty"`
	TLS    bool   `json:"tls,omitempty"`

	Region string `json:"region,omitempty"`

	// DecoyRate is nil when unset; 0 turns decoys off.
	DecoyRate  *float64 `json:"decoy_rate,omitempty"`
	NamePrefix string  `json:"name_prefix,omitempty"`

	Password string `json:"-"`
	Verbose  bool   `json:"-"`
	DebugAWS bool   `json:"-"`
}

func WriteConfig(cfg *Config, configPath string) error {
	encoded, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(path.Dir(configPath), 0700); err != nil {
		return err
	}
	return ioutil.WriteFile(configPath, encoded, 0600)
}

func ReadConfig(configPath string) (*Config, error) {
	data, err := ioutil.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}
	return &cfg, nil
}
