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
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/nelhage/modecast/channel"
	"github.com/nelhage/modecast/store"
	"github.com/nelhage/modecast/store/ftpstore"
	"github.com/nelhage/modecast/store/s3store"
)

type GlobalState struct {
	mu sync.Mutex

	Config *Config

	// Open overrides how a target is opened; tests set it.
	Open func(target Target) (store.Store, error)
}

type key int

const stateKey key = iota

func WithState(ctx context.Context, st *GlobalState) context.Context {
	return context.WithValue(ctx, stateKey, st)
}

func MustState(ctx context.Context) *GlobalState {
	st, ok := ctx.Value(stateKey).(*GlobalState)
	if !ok {
		panic("no global state in context")
	}
	return st
}

// Target is a resolved store address.
type Target struct {
	Scheme string
	FTP    ftpstore.Options
	S3     string
}

func (t Target) String() string {
	if t.Scheme == "s3" {
		return t.S3
	}
	return fmt.Sprintf("%s://%s@%s/%s", t.Scheme, t.FTP.User,
		net.JoinHostPort(t.FTP.Host, strconv.Itoa(t.FTP.Port)), strings.TrimPrefix(t.FTP.Dir, "/"))
}

// ResolveTarget works out which store the config points at. An
// explicit Store address wins over the host/port/dir fields.
func (c *Config) ResolveTarget() (Target, error) {
	t := Target{
		Scheme: "ftp",
		FTP: ftpstore.Options{
			Host:     c.Host,
			Port:     c.Port,
			User:     c.User,
			Password: c.Password,
			Dir:      c.Dir,
			Active:   c.Active,
			TLS:      c.TLS,
			Verbose:  c.Verbose,
		},
	}
	if c.Store != "" {
		u, err := url.Parse(c.Store)
		if err != nil {
			return Target{}, fmt.Errorf("parsing store %q: %w", c.Store, err)
		}
		switch u.Scheme {
		case "s3":
			return Target{Scheme: "s3", S3: c.Store}, nil
		case "ftp", "ftps":
			t.FTP.Host = u.Hostname()
			if p := u.Port(); p != "" {
				port, err := strconv.Atoi(p)
				if err != nil {
					return Target{}, fmt.Errorf("store %q: bad port: %w", c.Store, err)
				}
				t.FTP.Port = port
			}
			if u.User != nil {
				t.FTP.User = u.User.Username()
				if pw, ok := u.User.Password(); ok && t.FTP.Password == "" {
					t.FTP.Password = pw
				}
			}
			if u.Path != "" {
				t.FTP.Dir = u.Path
			}
			t.FTP.TLS = t.FTP.TLS || u.Scheme == "ftps"
		default:
			return Target{}, fmt.Errorf("store %q: unsupported scheme %q", c.Store, u.Scheme)
		}
	}
	if t.FTP.Host == "" {
		return Target{}, fmt.Errorf("no FTP host configured; pass -host or -store")
	}
	if t.FTP.Port == 0 {
		t.FTP.Port = ftpstore.DefaultPort
	}
	if t.FTP.User == "" {
		t.FTP.User = "anonymous"
	}
	if t.FTP.Dir == "" {
		t.FTP.Dir = "/"
	}
	if t.FTP.TLS {
		t.Scheme = "ftps"
	}
	return t, nil
}

func (g *GlobalState) open(t Target) (store.Store, error) {
	if g.Open != nil {
		return g.Open(t)
	}
	if t.Scheme == "s3" {
		awscfg := aws.NewConfig()
		if g.Config.Region != "" {
			awscfg = awscfg.WithRegion(g.Config.Region)
		}
		if g.Config.DebugAWS {
			awscfg = awscfg.WithLogLevel(aws.LogDebugWithHTTPBody)
		}
		sess, err := session.NewSession(awscfg)
		if err != nil {
			return nil, err
		}
		return s3store.FromSession(sess, t.S3)
	}
	return ftpstore.Open(t.FTP)
}

// Store opens the configured store for reading.
func (g *GlobalState) Store() (store.Store, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, err := g.Config.ResolveTarget()
	if err != nil {
		return nil, err
	}
	return g.open(t)
}

// WriterStore opens the configured store holding the local lock for
// that target, so two writers on this machine can't race sequence
// numbers.
func (g *GlobalState) WriterStore() (store.Store, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, err := g.Config.ResolveTarget()
	if err != nil {
		return nil, err
	}
	st, err := g.open(t)
	if err != nil {
		return nil, err
	}
	locked, err := store.Locked(st, LockPath(t.String()))
	if err != nil {
		st.Close()
		return nil, err
	}
	return locked, nil
}

// ChannelOptions builds encoder/decoder options from the config.
func (g *GlobalState) ChannelOptions(mode channel.Mode) channel.Options {
	opts := channel.Options{
		Mode:       mode,
		NamePrefix: g.Config.NamePrefix,
		Verbose:    g.Config.Verbose,
	}
	if g.Config.DecoyRate != nil {
		opts.Policy = channel.RandomPolicy{Rate: *g.Config.DecoyRate}
	}
	return opts
}
