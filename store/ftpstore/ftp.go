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

package ftpstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io/ioutil"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/nelhage/modecast/store"
	"github.com/secsy/goftp"
)

const DefaultPort = 21

type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Dir      string

	// Passive is the default; set Active to use PORT/EPRT instead.
	Active bool
	TLS    bool

	Timeout time.Duration
	Verbose bool
}

// Store keeps one control connection open for LIST and SITE commands;
// uploads and MKD go through goftp's own connection pool.
type Store struct {
	client *goftp.Client
	raw    goftp.RawConn
	dir    string
}

var _ store.Store = &Store{}

// Open connects, logs in and checks that the directory is reachable.
func Open(opts Options) (*Store, error) {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.User == "" {
		opts.User = "anonymous"
	}
	if opts.Dir == "" {
		opts.Dir = "/"
	}
	cfg := goftp.Config{
		User:               opts.User,
		Password:           opts.Password,
		ConnectionsPerHost: 2,
		Timeout:            opts.Timeout,
		ActiveTransfers:    opts.Active,
	}
	if opts.TLS {
		cfg.TLSConfig = &tls.Config{ServerName: opts.Host}
		cfg.TLSMode = goftp.TLSExplicit
	}
	if opts.Verbose {
		cfg.Logger = os.Stderr
	}

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	client, err := goftp.DialConfig(cfg, addr)
	if err != nil {
		return nil, &store.OpError{Op: "connect", Name: addr, Err: err}
	}
	raw, err := client.OpenRawConn()
	if err != nil {
		client.Close()
		return nil, &store.OpError{Op: "connect", Name: addr, Response: response(err), Err: err}
	}
	st := &Store{client: client, raw: raw, dir: opts.Dir}
	if _, err := st.command(250, "CWD", "%s", opts.Dir); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func (s *Store) path(name string) string {
	return path.Join(s.dir, name)
}

// response pulls the server reply out of a goftp error, if it has one.
func response(err error) string {
	if ferr, ok := err.(goftp.Error); ok && ferr.Code() != 0 {
		return fmt.Sprintf("%d %s", ferr.Code(), ferr.Message())
	}
	return ""
}

// command sends one control command on the raw connection and checks
// the reply code.
func (s *Store) command(want int, op string, format string, args ...interface{}) (string, error) {
	code, msg, err := s.raw.SendCommand(op+" "+format, args...)
	if err != nil {
		return "", &store.OpError{Op: op, Name: fmt.Sprintf(format, args...), Err: err}
	}
	if code != want {
		return "", &store.OpError{
			Op:       op,
			Name:     fmt.Sprintf(format, args...),
			Response: fmt.Sprintf("%d %s", code, msg),
		}
	}
	return msg, nil
}

// List runs LIST on the directory and parses the unix-style reply.
func (s *Store) List(ctx context.Context) ([]store.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	getConn, err := s.raw.PrepareDataConn()
	if err != nil {
		return nil, &store.OpError{Op: "LIST", Name: s.dir, Err: err}
	}
	code, msg, err := s.raw.SendCommand("LIST")
	if err != nil {
		return nil, &store.OpError{Op: "LIST", Name: s.dir, Err: err}
	}
	if code != 125 && code != 150 {
		return nil, &store.OpError{Op: "LIST", Name: s.dir, Response: fmt.Sprintf("%d %s", code, msg)}
	}

	dc, err := getConn()
	if err != nil {
		return nil, &store.OpError{Op: "LIST", Name: s.dir, Err: err}
	}
	listing, readErr := ioutil.ReadAll(dc)
	dc.Close()

	code, msg, err = s.raw.ReadResponse()
	if err != nil {
		return nil, &store.OpError{Op: "LIST", Name: s.dir, Err: err}
	}
	if code != 226 && code != 250 {
		return nil, &store.OpError{Op: "LIST", Name: s.dir, Response: fmt.Sprintf("%d %s", code, msg)}
	}
	if readErr != nil {
		return nil, &store.OpError{Op: "LIST", Name: s.dir, Err: readErr}
	}
	return store.ParseListing(bytes.NewReader(listing))
}

func (s *Store) CreateFile(ctx context.Context, name string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.client.Store(s.path(name), bytes.NewReader(content)); err != nil {
		return &store.OpError{Op: "STOR", Name: name, Response: response(err), Err: err}
	}
	return nil
}

func (s *Store) CreateContainer(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.Mkdir(s.path(name)); err != nil {
		return &store.OpError{Op: "MKD", Name: name, Response: response(err), Err: err}
	}
	return nil
}

func (s *Store) SetPermissionBits(ctx context.Context, name string, perm uint16) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// The raw connection has already CWD'd into dir.
	_, err := s.command(200, "SITE", "CHMOD %o %s", perm&0777, name)
	return err
}

// Close sends QUIT and tears down every connection.
func (s *Store) Close() error {
	if s.raw != nil {
		s.raw.SendCommand("QUIT")
		s.raw.Close()
	}
	return s.client.Close()
}
