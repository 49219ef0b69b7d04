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

package s3store

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/nelhage/modecast/frame"
	"github.com/nelhage/modecast/store"
)

// Objects carry their unix mode the way s3fs does: a decimal st_mode
// in the "mode" user metadata key, with directories stored as an empty
// object whose key ends in "/".
const (
	modeKey = "mode"

	modeDir  = 0040000
	modeFile = 0100000
	modeLink = 0120000
	modeType = 0170000

	defaultFileMode = modeFile | 0644
	defaultDirMode  = modeDir | 0755
)

type Store struct {
	s3     s3iface.S3API
	bucket string
	prefix string
}

var _ store.Store = &Store{}

// FromSession opens the directory named by an s3://BUCKET/PATH address.
func FromSession(s *session.Session, address string) (*Store, error) {
	return New(s3.New(s), address)
}

func New(api s3iface.S3API, address string) (*Store, error) {
	u, e := url.Parse(address)
	if e != nil {
		return nil, fmt.Errorf("Parsing store: %q: %w", address, e)
	}
	if u.Scheme != "s3" {
		return nil, fmt.Errorf("Object store: %q: unsupported scheme %s", address, u.Scheme)
	}
	prefix := strings.Trim(u.Path, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Store{s3: api, bucket: u.Host, prefix: prefix}, nil
}

func (s *Store) key(name string) string {
	return s.prefix + name
}

func isNotFound(err error) bool {
	if reqerr, ok := err.(awserr.RequestFailure); ok && reqerr.StatusCode() == 404 {
		return true
	}
	return false
}

func opError(op, name string, err error) error {
	e := &store.OpError{Op: op, Name: name, Err: err}
	if reqerr, ok := err.(awserr.RequestFailure); ok {
		e.Response = fmt.Sprintf("%d %s: %s", reqerr.StatusCode(), reqerr.Code(), reqerr.Message())
	} else if aerr, ok := err.(awserr.Error); ok {
		e.Response = aerr.Code() + ": " + aerr.Message()
	}
	return e
}

func metadataMode(md map[string]*string) (uint32, bool) {
	for k, v := range md {
		if !strings.EqualFold(k, modeKey) || v == nil {
			continue
		}
		mode, err := strconv.ParseUint(*v, 10, 32)
		if err != nil {
			return 0, false
		}
		return uint32(mode), true
	}
	return 0, false
}

func permString(mode uint32) string {
	perm := frame.FormatPermString(frame.Value(mode & 0777))
	switch mode & modeType {
	case modeDir:
		return "d" + perm[1:]
	case modeLink:
		return "l" + perm[1:]
	default:
		return perm
	}
}

func (s *Store) head(ctx context.Context, key string) (*s3.HeadObjectOutput, error) {
	return s.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    aws.String(key),
	})
}

// List returns every object directly under the prefix. Objects without
// a mode get the s3fs defaults.
func (s *Store) List(ctx context.Context) ([]store.Entry, error) {
	type listed struct {
		name, key string
		dir       bool
	}
	var objs []listed
	err := s.s3.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:    &s.bucket,
		Prefix:    aws.String(s.prefix),
		Delimiter: aws.String("/"),
	}, func(page *s3.ListObjectsV2Output, last bool) bool {
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.StringValue(obj.Key), s.prefix)
			if name == "" {
				continue
			}
			objs = append(objs, listed{name: name, key: aws.StringValue(obj.Key)})
		}
		for _, cp := range page.CommonPrefixes {
			key := aws.StringValue(cp.Prefix)
			name := strings.TrimSuffix(strings.TrimPrefix(key, s.prefix), "/")
			objs = append(objs, listed{name: name, key: key, dir: true})
		}
		return true
	})
	if err != nil {
		return nil, opError("LIST", s.prefix, err)
	}

	entries := make([]store.Entry, 0, len(objs))
	for _, obj := range objs {
		mode := uint32(defaultFileMode)
		if obj.dir {
			mode = defaultDirMode
		}
		head, err := s.head(ctx, obj.key)
		switch {
		case err == nil:
			if m, ok := metadataMode(head.Metadata); ok {
				mode = m
			}
		case obj.dir && isNotFound(err):
			// A bare prefix with no marker object.
		default:
			return nil, opError("HEAD", obj.name, err)
		}
		if obj.dir {
			mode = mode&^modeType | modeDir
		}
		perm := permString(mode)
		entries = append(entries, store.Entry{Name: obj.name, Perm: perm, Type: perm[0]})
	}
	store.SortEntries(entries)
	return entries, nil
}

func modeMetadata(mode uint32) map[string]*string {
	return map[string]*string{
		modeKey: aws.String(strconv.FormatUint(uint64(mode), 10)),
	}
}

func (s *Store) put(ctx context.Context, name, key string, body []byte, mode uint32) error {
	_, err := s.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:   &s.bucket,
		Key:      aws.String(key),
		Body:     bytes.NewReader(body),
		Metadata: modeMetadata(mode),
	})
	if err != nil {
		return opError("PUT", name, err)
	}
	return nil
}

func (s *Store) CreateFile(ctx context.Context, name string, content []byte) error {
	return s.put(ctx, name, s.key(name), content, defaultFileMode)
}

func (s *Store) CreateContainer(ctx context.Context, name string) error {
	return s.put(ctx, name, s.key(name)+"/", nil, defaultDirMode)
}

// SetPermissionBits rewrites the object's metadata with a self-copy,
// which is the only way S3 updates metadata.
func (s *Store) SetPermissionBits(ctx context.Context, name string, perm uint16) error {
	key := s.key(name)
	mode := uint32(modeFile)
	_, err := s.head(ctx, key)
	if isNotFound(err) {
		key += "/"
		mode = modeDir
		_, err = s.head(ctx, key)
	}
	if err != nil {
		if isNotFound(err) {
			return &store.OpError{Op: "CHMOD", Name: name, Err: store.ErrNotExists}
		}
		return opError("CHMOD", name, err)
	}
	mode |= uint32(perm) & 0777

	source := (&url.URL{Path: s.bucket + "/" + key}).EscapedPath()
	_, err = s.s3.CopyObjectWithContext(ctx, &s3.CopyObjectInput{
		Bucket:            &s.bucket,
		Key:               aws.String(key),
		CopySource:        aws.String(source),
		MetadataDirective: aws.String(s3.MetadataDirectiveReplace),
		Metadata:          modeMetadata(mode),
	})
	if err != nil {
		return opError("CHMOD", name, err)
	}
	return nil
}

func (s *Store) Close() error { return nil }
