package assetdb

import (
	"bytes"
	"context"
	"io/fs"
	"strings"
	"sync"
	"time"
)

// Fetcher answers URL-style fetches. Loaders that would otherwise go to the
// network take a Fetcher instead.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Fetch resolves url as an asset reference. Query strings and fragments
// are ignored.
func (db *DB) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	p, err := db.Resolve(url)
	if err != nil {
		return nil, err
	}
	return p.Data, nil
}

var (
	installMu sync.Mutex
	installed Fetcher
)

// Install registers f as the process-wide fetcher and returns a function
// that restores the previous one. It is the only global state in this
// package; callers that can pass a Fetcher or Resolver explicitly should.
func Install(f Fetcher) (restore func()) {
	installMu.Lock()
	prev := installed
	installed = f
	installMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			installMu.Lock()
			installed = prev
			installMu.Unlock()
		})
	}
}

// Installed returns the process-wide fetcher, or nil.
func Installed() Fetcher {
	installMu.Lock()
	defer installMu.Unlock()
	return installed
}

// FS exposes the DB as a read-only file system. Names go through Resolve,
// so relative and scheme-prefixed references both work. Directory listing
// is not supported.
func (db *DB) FS() fs.FS {
	return dbFS{db}
}

type dbFS struct{ db *DB }

func (f dbFS) Open(name string) (fs.File, error) {
	p, err := f.db.Resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return &file{Reader: bytes.NewReader(p.Data), p: p}, nil
}

func (f dbFS) ReadFile(name string) ([]byte, error) {
	p, err := f.db.Resolve(name)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}
	return bytes.Clone(p.Data), nil
}

type file struct {
	*bytes.Reader
	p Payload
}

func (f *file) Stat() (fs.FileInfo, error) { return fileInfo{f.p}, nil }
func (f *file) Close() error               { return nil }

type fileInfo struct{ p Payload }

func (i fileInfo) Name() string       { return i.p.Key.Base() }
func (i fileInfo) Size() int64        { return int64(len(i.p.Data)) }
func (i fileInfo) Mode() fs.FileMode  { return 0o444 }
func (i fileInfo) ModTime() time.Time { return time.Time{} }
func (i fileInfo) IsDir() bool        { return false }
func (i fileInfo) Sys() any           { return nil }
