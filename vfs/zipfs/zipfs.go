// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package zipfs is the read-only ZIP archive backend. Importing it
// registers the format:
//
//	import _ "github.com/grailbio/packfs/vfs/zipfs"
//
// Entry decompression goes through klauspost's flate, which is
// substantially faster than the standard library's on the asset-sized
// files games ship.
package zipfs

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/grailbio/packfs/errors"
	"github.com/grailbio/packfs/log"
	"github.com/grailbio/packfs/vfs"
)

func init() {
	vfs.RegisterFormat(format{})
}

// zip local-file and end-of-central-directory signatures. An empty archive
// has no local file headers, only the trailer.
var zipMagics = [][]byte{
	{'P', 'K', 0x03, 0x04},
	{'P', 'K', 0x05, 0x06},
}

type format struct{}

// Info implements vfs.Format.
func (format) Info() vfs.ArchiveInfo {
	return vfs.ArchiveInfo{
		Extension:   "zip",
		Description: "PkZip/WinZip/Info-Zip compatible",
		Author:      "packfs authors",
		URL:         "https://github.com/grailbio/packfs",
	}
}

// IsArchive implements vfs.Format: a cheap signature sniff, without parsing
// the central directory.
func (format) IsArchive(path string, allowSymlinks bool) bool {
	if !allowSymlinks {
		info, err := os.Lstat(path)
		if err != nil || info.Mode()&os.ModeSymlink != 0 {
			return false
		}
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close() // nolint: errcheck
	var sig [4]byte
	if _, err := io.ReadFull(f, sig[:]); err != nil {
		return false
	}
	for _, magic := range zipMagics {
		if bytes.Equal(sig[:], magic) {
			return true
		}
	}
	return false
}

// OpenArchive implements vfs.Format. The central directory is parsed once
// and indexed; directories that exist only implicitly (as prefixes of entry
// names) are materialized so that enumeration and IsDirectory see them.
func (format) OpenArchive(_ context.Context, path string, allowSymlinks bool) (vfs.Archiver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E("zip open "+path, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errors.E("zip open "+path, err)
	}
	r, err := zip.NewReader(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, errors.E(errors.UnsupportedArchive, "zip open "+path, err)
	}
	r.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})

	a := &archive{
		path:     path,
		f:        f,
		entries:  make(map[string]*zip.File),
		dirs:     map[string]bool{"": true},
		children: make(map[string][]string),
	}
	childSeen := make(map[string]bool)
	addChild := func(dir, base string) {
		key := dir + "/" + base
		if childSeen[key] {
			return
		}
		childSeen[key] = true
		a.children[dir] = append(a.children[dir], base)
	}
	for _, e := range r.File {
		name := strings.TrimSuffix(e.Name, "/")
		if name == "" || !validEntryName(name) {
			continue
		}
		if strings.HasSuffix(e.Name, "/") || e.FileInfo().IsDir() {
			a.dirs[name] = true
		} else {
			a.entries[name] = e
		}
		// Materialize the parent chain.
		for dir, base := parent(name); ; dir, base = parent(dir) {
			addChild(dir, base)
			if dir == "" {
				break
			}
			a.dirs[dir] = true
		}
	}
	log.Debugf("zipfs: %s: indexed %d files, %d directories", path, len(a.entries), len(a.dirs)-1)
	return a, nil
}

// validEntryName filters entries whose names cannot be reached by a logical
// path: absolute names, host separators, or dot components.
func validEntryName(name string) bool {
	if name[0] == '/' || strings.ContainsAny(name, "\\:") {
		return false
	}
	for _, comp := range strings.Split(name, "/") {
		switch comp {
		case "", ".", "..":
			return false
		}
	}
	return true
}

func parent(name string) (dir, base string) {
	i := strings.LastIndexByte(name, '/')
	if i < 0 {
		return "", name
	}
	return name[:i], name[i+1:]
}

// archive is an opened ZIP file. The index built at open answers all
// metadata queries without touching the file again; only OpenRead and Close
// do I/O.
type archive struct {
	path     string
	f        *os.File
	entries  map[string]*zip.File
	dirs     map[string]bool
	children map[string][]string // archive order, first occurrence
	closed   bool
}

func (a *archive) String() string { return a.path }

// Enumerate implements vfs.Archiver. Children come back in archive order.
func (a *archive) Enumerate(_ context.Context, dir string) ([]string, error) {
	if !a.dirs[dir] {
		return nil, errors.E(errors.NotADir, "zip enumerate "+dir)
	}
	return append([]string(nil), a.children[dir]...), nil
}

// Exists implements vfs.Archiver.
func (a *archive) Exists(_ context.Context, name string) bool {
	_, ok := a.entries[name]
	return ok || a.dirs[name]
}

// IsDirectory implements vfs.Archiver.
func (a *archive) IsDirectory(_ context.Context, name string) bool {
	return a.dirs[name]
}

// IsSymlink implements vfs.Archiver. ZIP archives built on Unix record the
// file mode; a symlink entry stores its target as the file body.
func (a *archive) IsSymlink(_ context.Context, name string) bool {
	e, ok := a.entries[name]
	return ok && e.FileInfo().Mode()&os.ModeSymlink != 0
}

// OpenRead implements vfs.Archiver.
func (a *archive) OpenRead(_ context.Context, name string) (vfs.Handle, error) {
	if a.closed {
		return nil, errors.E(errors.InvalidArgument, "zip open "+name+": archive closed")
	}
	if a.dirs[name] {
		return nil, errors.E(errors.NotAFile, "zip open "+name)
	}
	e, ok := a.entries[name]
	if !ok {
		return nil, errors.E(errors.NotFound, "zip open "+name)
	}
	rc, err := e.Open()
	if err != nil {
		return nil, errors.E("zip open "+name, err)
	}
	return &handle{e: e, rc: rc, name: name, length: e.FileInfo().Size()}, nil
}

// Close implements vfs.Archiver. Handles still open against the archive
// are invalidated: their reads fail once the underlying file is closed.
func (a *archive) Close(context.Context) error {
	if a.closed {
		return nil
	}
	if err := a.f.Close(); err != nil {
		return errors.E("zip close "+a.path, err)
	}
	a.closed = true
	return nil
}

// handle reads one entry. Decompressed streams only run forward, so Seek is
// emulated: forward by discarding, backward by reopening the entry and
// discarding from the start.
type handle struct {
	e      *zip.File
	rc     io.ReadCloser
	name   string
	pos    int64
	length int64
	eof    bool
	closed bool
}

// Read implements vfs.Handle. A final read that returns data reports no
// error; io.EOF comes on the next call, with 0 bytes.
func (h *handle) Read(p []byte) (int, error) {
	n, err := h.rc.Read(p)
	h.pos += int64(n)
	if err == io.EOF || (n < len(p) && h.pos == h.length) {
		h.eof = true
	}
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// Write implements vfs.Handle.
func (h *handle) Write([]byte) (int, error) {
	return 0, errors.E(errors.NotSupported, "write "+h.name)
}

// Seek implements vfs.Handle.
func (h *handle) Seek(offset int64) error {
	if offset < 0 {
		return errors.E(errors.InvalidArgument, "seek "+h.name)
	}
	if offset > h.length {
		return errors.E(errors.PastEOF, "seek "+h.name)
	}
	if offset < h.pos {
		rc, err := h.e.Open()
		if err != nil {
			return errors.E("seek "+h.name, err)
		}
		_ = h.rc.Close()
		h.rc = rc
		h.pos = 0
	}
	if _, err := io.CopyN(io.Discard, h.rc, offset-h.pos); err != nil {
		return errors.E("seek "+h.name, err)
	}
	h.pos = offset
	h.eof = false
	return nil
}

// Tell implements vfs.Handle.
func (h *handle) Tell() (int64, error) { return h.pos, nil }

// EOF implements vfs.Handle.
func (h *handle) EOF() bool { return h.eof }

// Length implements vfs.Handle.
func (h *handle) Length() (int64, error) { return h.length, nil }

// Close implements vfs.Handle.
func (h *handle) Close(context.Context) error {
	if h.closed {
		return nil
	}
	if err := h.rc.Close(); err != nil {
		return errors.E("close "+h.name, err)
	}
	h.closed = true
	return nil
}
