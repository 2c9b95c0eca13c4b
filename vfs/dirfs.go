// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/grailbio/packfs/errors"
)

// The directory backend implements the archiver contract directly against
// the host filesystem. It is the only writable backend: the write root
// manager drives it for every mkdir/delete/openWrite, and the search-path
// manager uses it as the last resort for mounts no archive format claims.

type dirFormat struct{}

// DirFormat is the plain host-directory backend. It is not part of the
// archive registry; the search-path manager consults it after every
// registered format has declined a path.
var DirFormat Format = dirFormat{}

func (dirFormat) Info() ArchiveInfo {
	return ArchiveInfo{
		Extension:   "",
		Description: "direct host directory I/O",
		Author:      "packfs authors",
		URL:         "https://github.com/grailbio/packfs",
	}
}

// IsArchive claims any host directory, honoring the symlink policy for the
// directory itself.
func (dirFormat) IsArchive(path string, allowSymlinks bool) bool {
	if !allowSymlinks {
		info, err := os.Lstat(path)
		if err != nil || info.Mode()&os.ModeSymlink != 0 {
			return false
		}
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// OpenArchive implements Format.
func (dirFormat) OpenArchive(_ context.Context, path string, allowSymlinks bool) (Archiver, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(errors.NotFound, "open "+path, err)
		}
		return nil, errors.E("open "+path, err)
	}
	if !info.IsDir() {
		return nil, errors.E(errors.NotADir, "open "+path)
	}
	return &dirArchiver{root: path, allowSymlinks: allowSymlinks}, nil
}

type dirArchiver struct {
	root          string
	allowSymlinks bool
	closed        bool
}

func (d *dirArchiver) String() string { return d.root }

func (d *dirArchiver) native(name string) string {
	return NativePath(d.root, string(os.PathSeparator), name)
}

// Enumerate implements Archiver. Children are returned sorted, so that
// enumeration is deterministic across hosts.
func (d *dirArchiver) Enumerate(_ context.Context, dir string) ([]string, error) {
	names, err := readDirNames(d.native(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(errors.NotFound, "enumerate "+dir, err)
		}
		return nil, errors.E("enumerate "+dir, err)
	}
	return names, nil
}

// Exists implements Archiver. A symlink exists regardless of policy; the
// policy is applied by the resolver via IsSymlink.
func (d *dirArchiver) Exists(_ context.Context, name string) bool {
	_, err := os.Lstat(d.native(name))
	return err == nil
}

// IsDirectory implements Archiver, following symlinks.
func (d *dirArchiver) IsDirectory(_ context.Context, name string) bool {
	info, err := os.Stat(d.native(name))
	return err == nil && info.IsDir()
}

// IsSymlink implements Archiver.
func (d *dirArchiver) IsSymlink(_ context.Context, name string) bool {
	info, err := os.Lstat(d.native(name))
	return err == nil && info.Mode()&os.ModeSymlink != 0
}

// OpenRead implements Archiver.
func (d *dirArchiver) OpenRead(_ context.Context, name string) (Handle, error) {
	path := d.native(name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(errors.NotFound, "open "+name, err)
		}
		return nil, errors.E("open "+name, err)
	}
	if info.IsDir() {
		return nil, errors.E(errors.NotAFile, "open "+name)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.E("open "+name, err)
	}
	return &dirHandle{f: f, name: name, length: info.Size()}, nil
}

// OpenWrite implements WriteOpener. Parent directories are created as
// needed. Without appendTo the file is truncated to zero; with it the
// offset starts at the current length.
func (d *dirArchiver) OpenWrite(_ context.Context, name string, appendTo bool) (Handle, error) {
	path := d.native(name)
	if parent := filepath.Dir(path); parent != "" {
		if err := os.MkdirAll(parent, 0777); err != nil {
			return nil, errors.E(errors.NoDirCreate, "open "+name, err)
		}
	}
	flags := os.O_CREATE | os.O_WRONLY
	if !appendTo {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0666)
	if err != nil {
		return nil, errors.E("open "+name, err)
	}
	h := &dirHandle{f: f, name: name, writable: true}
	if appendTo {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			_ = f.Close()
			return nil, errors.E("open "+name, err)
		}
	}
	return h, nil
}

// Remove implements Remover. It removes a file or an empty directory; a
// populated directory is a host error passed through.
func (d *dirArchiver) Remove(_ context.Context, name string) error {
	if err := os.Remove(d.native(name)); err != nil {
		if os.IsNotExist(err) {
			return errors.E(errors.NotFound, "delete "+name, err)
		}
		return errors.E("delete "+name, err)
	}
	return nil
}

// Mkdir implements Mkdirer, creating missing intermediates. It succeeds if
// the final directory already exists.
func (d *dirArchiver) Mkdir(_ context.Context, name string) error {
	if err := os.MkdirAll(d.native(name), 0777); err != nil {
		return errors.E(errors.NoDirCreate, "mkdir "+name, err)
	}
	return nil
}

// Close implements Archiver. The backend holds no state beyond the root
// path, so Close only flags the archiver; it is trivially idempotent.
// Handles opened through the archiver are not tracked and are not
// invalidated: they stay open and usable after Close.
func (d *dirArchiver) Close(context.Context) error {
	d.closed = true
	return nil
}

// dirHandle is a Handle over an *os.File.
type dirHandle struct {
	f        *os.File
	name     string
	writable bool
	length   int64 // fixed at open for read handles
	eof      bool
	closed   bool
}

// Read implements Handle.
func (h *dirHandle) Read(p []byte) (int, error) {
	if h.writable {
		return 0, errors.E(errors.NotSupported, "read "+h.name)
	}
	n, err := h.f.Read(p)
	if err == io.EOF {
		h.eof = true
	} else if n < len(p) && err == nil {
		if pos, perr := h.f.Seek(0, io.SeekCurrent); perr == nil && pos == h.length {
			h.eof = true
		}
	}
	return n, err
}

// Write implements Handle.
func (h *dirHandle) Write(p []byte) (int, error) {
	if !h.writable {
		return 0, errors.E(errors.NotSupported, "write "+h.name)
	}
	n, err := h.f.Write(p)
	if err != nil {
		return n, errors.E("write "+h.name, err)
	}
	return n, nil
}

// Seek implements Handle. Read handles reject offsets past the end; write
// handles may seek past the end, and the host pads with zeros on the next
// write.
func (h *dirHandle) Seek(offset int64) error {
	if offset < 0 {
		return errors.E(errors.InvalidArgument, "seek "+h.name)
	}
	if !h.writable && offset > h.length {
		return errors.E(errors.PastEOF, "seek "+h.name)
	}
	if _, err := h.f.Seek(offset, io.SeekStart); err != nil {
		return errors.E("seek "+h.name, err)
	}
	h.eof = false
	return nil
}

// Tell implements Handle.
func (h *dirHandle) Tell() (int64, error) {
	pos, err := h.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, errors.E("tell "+h.name, err)
	}
	return pos, nil
}

// EOF implements Handle.
func (h *dirHandle) EOF() bool { return h.eof }

// Length implements Handle. Write handles stat on demand, since the length
// moves with every write.
func (h *dirHandle) Length() (int64, error) {
	if !h.writable {
		return h.length, nil
	}
	info, err := h.f.Stat()
	if err != nil {
		return 0, errors.E("length "+h.name, err)
	}
	return info.Size(), nil
}

// Close implements Handle. A failed close (e.g. buffered writes that cannot
// reach media) leaves the handle open.
func (h *dirHandle) Close(context.Context) error {
	if h.closed {
		return nil
	}
	if h.writable {
		if err := h.f.Sync(); err != nil {
			return errors.E("close "+h.name, err)
		}
	}
	if err := h.f.Close(); err != nil {
		return errors.E("close "+h.name, err)
	}
	h.closed = true
	return nil
}

// readDirNames reads the directory named by dirname and returns
// a sorted list of directory entries.
func readDirNames(dirname string) ([]string, error) {
	f, err := os.Open(dirname)
	if err != nil {
		return nil, err
	}
	names, err := f.Readdirnames(-1)
	if e := f.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
