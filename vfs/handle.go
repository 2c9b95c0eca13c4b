// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"context"
	"io"
	"sync/atomic"
)

// Handle is the polymorphic file handle produced by archiver backends. Read
// and Write follow io semantics (Read returns io.EOF at end of file); Seek
// takes an absolute offset. Capabilities a backend cannot serve return
// errors of kind NotSupported, e.g. Write on a read-only handle.
type Handle interface {
	// Read reads up to len(p) bytes, returning the count read. At end of
	// file it returns 0, io.EOF.
	Read(p []byte) (n int, err error)

	// Write writes len(p) bytes, returning the count written.
	Write(p []byte) (n int, err error)

	// Seek repositions the handle at the absolute offset. Read handles
	// reject offsets beyond the file's length with PastEOF.
	Seek(offset int64) error

	// Tell returns the current offset.
	Tell() (int64, error)

	// EOF reports whether the handle has read to the end of the file.
	EOF() bool

	// Length returns the file's size in bytes.
	Length() (int64, error)

	// Close releases the handle. On failure the handle stays open and the
	// call may be retried.
	Close(ctx context.Context) error
}

// File is the handle type returned by the façade's open operations. It
// delegates to the backend Handle, pins the owning mount while open, and
// participates in the write-root accounting. Failures are recorded in the
// caller's error slot, like every other operation.
type File struct {
	vfs      *VFS
	mnt      *mount // nil for write-root handles
	h        Handle
	name     string
	writable bool
	closed   bool
}

// newFile wraps a backend handle and registers it with the VFS.
func (v *VFS) newFile(mnt *mount, h Handle, name string, writable bool) *File {
	f := &File{vfs: v, mnt: mnt, h: h, name: name, writable: writable}
	if mnt != nil {
		atomic.AddInt32(&mnt.open, 1)
	}
	v.handleMu.Lock()
	if writable {
		atomic.AddInt32(&v.openWriteCount, 1)
		v.openWriters[name] = true
	}
	v.handles[f] = true
	v.handleMu.Unlock()
	return f
}

// Name returns the logical path the file was opened with.
func (f *File) Name() string { return f.name }

// Read implements Handle.
func (f *File) Read(p []byte) (int, error) {
	n, err := f.h.Read(p)
	if err != nil && err != io.EOF {
		f.vfs.setError(err)
	}
	return n, err
}

// Write implements Handle.
func (f *File) Write(p []byte) (int, error) {
	n, err := f.h.Write(p)
	if err != nil {
		f.vfs.setError(err)
	}
	return n, err
}

// Seek implements Handle.
func (f *File) Seek(offset int64) error {
	if err := f.h.Seek(offset); err != nil {
		return f.vfs.bail(err)
	}
	return nil
}

// Tell implements Handle.
func (f *File) Tell() (int64, error) {
	pos, err := f.h.Tell()
	if err != nil {
		f.vfs.setError(err)
	}
	return pos, err
}

// EOF implements Handle.
func (f *File) EOF() bool { return f.h.EOF() }

// Length implements Handle.
func (f *File) Length() (int64, error) {
	n, err := f.h.Length()
	if err != nil {
		f.vfs.setError(err)
	}
	return n, err
}

// Close closes the backend handle. If the backend reports failure (for
// example a buffered write that cannot reach media), the File stays open
// and usable for another attempt. A second Close of a closed File is a
// no-op.
func (f *File) Close(ctx context.Context) error {
	if f.closed {
		return nil
	}
	if err := f.h.Close(ctx); err != nil {
		return f.vfs.bail(err)
	}
	f.release()
	return nil
}

// release undoes the registration done by newFile.
func (f *File) release() {
	f.closed = true
	if f.mnt != nil {
		atomic.AddInt32(&f.mnt.open, -1)
	}
	f.vfs.handleMu.Lock()
	if f.writable {
		atomic.AddInt32(&f.vfs.openWriteCount, -1)
		delete(f.vfs.openWriters, f.name)
	}
	delete(f.vfs.handles, f)
	f.vfs.handleMu.Unlock()
}
