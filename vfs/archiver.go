// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import "context"

// ArchiveInfo describes an archive format to users, advertised through
// SupportedArchiveTypes.
type ArchiveInfo struct {
	// Extension is the conventional file extension, without the dot.
	Extension string
	// Description is a one-line human-readable name of the format.
	Description string
	// Author identifies the backend's author.
	Author string
	// URL points at the backend's home.
	URL string
}

// Format describes an archive backend to the registry. Implementations must
// be stateless and safe for concurrent use; per-archive state lives in the
// Archiver a Format opens.
type Format interface {
	// Info returns the format's static descriptor.
	Info() ArchiveInfo

	// IsArchive is a cheap probe: does this backend plausibly own the host
	// object at path? It must not retain any resources.
	IsArchive(path string, allowSymlinks bool) bool

	// OpenArchive constructs an Archiver rooted at the host path.
	OpenArchive(ctx context.Context, path string, allowSymlinks bool) (Archiver, error)
}

// Archiver is an opened instance of "a thing that contains files": a plain
// host directory or a decoded archive. Logical names passed to its methods
// have been validated by the caller. An Archiver is internally
// single-threaded unless its backend documents otherwise; the façade never
// calls two operations on the same Archiver concurrently.
type Archiver interface {
	// String returns a diagnostic string.
	String() string

	// Enumerate lists the direct children of a logical directory inside the
	// archive. It may yield an empty list.
	Enumerate(ctx context.Context, dir string) ([]string, error)

	// Exists reports presence of a file or directory at name.
	Exists(ctx context.Context, name string) bool

	// IsDirectory reports whether name is a directory.
	IsDirectory(ctx context.Context, name string) bool

	// IsSymlink reports whether name is a symbolic link.
	IsSymlink(ctx context.Context, name string) bool

	// OpenRead opens the named file for reading at offset 0.
	OpenRead(ctx context.Context, name string) (Handle, error)

	// Close releases backend state. Close is idempotent, and must tolerate
	// outstanding file handles by invalidating them.
	Close(ctx context.Context) error
}

// Optional archiver capabilities. A backend that cannot serve one simply
// does not implement the interface; call sites assert and surface
// NotSupported on failure.

// Remover deletes files or empty directories. Writable backends only.
type Remover interface {
	Remove(ctx context.Context, name string) error
}

// Mkdirer creates directories, including missing intermediates.
type Mkdirer interface {
	Mkdir(ctx context.Context, name string) error
}

// WriteOpener opens files for writing. When appendTo is set the initial
// offset is the current length and existing content is preserved; otherwise
// the file is truncated to zero. Parent directories are created as needed.
type WriteOpener interface {
	OpenWrite(ctx context.Context, name string, appendTo bool) (Handle, error)
}
