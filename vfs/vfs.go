// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package vfs implements a portable, virtualized read/write filesystem that
// unifies real directories and archive files into a single logical tree.
// Applications configure a prioritized search path of mounts and read
// resources by logical name; the first mount holding a name wins, with
// archives decoded transparently. A single write directory on the real
// filesystem receives all modifications.
//
// The package-level functions operate on a process-wide default instance,
// mirroring the usual game-engine setup; New creates independent instances
// for tests and embedders. Structural mutations (Init/Deinit, search-path
// and write-root changes) are not safe for concurrent use; reads on
// disjoint file handles are.
package vfs

import (
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gobwas/glob"
	"github.com/grailbio/packfs/errors"
	"github.com/grailbio/packfs/platform"
)

// Version identifies a release of this library.
type Version struct {
	Major, Minor, Patch int
}

// LinkedVersion returns the version of the linked library.
func LinkedVersion() Version {
	return Version{Major: 0, Minor: 2, Patch: 0}
}

// VFS holds the entire state of one virtual filesystem: the search path,
// the write root, the per-thread error slots, and the directories derived
// at initialization.
type VFS struct {
	plat platform.Platform

	errMu sync.Mutex
	errs  map[int]*errSlot

	initialized   bool
	allowSymlinks bool
	baseDir       string
	userDir       string // memoized by UserDir

	mounts []*mount

	writeDir       string
	writeArch      Archiver
	openWriteCount int32 // atomic

	// handleMu guards the two handle-tracking maps, so that opens and
	// closes of disjoint handles may run concurrently.
	handleMu    sync.Mutex
	openWriters map[string]bool
	handles     map[*File]bool
}

// New returns an uninitialized virtual filesystem using the given platform
// services; nil selects the host platform. The instance becomes usable
// after Init.
func New(plat platform.Platform) *VFS {
	if plat == nil {
		plat = platform.Host
	}
	return &VFS{
		plat:        plat,
		errs:        make(map[int]*errSlot),
		openWriters: make(map[string]bool),
		handles:     make(map[*File]bool),
	}
}

// Init prepares the virtual filesystem for use, deriving the base directory
// from argv0. Initializing an initialized instance fails.
func (v *VFS) Init(ctx context.Context, argv0 string) error {
	if v.initialized {
		return v.bail(errors.E(errors.IsInitialized, "init"))
	}
	if argv0 == "" {
		return v.bail(errors.E(errors.InvalidArgument, "init"))
	}
	baseDir, err := v.plat.BaseDir(argv0)
	if err != nil {
		return v.bail(errors.E("init", err))
	}
	v.baseDir = baseDir
	v.initialized = true
	return nil
}

// Deinit tears the instance down: open handles are closed, the search path
// and write root are cleared, error slots are released, and the instance
// returns to its uninitialized state. The first handle- or archiver-close
// failure is reported, but teardown always completes.
func (v *VFS) Deinit(ctx context.Context) error {
	if !v.initialized {
		return v.bail(errors.E(errors.NotInitialized, "deinit"))
	}
	var firstErr error
	for f := range v.handles {
		if err := f.h.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		f.release()
	}
	v.writeDir = ""
	v.writeArch = nil
	for _, m := range v.mounts {
		if err := m.arch.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	v.mounts = nil
	v.clearErrors()
	v.baseDir = ""
	v.userDir = ""
	v.allowSymlinks = false
	v.openWriters = make(map[string]bool)
	atomic.StoreInt32(&v.openWriteCount, 0)
	v.initialized = false
	if firstErr != nil {
		return v.bail(errors.E("deinit", firstErr))
	}
	return nil
}

// PermitSymlinks flips the symlink policy. By default symbolic links inside
// mounts are invisible: they fail existence checks during resolution and
// cannot be opened. Only operations issued after the flip see the new
// policy; handles already open are unaffected.
func (v *VFS) PermitSymlinks(allow bool) {
	v.allowSymlinks = allow
}

// SymlinksPermitted reports the current symlink policy.
func (v *VFS) SymlinksPermitted() bool {
	return v.allowSymlinks
}

// DirSeparator returns the host's directory separator. Logical paths never
// use it; it is for assembling host paths to feed the mount operations.
func (v *VFS) DirSeparator() string {
	return v.plat.PathSeparator()
}

// BaseDir returns the directory the application was started from, derived
// during Init. It is "" before initialization.
func (v *VFS) BaseDir() string {
	return v.baseDir
}

// UserDir returns the current user's directory: the platform's notion if it
// has one, else $HOME, else a "users/<name>" directory under the base dir.
// The result is memoized.
func (v *VFS) UserDir() string {
	if v.userDir != "" {
		return v.userDir
	}
	if dir, err := v.plat.UserDir(); err == nil && dir != "" {
		v.userDir = dir
		return v.userDir
	}
	if home := os.Getenv("HOME"); home != "" {
		v.userDir = home
		return v.userDir
	}
	name, err := v.plat.UserName()
	if err != nil || name == "" {
		name = "default"
	}
	sep := v.plat.PathSeparator()
	v.userDir = v.baseDir + sep + "users" + sep + name
	return v.userDir
}

// CdRomDirs enumerates mount points of detected optical media. The scan may
// block while discs are accessed.
func (v *VFS) CdRomDirs() ([]string, error) {
	dirs, err := v.plat.CdRomDirs()
	if err != nil {
		return nil, v.bail(errors.E("cdroms", err))
	}
	return dirs, nil
}

// OpenRead opens the named file for reading. The search path is checked one
// mount at a time until a match is found; the reading offset starts at the
// first byte.
func (v *VFS) OpenRead(ctx context.Context, name string) (*File, error) {
	if !v.initialized {
		return nil, v.bail(errors.E(errors.NotInitialized, "openRead "+name))
	}
	if err := ValidatePath(name); err != nil {
		return nil, v.bail(err)
	}
	m, err := v.resolve(ctx, name)
	if err != nil {
		return nil, v.bail(err)
	}
	h, err := m.arch.OpenRead(ctx, name)
	if err != nil {
		return nil, v.bail(err)
	}
	return v.newFile(m, h, name, false), nil
}

// OpenWrite opens the named file for writing under the write root, creating
// it if needed and truncating it to zero bytes. Parent directories are
// created as needed.
func (v *VFS) OpenWrite(ctx context.Context, name string) (*File, error) {
	return v.openWritable(ctx, "openWrite", name, false)
}

// OpenAppend opens the named file for writing under the write root with the
// offset at the end of any existing content.
func (v *VFS) OpenAppend(ctx context.Context, name string) (*File, error) {
	return v.openWritable(ctx, "openAppend", name, true)
}

func (v *VFS) openWritable(ctx context.Context, op, name string, appendTo bool) (*File, error) {
	arch, err := v.writeBackend(op, name)
	if err != nil {
		return nil, v.bail(err)
	}
	v.handleMu.Lock()
	dup := v.openWriters[name]
	v.handleMu.Unlock()
	if dup {
		return nil, v.bail(errors.E(errors.FilesStillOpenForWrite, op+" "+name))
	}
	opener, ok := arch.(WriteOpener)
	if !ok {
		return nil, v.bail(errors.E(errors.NotSupported, op+" "+name))
	}
	h, err := opener.OpenWrite(ctx, name, appendTo)
	if err != nil {
		return nil, v.bail(err)
	}
	return v.newFile(nil, h, name, true), nil
}

// Mkdir creates a directory under the write root, including missing
// intermediates. It succeeds if the final directory already exists.
func (v *VFS) Mkdir(ctx context.Context, name string) error {
	arch, err := v.writeBackend("mkdir", name)
	if err != nil {
		return v.bail(err)
	}
	mk, ok := arch.(Mkdirer)
	if !ok {
		return v.bail(errors.E(errors.NotSupported, "mkdir "+name))
	}
	if err := mk.Mkdir(ctx, name); err != nil {
		return v.bail(err)
	}
	return nil
}

// Delete removes a file or empty directory under the write root.
func (v *VFS) Delete(ctx context.Context, name string) error {
	arch, err := v.writeBackend("delete", name)
	if err != nil {
		return v.bail(err)
	}
	rm, ok := arch.(Remover)
	if !ok {
		return v.bail(errors.E(errors.NotSupported, "delete "+name))
	}
	if err := rm.Remove(ctx, name); err != nil {
		return v.bail(err)
	}
	return nil
}

// Enumerate lists the direct children of a logical directory, interpolated
// across every mount: each mount in search order contributes its children,
// and duplicates keep their first occurrence.
func (v *VFS) Enumerate(ctx context.Context, dir string) ([]string, error) {
	if !v.initialized {
		return nil, v.bail(errors.E(errors.NotInitialized, "enumerate "+dir))
	}
	if err := ValidatePath(dir); err != nil {
		return nil, v.bail(err)
	}
	var (
		names []string
		seen  = make(map[string]bool)
	)
	for _, m := range v.mounts {
		children, err := m.arch.Enumerate(ctx, dir)
		if err != nil {
			// A mount without this directory contributes nothing.
			continue
		}
		for _, name := range children {
			if seen[name] {
				continue
			}
			seen[name] = true
			names = append(names, name)
		}
	}
	return names, nil
}

// EnumerateMatch is Enumerate filtered through a glob pattern, e.g.
// "*.sav".
func (v *VFS) EnumerateMatch(ctx context.Context, dir, pattern string) ([]string, error) {
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, v.bail(errors.E(errors.InvalidArgument, "pattern "+pattern, err))
	}
	names, err := v.Enumerate(ctx, dir)
	if err != nil {
		return nil, err
	}
	matched := names[:0:0]
	for _, name := range names {
		if g.Match(name) {
			matched = append(matched, name)
		}
	}
	return matched, nil
}

// RealDir returns the search-path element containing the named file: the
// host path of the first mount whose archiver holds it, honoring the
// symlink policy. Even when later mounts also hold the name, only the
// first match counts, just like opening.
func (v *VFS) RealDir(ctx context.Context, name string) (string, error) {
	if !v.initialized {
		return "", v.bail(errors.E(errors.NotInitialized, "realDir "+name))
	}
	if err := ValidatePath(name); err != nil {
		return "", v.bail(err)
	}
	m, err := v.resolve(ctx, name)
	if err != nil {
		return "", v.bail(err)
	}
	return m.dirName, nil
}

// Exists reports whether the named file or directory is visible anywhere in
// the search path under the current symlink policy.
func (v *VFS) Exists(ctx context.Context, name string) bool {
	if !v.initialized || ValidatePath(name) != nil {
		return false
	}
	_, err := v.resolve(ctx, name)
	return err == nil
}

// IsDirectory reports whether the first match for name in the search path
// is a directory.
func (v *VFS) IsDirectory(ctx context.Context, name string) bool {
	if !v.initialized || ValidatePath(name) != nil {
		return false
	}
	m, err := v.resolve(ctx, name)
	return err == nil && m.arch.IsDirectory(ctx, name)
}

// IsSymbolicLink reports whether the first match for name in the search
// path is a symbolic link. It only ever reports true with symlinks
// permitted, since the resolver skips links otherwise.
func (v *VFS) IsSymbolicLink(ctx context.Context, name string) bool {
	if !v.initialized || ValidatePath(name) != nil {
		return false
	}
	m, err := v.resolve(ctx, name)
	return err == nil && m.arch.IsSymlink(ctx, name)
}

// hasExtension reports whether name ends in "."+ext, compared
// case-insensitively with the platform's collation.
func (v *VFS) hasExtension(name, ext string) bool {
	if len(name) <= len(ext)+1 {
		return false
	}
	dot := len(name) - len(ext) - 1
	if name[dot] != '.' {
		return false
	}
	return v.plat.Stricmp(name[dot+1:], ext) == 0
}
