// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"context"
	"sync/atomic"

	"github.com/grailbio/packfs/errors"
	"github.com/grailbio/packfs/log"
)

// A mount pairs the host path a caller supplied with the archiver opened at
// that path. The mount exclusively owns its archiver. The open counter
// enforces the mount/handle lifetime rule: a mount with open handles cannot
// be removed.
type mount struct {
	dirName string
	arch    Archiver
	open    int32 // open handles, atomic
}

// openBackend finds the backend for a host path: the first registered
// format that claims it wins; a plain host directory falls back to the
// directory backend; anything else is an unsupported archive.
func openBackend(ctx context.Context, path string, allowSymlinks bool) (Archiver, error) {
	for _, f := range registeredFormats() {
		if f.IsArchive(path, allowSymlinks) {
			return f.OpenArchive(ctx, path, allowSymlinks)
		}
	}
	if DirFormat.IsArchive(path, allowSymlinks) {
		return DirFormat.OpenArchive(ctx, path, allowSymlinks)
	}
	return nil, errors.E(errors.UnsupportedArchive, "mount "+path)
}

// AddToSearchPath opens an archiver for newDir and inserts the resulting
// mount at the tail (appendToPath) or head of the search path. The
// operation is atomic: on failure the search path is unchanged and any
// partially constructed backend state has been released.
func (v *VFS) AddToSearchPath(ctx context.Context, newDir string, appendToPath bool) error {
	if !v.initialized {
		return v.bail(errors.E(errors.NotInitialized, "addToSearchPath"))
	}
	if newDir == "" {
		return v.bail(errors.E(errors.InvalidArgument, "addToSearchPath"))
	}
	arch, err := openBackend(ctx, newDir, v.allowSymlinks)
	if err != nil {
		return v.bail(err)
	}
	m := &mount{dirName: newDir, arch: arch}
	if appendToPath {
		v.mounts = append(v.mounts, m)
	} else {
		v.mounts = append([]*mount{m}, v.mounts...)
	}
	log.Debugf("vfs: mounted %s (%d in search path)", newDir, len(v.mounts))
	return nil
}

// RemoveFromSearchPath removes the mount whose host path equals oldDir,
// closing its archiver. Removing a mount that still has open handles is
// refused.
func (v *VFS) RemoveFromSearchPath(ctx context.Context, oldDir string) error {
	if !v.initialized {
		return v.bail(errors.E(errors.NotInitialized, "removeFromSearchPath"))
	}
	if oldDir == "" {
		return v.bail(errors.E(errors.InvalidArgument, "removeFromSearchPath"))
	}
	for i, m := range v.mounts {
		if m.dirName != oldDir {
			continue
		}
		if atomic.LoadInt32(&m.open) > 0 {
			return v.bail(errors.E(errors.FilesStillOpenForWrite, "remove "+oldDir))
		}
		if err := m.arch.Close(ctx); err != nil {
			return v.bail(errors.E("remove "+oldDir, err))
		}
		v.mounts = append(v.mounts[:i], v.mounts[i+1:]...)
		log.Debugf("vfs: unmounted %s (%d in search path)", oldDir, len(v.mounts))
		return nil
	}
	return v.bail(errors.E(errors.NotInSearchPath, "remove "+oldDir))
}

// SearchPath returns a snapshot of the mounted host paths, in resolution
// order.
func (v *VFS) SearchPath() []string {
	if !v.initialized {
		v.setError(errors.E(errors.NotInitialized, "searchPath"))
		return nil
	}
	dirs := make([]string, len(v.mounts))
	for i, m := range v.mounts {
		dirs[i] = m.dirName
	}
	return dirs
}

// resolve walks the search path and returns the first mount whose archiver
// holds name. A match that is a symbolic link is skipped unless symlinks
// are permitted, and the search continues with later mounts.
func (v *VFS) resolve(ctx context.Context, name string) (*mount, error) {
	for _, m := range v.mounts {
		if !m.arch.Exists(ctx, name) {
			continue
		}
		if !v.allowSymlinks && m.arch.IsSymlink(ctx, name) {
			continue
		}
		return m, nil
	}
	return nil, errors.E(errors.NotFound, name)
}
