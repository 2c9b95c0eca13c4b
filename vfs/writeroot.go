// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"context"
	"os"
	"sync/atomic"

	"github.com/grailbio/packfs/errors"
)

// The write root is the single host directory that receives every
// modification. Write operations never go through archives: the façade
// translates the logical path and drives the directory backend rooted at
// the write dir directly.

// SetWriteDir establishes newDir as the write root, creating it (and
// missing intermediates) if needed. An empty newDir disables writing.
// Changing the write root while writable handles are open is refused.
func (v *VFS) SetWriteDir(ctx context.Context, newDir string) error {
	if !v.initialized {
		return v.bail(errors.E(errors.NotInitialized, "setWriteDir"))
	}
	if atomic.LoadInt32(&v.openWriteCount) > 0 {
		return v.bail(errors.E(errors.FilesStillOpenForWrite, "setWriteDir"))
	}
	if newDir == "" {
		v.writeDir = ""
		v.writeArch = nil
		return nil
	}
	if err := os.MkdirAll(newDir, 0777); err != nil {
		return v.bail(errors.E(errors.NoDirCreate, "setWriteDir "+newDir, err))
	}
	arch, err := DirFormat.OpenArchive(ctx, newDir, v.allowSymlinks)
	if err != nil {
		return v.bail(err)
	}
	v.writeDir = newDir
	v.writeArch = arch
	return nil
}

// WriteDir returns the current write root, or "" when writing is disabled.
func (v *VFS) WriteDir() string {
	return v.writeDir
}

// writeBackend validates name and returns the write root's archiver, or the
// error to surface when writing is not possible.
func (v *VFS) writeBackend(op, name string) (Archiver, error) {
	if !v.initialized {
		return nil, errors.E(errors.NotInitialized, op+" "+name)
	}
	if v.writeArch == nil {
		return nil, errors.E(errors.NoWriteDir, op+" "+name)
	}
	if err := ValidatePath(name); err != nil {
		return nil, err
	}
	return v.writeArch, nil
}
