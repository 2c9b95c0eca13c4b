// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import "context"

// The process-wide default instance. Most applications want exactly one
// virtual filesystem for their whole lifetime; these wrappers give them the
// traditional init-once surface while tests and embedders construct their
// own instances with New.

var std = New(nil)

// Default returns the process-wide instance the package-level functions
// operate on.
func Default() *VFS { return std }

// Init initializes the default instance. See VFS.Init.
func Init(ctx context.Context, argv0 string) error { return std.Init(ctx, argv0) }

// Deinit tears down the default instance. See VFS.Deinit.
func Deinit(ctx context.Context) error { return std.Deinit(ctx) }

// AddToSearchPath mounts a directory or archive on the default instance.
// See VFS.AddToSearchPath.
func AddToSearchPath(ctx context.Context, dir string, appendToPath bool) error {
	return std.AddToSearchPath(ctx, dir, appendToPath)
}

// RemoveFromSearchPath unmounts from the default instance. See
// VFS.RemoveFromSearchPath.
func RemoveFromSearchPath(ctx context.Context, dir string) error {
	return std.RemoveFromSearchPath(ctx, dir)
}

// SearchPath lists the default instance's mounts. See VFS.SearchPath.
func SearchPath() []string { return std.SearchPath() }

// SetWriteDir sets the default instance's write root. See VFS.SetWriteDir.
func SetWriteDir(ctx context.Context, dir string) error { return std.SetWriteDir(ctx, dir) }

// WriteDir returns the default instance's write root. See VFS.WriteDir.
func WriteDir() string { return std.WriteDir() }

// OpenRead opens a file for reading on the default instance. See
// VFS.OpenRead.
func OpenRead(ctx context.Context, name string) (*File, error) { return std.OpenRead(ctx, name) }

// OpenWrite opens a file for writing on the default instance. See
// VFS.OpenWrite.
func OpenWrite(ctx context.Context, name string) (*File, error) { return std.OpenWrite(ctx, name) }

// OpenAppend opens a file for appending on the default instance. See
// VFS.OpenAppend.
func OpenAppend(ctx context.Context, name string) (*File, error) { return std.OpenAppend(ctx, name) }

// Mkdir creates a directory under the default instance's write root. See
// VFS.Mkdir.
func Mkdir(ctx context.Context, name string) error { return std.Mkdir(ctx, name) }

// Delete removes a file or empty directory under the default instance's
// write root. See VFS.Delete.
func Delete(ctx context.Context, name string) error { return std.Delete(ctx, name) }

// Enumerate lists a logical directory across the default instance's search
// path. See VFS.Enumerate.
func Enumerate(ctx context.Context, dir string) ([]string, error) { return std.Enumerate(ctx, dir) }

// RealDir locates the mount containing a file on the default instance. See
// VFS.RealDir.
func RealDir(ctx context.Context, name string) (string, error) { return std.RealDir(ctx, name) }

// PermitSymlinks flips the default instance's symlink policy. See
// VFS.PermitSymlinks.
func PermitSymlinks(allow bool) { std.PermitSymlinks(allow) }

// LastError consumes the calling thread's last error on the default
// instance. See VFS.LastError.
func LastError() string { return std.LastError() }

// BaseDir returns the default instance's base directory. See VFS.BaseDir.
func BaseDir() string { return std.BaseDir() }

// UserDir returns the default instance's user directory. See VFS.UserDir.
func UserDir() string { return std.UserDir() }

// SetSaneConfig configures the default instance with sane defaults. See
// VFS.SetSaneConfig.
func SetSaneConfig(ctx context.Context, appName, archiveExt string, includeCdRoms, archivesFirst bool) error {
	return std.SetSaneConfig(ctx, appName, archiveExt, includeCdRoms, archivesFirst)
}
