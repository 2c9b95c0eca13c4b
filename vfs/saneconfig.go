// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"context"
	"sort"

	"github.com/grailbio/packfs/errors"
)

// SetSaneConfig sets up sane default paths. The write dir becomes
// "<userdir>/.<appName>", created if it doesn't exist; the leading period
// hides the directory on Unix systems. The search path becomes:
//
//   - the write dir
//   - the write dir's appName subdirectory (created if it doesn't exist)
//   - the base dir
//   - the base dir's appName subdirectory, if it exists
//   - every detected CD-ROM, and its appName subdirectory (optional)
//
// These directories are then searched for files ending in "."+archiveExt
// (compared case-insensitively); valid archives among them join the search
// path too, in alphabetical order regardless of which directory they were
// found in, prepended when archivesFirst is set and appended otherwise. An
// empty archiveExt skips archive discovery.
//
// Everything here can be accomplished through the individual operations;
// this helper just composes them, and more mounts can be added afterwards.
func (v *VFS) SetSaneConfig(ctx context.Context, appName, archiveExt string, includeCdRoms, archivesFirst bool) error {
	if !v.initialized {
		return v.bail(errors.E(errors.NotInitialized, "setSaneConfig"))
	}
	if appName == "" {
		return v.bail(errors.E(errors.InvalidArgument, "setSaneConfig"))
	}
	sep := v.plat.PathSeparator()

	writeDir := v.UserDir() + sep + "." + appName
	if err := v.SetWriteDir(ctx, writeDir); err != nil {
		return err
	}

	// Write-dir related entries. The appName subdirectory may legitimately
	// fail to exist; those failures are ignored.
	if err := v.AddToSearchPath(ctx, writeDir, true); err != nil {
		return err
	}
	_ = v.Mkdir(ctx, appName)
	_ = v.AddToSearchPath(ctx, writeDir+sep+appName, true)

	// Base-dir entries.
	_ = v.AddToSearchPath(ctx, v.baseDir, true)
	_ = v.AddToSearchPath(ctx, v.baseDir+sep+appName, true)

	if includeCdRoms {
		cds, err := v.CdRomDirs()
		if err == nil {
			for _, cd := range cds {
				_ = v.AddToSearchPath(ctx, cd, true)
				_ = v.AddToSearchPath(ctx, cd+sep+appName, true)
			}
		}
	}

	if archiveExt != "" {
		names, err := v.Enumerate(ctx, "")
		if err != nil {
			return err
		}
		sort.Strings(names)
		var archives []string
		for _, name := range names {
			if !v.hasExtension(name, archiveExt) {
				continue
			}
			dir, err := v.RealDir(ctx, name)
			if err != nil {
				continue
			}
			archives = append(archives, dir+sep+name)
		}
		for _, path := range archives {
			_ = v.AddToSearchPath(ctx, path, !archivesFirst)
		}
	}
	return nil
}
