// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"fmt"
	"sync"
)

// The format registry. Archive backends register themselves at program
// start, typically from an init function in their own package:
//
//	import _ "github.com/grailbio/packfs/vfs/zipfs"
//
// Registration order is probe order: when a mount is added, the first
// registered format whose IsArchive claims the host path becomes its
// backend. The plain-directory backend is not registered; it is the last
// resort for host paths no format claims.

var (
	regMu   sync.RWMutex
	formats []Format
)

// RegisterFormat appends an archive format to the registry.
// RegisterFormat should be called when the process starts, before any
// search-path mutation.
//
// REQUIRES: no registered format already uses the same extension.
func RegisterFormat(f Format) {
	if f == nil {
		panic("vfs: nil format")
	}
	ext := f.Info().Extension
	regMu.Lock()
	defer regMu.Unlock()
	for _, existing := range formats {
		if existing.Info().Extension == ext {
			panic(fmt.Sprintf("register %s: archive format already registered", ext))
		}
	}
	formats = append(formats, f)
}

// registeredFormats returns a snapshot of the registry, in probe order.
func registeredFormats() []Format {
	regMu.RLock()
	defer regMu.RUnlock()
	return append([]Format(nil), formats...)
}

// SupportedArchiveTypes returns the descriptors of every registered archive
// format, in probe order.
func SupportedArchiveTypes() []ArchiveInfo {
	regMu.RLock()
	defer regMu.RUnlock()
	infos := make([]ArchiveInfo, len(formats))
	for i, f := range formats {
		infos[i] = f.Info()
	}
	return infos
}
