// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"strings"

	"github.com/grailbio/packfs/errors"
)

// Logical paths are '/'-separated, relative, case-sensitive names in the
// virtual namespace. The empty path names the root directory.

// ValidatePath checks that path is a well-formed logical path: no host
// separators or drive markers, no absolute prefix, and no empty, "." or
// ".." components. Validation up front is what guarantees that translated
// host paths cannot escape their root.
func ValidatePath(path string) error {
	if path == "" {
		return nil
	}
	if strings.ContainsAny(path, "\\:") {
		return errors.E(errors.InvalidArgument, "path "+path)
	}
	if path[0] == '/' {
		return errors.E(errors.InvalidArgument, "path "+path+" is absolute")
	}
	for _, comp := range strings.Split(path, "/") {
		switch comp {
		case "", ".", "..":
			return errors.E(errors.InvalidArgument, "path "+path)
		}
	}
	return nil
}

// SplitPath returns the components of a logical path, in order. The empty
// path has no components.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// NativePath translates a validated logical path into host-native notation
// under root, substituting the host separator for each '/'. Separators of
// any byte length are handled uniformly.
func NativePath(root, sep, path string) string {
	comps := SplitPath(path)
	if len(comps) == 0 {
		return root
	}
	var b strings.Builder
	b.WriteString(root)
	for _, comp := range comps {
		b.WriteString(sep)
		b.WriteString(comp)
	}
	return b.String()
}
