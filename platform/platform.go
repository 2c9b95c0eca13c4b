// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package platform abstracts the host-specific services consumed by the
// virtual filesystem: execution-context identity, path separators, base and
// user directory discovery, CD-ROM discovery, case-insensitive comparison,
// and symlink probing. The Host implementation serves regular use; tests
// substitute their own Platform to pin behavior.
package platform

import (
	"bytes"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

// Platform supplies the host services the virtual filesystem depends on.
// Implementations must be safe for concurrent use.
type Platform interface {
	// ThreadID identifies the calling execution context. Slots of the
	// last-error channel are keyed by this value.
	ThreadID() int

	// PathSeparator returns the host's directory separator.
	PathSeparator() string

	// BaseDir derives the directory the application was started from, given
	// its argv[0].
	BaseDir(argv0 string) (string, error)

	// UserDir returns the host's notion of the current user's home
	// directory, or "" if the host has none.
	UserDir() (string, error)

	// UserName returns the current user's login name, or "" if unknown.
	UserName() (string, error)

	// CdRomDirs enumerates mount points of detected optical media. The scan
	// may block while media is accessed.
	CdRomDirs() ([]string, error)

	// Stricmp compares a and b ignoring case, returning -1, 0 or 1 in the
	// manner of strings.Compare.
	Stricmp(a, b string) int

	// IsSymlink reports whether path names a symbolic link on the host.
	IsSymlink(path string) (bool, error)
}

// Host is the Platform backed by the operating system the process runs on.
var Host Platform = hostPlatform{}

type hostPlatform struct{}

// ThreadID returns the current goroutine's id. A goroutine is the execution
// context a Go caller means by "this thread"; pinning to OS threads would
// tie error slots to whichever thread the scheduler happened to pick.
func (hostPlatform) ThreadID() int {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	// The stack header is "goroutine N [status]:".
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.Atoi(string(fields[1]))
	if err != nil {
		return 0
	}
	return id
}

func (hostPlatform) PathSeparator() string {
	return string(os.PathSeparator)
}

// BaseDir resolves the directory holding the running binary. An argv0 with a
// path component wins; otherwise the binary was found on $PATH and the
// executable's real location is used.
func (hostPlatform) BaseDir(argv0 string) (string, error) {
	if argv0 != "" && strings.ContainsRune(argv0, os.PathSeparator) {
		abs, err := filepath.Abs(argv0)
		if err != nil {
			return "", errors.Wrapf(err, "basedir %s", argv0)
		}
		return filepath.Dir(abs), nil
	}
	exe, err := os.Executable()
	if err == nil {
		return filepath.Dir(exe), nil
	}
	wd, werr := os.Getwd()
	if werr != nil {
		return "", errors.Wrapf(err, "basedir %s", argv0)
	}
	return wd, nil
}

func (hostPlatform) UserDir() (string, error) {
	dir, err := homedir.Dir()
	if err != nil {
		return "", errors.Wrap(err, "userdir")
	}
	return dir, nil
}

func (hostPlatform) UserName() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", errors.Wrap(err, "username")
	}
	return u.Username, nil
}

func (hostPlatform) CdRomDirs() ([]string, error) {
	return cdRomDirs()
}

func (hostPlatform) Stricmp(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func (hostPlatform) IsSymlink(path string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return info.Mode()&os.ModeSymlink != 0, nil
}
