// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package platform

import (
	"bufio"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Optical filesystem types as they appear in /proc/mounts.
var cdRomFsTypes = map[string]bool{
	"iso9660": true,
	"udf":     true,
}

// cdRomDirs scans the mount table for mounted optical media. Only mount
// points the caller can actually read are reported.
func cdRomDirs() ([]string, error) {
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return nil, errors.Wrap(err, "cdrom scan")
	}
	defer f.Close() // nolint: errcheck

	var dirs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		// Each line is "device mountpoint fstype options dump pass".
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || !cdRomFsTypes[fields[2]] {
			continue
		}
		mnt := unescapeMount(fields[1])
		if unix.Access(mnt, unix.R_OK) != nil {
			continue
		}
		dirs = append(dirs, mnt)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "cdrom scan")
	}
	return dirs, nil
}

// unescapeMount decodes the octal escapes the kernel uses for whitespace in
// mount points ("\040" for space, and friends).
func unescapeMount(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			c := (s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0')
			b.WriteByte(c)
			i += 3
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
