// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

//go:build !linux
// +build !linux

package platform

// cdRomDirs reports no media on hosts without a mount-table scan.
func cdRomDirs() ([]string, error) {
	return nil, nil
}
