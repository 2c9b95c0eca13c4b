// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/grailbio/packfs/errors"
)

func TestLastErrorDestructive(t *testing.T) {
	v := New(nil)
	v.setError(errors.E(errors.NoWriteDir, "openWrite x"))
	msg := v.LastError()
	assert.Contains(t, msg, "no write directory set")
	// A second read comes back empty.
	assert.Equal(t, "", v.LastError())
}

func TestLastErrorEmptyWithoutFailure(t *testing.T) {
	v := New(nil)
	assert.Equal(t, "", v.LastError())
}

func TestLastErrorOverwrite(t *testing.T) {
	v := New(nil)
	v.setError(errors.E(errors.NotFound, "first"))
	v.setError(errors.E(errors.PastEOF, "second"))
	assert.Contains(t, v.LastError(), "seek past end of file")
	assert.Equal(t, "", v.LastError())
}

func TestLastErrorTruncation(t *testing.T) {
	v := New(nil)
	long := strings.Repeat("x", 200)
	v.setError(errors.New(long))
	got := v.LastError()
	assert.Len(t, got, maxErrorLen)
	assert.Equal(t, strings.Repeat("x", maxErrorLen), got)
}

// Errors are local to the goroutine that produced them: a failure on one
// goroutine is invisible to every other.
func TestLastErrorPerThread(t *testing.T) {
	v := New(nil)
	v.setError(errors.E(errors.NotFound, "main-error"))

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			if got := v.LastError(); got != "" {
				t.Errorf("stole main goroutine's error: %q", got)
			}
			v.setError(errors.E(errors.NotSupported, "worker-error"))
			if got := v.LastError(); !strings.Contains(got, "operation not supported") {
				t.Errorf("lost own error, got %q", got)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// The main goroutine's slot survived the workers untouched.
	assert.Contains(t, v.LastError(), "file not found")
}
