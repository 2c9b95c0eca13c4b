// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs

import (
	"strings"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/packfs/errors"
)

func TestValidatePath(t *testing.T) {
	for _, path := range []string{
		"",
		"foo",
		"foo/bar.dat",
		"a/b/c/d",
		"weird name/with spaces",
		"ütf8/bytes/päss/through",
		"...", // three dots is a legal component
		"..hidden/..also",
	} {
		assert.NoError(t, ValidatePath(path), "path %q", path)
	}
	for _, path := range []string{
		"/abs",
		"a//b",
		"a/",
		"/",
		".",
		"..",
		"a/./b",
		"a/../b",
		"../escape",
		"a\\b",
		"c:/windows",
		"a/b:c",
	} {
		err := ValidatePath(path)
		require.Error(t, err, "path %q", path)
		assert.True(t, errors.Is(errors.InvalidArgument, err), "path %q: %v", path, err)
	}
}

// Random component strings must never panic the validator, and anything the
// validator accepts must split back into non-empty, dot-free components.
func TestValidatePathFuzz(t *testing.T) {
	f := fuzz.New().NumElements(1, 6)
	for i := 0; i < 1000; i++ {
		var comps []string
		f.Fuzz(&comps)
		path := strings.Join(comps, "/")
		if ValidatePath(path) != nil {
			continue
		}
		for _, comp := range SplitPath(path) {
			assert.NotEmpty(t, comp)
			assert.NotEqual(t, ".", comp)
			assert.NotEqual(t, "..", comp)
			assert.NotContains(t, comp, "\\")
			assert.NotContains(t, comp, ":")
		}
	}
}

func TestSplitPath(t *testing.T) {
	assert.Nil(t, SplitPath(""))
	assert.Equal(t, []string{"foo"}, SplitPath("foo"))
	assert.Equal(t, []string{"a", "b", "c"}, SplitPath("a/b/c"))
}

func TestNativePath(t *testing.T) {
	assert.Equal(t, "/root", NativePath("/root", "/", ""))
	assert.Equal(t, "/root/a/b", NativePath("/root", "/", "a/b"))
	// Multi-byte separators substitute uniformly.
	assert.Equal(t, `C:\game::a::b`, NativePath(`C:\game`, "::", "a/b"))
}
