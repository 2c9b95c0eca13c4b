// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package vfs_test

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grailbio/packfs/errors"
	"github.com/grailbio/packfs/platform"
	"github.com/grailbio/packfs/vfs"
	_ "github.com/grailbio/packfs/vfs/zipfs"
)

func initFS(t *testing.T) (*vfs.VFS, context.Context) {
	t.Helper()
	v := vfs.New(nil)
	ctx := context.Background()
	require.NoError(t, v.Init(ctx, filepath.Join(t.TempDir(), "bin", "app")))
	t.Cleanup(func() { _ = v.Deinit(ctx) })
	return v, ctx
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0777))
		require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	}
	return dir
}

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "assets.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

// S1: reading a missing file fails and records a consumable error.
func TestOpenReadMissing(t *testing.T) {
	v, ctx := initFS(t)
	require.NoError(t, v.AddToSearchPath(ctx, t.TempDir(), true))

	f, err := v.OpenRead(ctx, "missing")
	assert.Nil(t, f)
	require.Error(t, err)
	assert.True(t, errors.Is(errors.NotFound, err))
	assert.NotEmpty(t, v.LastError())
	assert.Empty(t, v.LastError())
}

// S2: write round-trip through the write root, with tell/eof postconditions.
func TestWriteReadRoundTrip(t *testing.T) {
	v, ctx := initFS(t)
	wd := t.TempDir()
	require.NoError(t, v.SetWriteDir(ctx, wd))
	require.NoError(t, v.AddToSearchPath(ctx, wd, true))

	require.NoError(t, v.Mkdir(ctx, "a/b"))
	f, err := v.OpenWrite(ctx, "a/b/x")
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Close(ctx))

	r, err := v.OpenRead(ctx, "a/b/x")
	require.NoError(t, err)
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
	pos, err := r.Tell()
	require.NoError(t, err)
	assert.Equal(t, int64(5), pos)
	assert.True(t, r.EOF())
	require.NoError(t, r.Close(ctx))

	// Invariant 5 continued: delete, then the file is gone.
	require.NoError(t, v.Delete(ctx, "a/b/x"))
	_, err = v.OpenRead(ctx, "a/b/x")
	require.Error(t, err)
	assert.True(t, errors.Is(errors.NotFound, err))
}

// S3: the first mount in search order shadows later ones, and RealDir
// reports the winning mount.
func TestShadowingAndRealDir(t *testing.T) {
	v, ctx := initFS(t)
	ro := writeTree(t, map[string]string{"foo": "base"})
	over := writeTree(t, map[string]string{"foo": "override"})
	require.NoError(t, v.AddToSearchPath(ctx, ro, true))
	require.NoError(t, v.AddToSearchPath(ctx, over, false))

	f, err := v.OpenRead(ctx, "foo")
	require.NoError(t, err)
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "override", string(content))
	require.NoError(t, f.Close(ctx))

	real, err := v.RealDir(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, over, real)
}

// S4 / invariant 6: enumeration interpolates mounts and deduplicates,
// preserving first occurrence.
func TestEnumerateInterpolation(t *testing.T) {
	v, ctx := initFS(t)
	d1 := writeTree(t, map[string]string{"a": "", "b": ""})
	d2 := writeTree(t, map[string]string{"b": "", "c": ""})
	require.NoError(t, v.AddToSearchPath(ctx, d1, true))
	require.NoError(t, v.AddToSearchPath(ctx, d2, true))

	names, err := v.Enumerate(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, deep.Equal([]string{"a", "b", "c"}, names))
}

func TestEnumerateSubdirAcrossMounts(t *testing.T) {
	v, ctx := initFS(t)
	d1 := writeTree(t, map[string]string{"savegames/x.sav": "", "savegames/y.sav": ""})
	d2 := writeTree(t, map[string]string{"savegames/w.sav": ""})
	require.NoError(t, v.AddToSearchPath(ctx, d1, true))
	require.NoError(t, v.AddToSearchPath(ctx, d2, true))

	names, err := v.Enumerate(ctx, "savegames")
	require.NoError(t, err)
	assert.Nil(t, deep.Equal([]string{"x.sav", "y.sav", "w.sav"}, names))
}

func TestEnumerateMatch(t *testing.T) {
	v, ctx := initFS(t)
	d := writeTree(t, map[string]string{"x.sav": "", "y.sav": "", "readme.txt": ""})
	require.NoError(t, v.AddToSearchPath(ctx, d, true))

	names, err := v.EnumerateMatch(ctx, "", "*.sav")
	require.NoError(t, err)
	assert.Nil(t, deep.Equal([]string{"x.sav", "y.sav"}, names))

	_, err = v.EnumerateMatch(ctx, "", "[bad")
	require.Error(t, err)
	assert.True(t, errors.Is(errors.InvalidArgument, err))
}

// S5: symlinks are invisible until permitted.
func TestSymlinkPolicy(t *testing.T) {
	v, ctx := initFS(t)
	d := writeTree(t, map[string]string{"target": "linked content"})
	require.NoError(t, os.Symlink(filepath.Join(d, "target"), filepath.Join(d, "link")))
	require.NoError(t, v.AddToSearchPath(ctx, d, true))

	_, err := v.OpenRead(ctx, "link")
	require.Error(t, err)
	assert.True(t, errors.Is(errors.NotFound, err))
	assert.False(t, v.Exists(ctx, "link"))

	v.PermitSymlinks(true)
	f, err := v.OpenRead(ctx, "link")
	require.NoError(t, err)
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "linked content", string(content))
	require.NoError(t, f.Close(ctx))
	assert.True(t, v.IsSymbolicLink(ctx, "link"))
}

// S6: writing without a write root fails with NoWriteDir.
func TestOpenWriteWithoutWriteDir(t *testing.T) {
	v, ctx := initFS(t)
	f, err := v.OpenWrite(ctx, "x")
	assert.Nil(t, f)
	require.Error(t, err)
	assert.True(t, errors.Is(errors.NoWriteDir, err))
	assert.Contains(t, v.LastError(), "no write directory set")
}

// Invariant 9: double init fails.
func TestDoubleInit(t *testing.T) {
	v, ctx := initFS(t)
	err := v.Init(ctx, "/app/bin/app")
	require.Error(t, err)
	assert.True(t, errors.Is(errors.IsInitialized, err))
}

func TestOpsRequireInit(t *testing.T) {
	v := vfs.New(nil)
	ctx := context.Background()
	_, err := v.OpenRead(ctx, "x")
	assert.True(t, errors.Is(errors.NotInitialized, err))
	_, err = v.Enumerate(ctx, "")
	assert.True(t, errors.Is(errors.NotInitialized, err))
	err = v.Deinit(ctx)
	assert.True(t, errors.Is(errors.NotInitialized, err))
}

// Invariant 10: the write root cannot change under an open writer.
func TestSetWriteDirWithOpenWriter(t *testing.T) {
	v, ctx := initFS(t)
	require.NoError(t, v.SetWriteDir(ctx, t.TempDir()))

	f, err := v.OpenWrite(ctx, "pending")
	require.NoError(t, err)

	err = v.SetWriteDir(ctx, t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(errors.FilesStillOpenForWrite, err))

	require.NoError(t, f.Close(ctx))
	require.NoError(t, v.SetWriteDir(ctx, t.TempDir()))
}

func TestDuplicateWriterRefused(t *testing.T) {
	v, ctx := initFS(t)
	require.NoError(t, v.SetWriteDir(ctx, t.TempDir()))

	f, err := v.OpenWrite(ctx, "same")
	require.NoError(t, err)
	_, err = v.OpenWrite(ctx, "same")
	require.Error(t, err)
	assert.True(t, errors.Is(errors.FilesStillOpenForWrite, err))
	require.NoError(t, f.Close(ctx))
}

// Invalid logical paths are rejected uniformly (invariant 1).
func TestInvalidPathsRejected(t *testing.T) {
	v, ctx := initFS(t)
	require.NoError(t, v.SetWriteDir(ctx, t.TempDir()))
	for _, path := range []string{"../up", "a/../b", "a/./b", `a\b`, "c:x", "/abs"} {
		_, err := v.OpenRead(ctx, path)
		assert.True(t, errors.Is(errors.InvalidArgument, err), "openRead %q: %v", path, err)
		_, err = v.OpenWrite(ctx, path)
		assert.True(t, errors.Is(errors.InvalidArgument, err), "openWrite %q: %v", path, err)
		err = v.Mkdir(ctx, path)
		assert.True(t, errors.Is(errors.InvalidArgument, err), "mkdir %q: %v", path, err)
		err = v.Delete(ctx, path)
		assert.True(t, errors.Is(errors.InvalidArgument, err), "delete %q: %v", path, err)
	}
}

func TestDeinitClosesHandles(t *testing.T) {
	v := vfs.New(nil)
	ctx := context.Background()
	require.NoError(t, v.Init(ctx, filepath.Join(t.TempDir(), "app")))
	d := writeTree(t, map[string]string{"f": "x"})
	require.NoError(t, v.AddToSearchPath(ctx, d, true))
	f, err := v.OpenRead(ctx, "f")
	require.NoError(t, err)

	require.NoError(t, v.Deinit(ctx))
	// The handle was force-closed; further reads hit the closed file.
	_, err = f.Read(make([]byte, 1))
	require.Error(t, err)

	// The instance is reusable after a fresh Init.
	require.NoError(t, v.Init(ctx, filepath.Join(t.TempDir(), "app")))
	assert.Empty(t, v.SearchPath())
	require.NoError(t, v.Deinit(ctx))
}

// A ZIP mount resolves and shadows like a directory mount.
func TestZipMount(t *testing.T) {
	v, ctx := initFS(t)
	archive := writeZip(t, map[string]string{
		"foo":            "zipped foo",
		"maps/level1":    "map data",
		"maps/level2":    "more map data",
		"sounds/hit.ogg": "pcm",
	})
	dir := writeTree(t, map[string]string{"foo": "plain foo"})
	require.NoError(t, v.AddToSearchPath(ctx, archive, true))
	require.NoError(t, v.AddToSearchPath(ctx, dir, true))

	// The archive was mounted first, so it wins.
	f, err := v.OpenRead(ctx, "foo")
	require.NoError(t, err)
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "zipped foo", string(content))
	require.NoError(t, f.Close(ctx))

	real, err := v.RealDir(ctx, "foo")
	require.NoError(t, err)
	assert.Equal(t, archive, real)

	assert.True(t, v.IsDirectory(ctx, "maps"))
	names, err := v.Enumerate(ctx, "maps")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"level1", "level2"}, names)

	// Archives reject writes wholesale: the write root never points at one.
	err = v.Mkdir(ctx, "maps/new")
	require.Error(t, err)
	assert.True(t, errors.Is(errors.NoWriteDir, err))
}

func TestSupportedArchiveTypes(t *testing.T) {
	infos := vfs.SupportedArchiveTypes()
	require.NotEmpty(t, infos)
	var exts []string
	for _, info := range infos {
		exts = append(exts, info.Extension)
	}
	assert.Contains(t, exts, "zip")
}

func TestLinkedVersion(t *testing.T) {
	ver := vfs.LinkedVersion()
	assert.Equal(t, 0, ver.Major)
}

// fakePlatform drives the UserDir fallback chain deterministically.
type fakePlatform struct {
	platform.Platform
	userDir  string
	userName string
}

func (p fakePlatform) UserDir() (string, error)  { return p.userDir, nil }
func (p fakePlatform) UserName() (string, error) { return p.userName, nil }

func TestUserDirFallback(t *testing.T) {
	ctx := context.Background()

	// Platform user dir wins when present.
	v := vfs.New(fakePlatform{platform.Host, "/home/gamer", "gamer"})
	require.NoError(t, v.Init(ctx, "/app/bin/app"))
	assert.Equal(t, "/home/gamer", v.UserDir())
	require.NoError(t, v.Deinit(ctx))

	// Without one, $HOME is next.
	t.Setenv("HOME", "/home/fromenv")
	v = vfs.New(fakePlatform{platform.Host, "", "gamer"})
	require.NoError(t, v.Init(ctx, "/app/bin/app"))
	assert.Equal(t, "/home/fromenv", v.UserDir())
	require.NoError(t, v.Deinit(ctx))

	// With neither, a users/<name> directory under the base dir.
	t.Setenv("HOME", "")
	v = vfs.New(fakePlatform{platform.Host, "", "gamer"})
	require.NoError(t, v.Init(ctx, "/app/bin/app"))
	sep := string(os.PathSeparator)
	assert.Equal(t, "/app/bin"+sep+"users"+sep+"gamer", v.UserDir())
	require.NoError(t, v.Deinit(ctx))
}

func TestBaseDir(t *testing.T) {
	v, _ := initFS(t)
	assert.NotEmpty(t, v.BaseDir())
	assert.True(t, filepath.IsAbs(v.BaseDir()))
}

func TestDefaultInstance(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, vfs.Init(ctx, filepath.Join(t.TempDir(), "app")))
	defer func() { require.NoError(t, vfs.Deinit(ctx)) }()

	d := writeTree(t, map[string]string{"hello.txt": "hi"})
	require.NoError(t, vfs.AddToSearchPath(ctx, d, true))
	f, err := vfs.OpenRead(ctx, "hello.txt")
	require.NoError(t, err)
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(content))
	require.NoError(t, f.Close(ctx))
	assert.Equal(t, "", vfs.LastError())
}
