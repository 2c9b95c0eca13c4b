// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command packfs mounts directories and archives into a virtual filesystem
// and inspects the result. It is both a debugging aid and a worked example
// of the library's surface.
//
// Usage:
//
//	packfs [flags] types
//	packfs [flags] -mount DIR[,DIR...] ls [LOGICAL-DIR]
//	packfs [flags] -mount DIR[,DIR...] cat LOGICAL-FILE
//	packfs [flags] -mount DIR[,DIR...] where LOGICAL-FILE
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grailbio/packfs/log"
	"github.com/grailbio/packfs/vfs"
	_ "github.com/grailbio/packfs/vfs/zipfs"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), `Usage:
%s [flags...] types | ls [DIR] | cat FILE | where FILE
`, os.Args[0])
		flag.PrintDefaults()
	}
	mountFlag := flag.String("mount", "", "comma-separated host paths (directories or archives) to mount, highest priority first")
	symlinksFlag := flag.Bool("follow-symlinks", false, "permit symbolic links inside mounts")
	matchFlag := flag.String("match", "", "glob pattern filtering ls output")
	log.AddFlags()
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()
	if err := vfs.Init(ctx, os.Args[0]); err != nil {
		log.Fatalf("init: %v", err)
	}
	defer func() {
		if err := vfs.Deinit(ctx); err != nil {
			log.Errorf("deinit: %v", err)
		}
	}()
	vfs.PermitSymlinks(*symlinksFlag)
	for _, dir := range splitMounts(*mountFlag) {
		if err := vfs.AddToSearchPath(ctx, dir, true); err != nil {
			log.Fatalf("mount %s: %v", dir, err)
		}
	}

	var err error
	switch cmd, rest := args[0], args[1:]; cmd {
	case "types":
		for _, info := range vfs.SupportedArchiveTypes() {
			fmt.Printf("%s\t%s\t%s\n", info.Extension, info.Description, info.URL)
		}
	case "ls":
		dir := ""
		if len(rest) > 0 {
			dir = rest[0]
		}
		err = ls(ctx, dir, *matchFlag)
	case "cat":
		if len(rest) != 1 {
			log.Fatalf("cat: exactly one file")
		}
		err = cat(ctx, rest[0])
	case "where":
		if len(rest) != 1 {
			log.Fatalf("where: exactly one file")
		}
		var real string
		if real, err = vfs.RealDir(ctx, rest[0]); err == nil {
			fmt.Println(real)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v (last error: %s)", args[0], err, vfs.LastError())
	}
}

func splitMounts(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func ls(ctx context.Context, dir, pattern string) error {
	var (
		names []string
		err   error
	)
	if pattern != "" {
		names, err = vfs.Default().EnumerateMatch(ctx, dir, pattern)
	} else {
		names, err = vfs.Enumerate(ctx, dir)
	}
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func cat(ctx context.Context, name string) error {
	f, err := vfs.OpenRead(ctx, name)
	if err != nil {
		return err
	}
	defer f.Close(ctx) // nolint: errcheck
	_, err = io.Copy(os.Stdout, f)
	return err
}
