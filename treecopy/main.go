// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/SMNahidEmon/DualBootPatcher/internal/exe"
	"github.com/SMNahidEmon/DualBootPatcher/internal/logger"
	"github.com/SMNahidEmon/DualBootPatcher/internal/safecopy"
	"github.com/moby/sys/mountinfo"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	app = kingpin.New("treecopy", "Copies a file or directory tree, preserving special files and metadata")

	recursive      = app.Flag("recursive", "Copy the source directory tree recursively.").Short('r').Bool()
	preserve       = app.Flag("preserve", "Copy ownership and permission bits.").Short('p').Bool()
	xattrs         = app.Flag("xattrs", "Copy extended attributes.").Bool()
	followSymlinks = app.Flag("follow-symlinks", "Copy the file a symlink points at instead of the link. Single file copies only.").Bool()
	contentsOnly   = app.Flag("contents-only", "Copy the contents of the source directory rather than the directory itself.").Bool()
	logFlags       = exe.SetupLogFlags(app)

	source = app.Arg("source", "Path to copy from.").Required().String()
	target = app.Arg("target", "Path to copy to.").Required().String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	logger.InitBestEffort(logFlags)

	err := copyTree()
	if err != nil {
		log.Fatalf("copy failed:\n%v", err)
	}
}

func copyTree() error {
	opts := safecopy.Options{
		FollowSymlinks:  *followSymlinks,
		CopyAttributes:  *preserve,
		CopyXattrs:      *xattrs,
		ExcludeTopLevel: *contentsOnly,
	}

	if !*recursive {
		return safecopy.CopyFile(*source, *target, opts)
	}

	warnExcludedMounts(*source)

	return safecopy.CopyDir(*source, *target, opts)
}

// The recursive walk never descends across a mount boundary, so report the
// mounts that will be excluded up front.
func warnExcludedMounts(source string) {
	source = filepath.Clean(source)

	mounts, err := mountinfo.GetMounts(mountinfo.PrefixFilter(source))
	if err != nil {
		logger.Log.Debugf("Failed to read mount info: %v", err)
		return
	}

	for _, mount := range mounts {
		if mount.Mountpoint == source {
			continue
		}
		logger.Log.Warnf("(%s): Mounted filesystem will not be copied", mount.Mountpoint)
	}
}
