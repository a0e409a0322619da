// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package safecopy copies files and directory trees while faithfully
// reproducing file type, contents, ownership, permission bits, and extended
// attributes, for every POSIX file type.
//
// Everything operates on paths, so it is subject to race conditions if the
// source or target trees are modified concurrently. Directory copy
// operations will not cross mountpoint boundaries.
package safecopy

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

const initialLinkBufferSize = 128

// Options controls how entries are copied.
type Options struct {
	// FollowSymlinks copies the entry a symlink points at instead of the
	// link itself. Not allowed for recursive copies.
	FollowSymlinks bool

	// CopyAttributes propagates ownership and permission bits, including
	// setuid/setgid/sticky. Permission bits are never altered on symlinks.
	CopyAttributes bool

	// CopyXattrs propagates extended attributes.
	CopyXattrs bool

	// ExcludeTopLevel copies the contents of the source directory directly
	// into the target instead of placing them under the source directory's
	// own name.
	ExcludeTopLevel bool
}

// CopyFile copies exactly one filesystem entry from source to target
// according to the entry's type. Any pre-existing entry at target is
// removed first. Directories and sockets cannot be copied this way.
func CopyFile(source string, target string, opts Options) error {
	return withZeroUmask(func() error {
		return copyFile(source, target, opts)
	})
}

func copyFile(source string, target string, opts Options) error {
	err := removeExisting(target)
	if err != nil {
		return err
	}

	var st unix.Stat_t
	if opts.FollowSymlinks {
		err = unix.Stat(source, &st)
	} else {
		err = unix.Lstat(source, &st)
	}
	if err != nil {
		return fmt.Errorf("failed to stat (%s):\n%w", source, err)
	}

	switch kindOfMode(st.Mode) {
	case KindRegular:
		err = copyDataExclusive(source, target)
		if err != nil {
			return err
		}

	case KindSymlink:
		// Only reachable when not following links: with FollowSymlinks
		// set, Stat already resolved to the link's target.
		linkTarget, err := readLinkTarget(source)
		if err != nil {
			return fmt.Errorf("failed to read symlink (%s):\n%w", source, err)
		}

		err = os.Symlink(linkTarget, target)
		if err != nil {
			return fmt.Errorf("failed to create symlink (%s):\n%w", target, err)
		}

	case KindBlockDevice:
		err = unix.Mknod(target, unix.S_IFBLK|0o700, int(st.Rdev))
		if err != nil {
			return fmt.Errorf("failed to create block device (%s):\n%w", target, err)
		}

	case KindCharDevice:
		err = unix.Mknod(target, unix.S_IFCHR|0o700, int(st.Rdev))
		if err != nil {
			return fmt.Errorf("failed to create character device (%s):\n%w", target, err)
		}

	case KindFifo:
		err = unix.Mkfifo(target, 0o700)
		if err != nil {
			return fmt.Errorf("failed to create FIFO pipe (%s):\n%w", target, err)
		}

	case KindSocket:
		return fmt.Errorf("cannot copy socket (%s)", source)

	case KindDirectory:
		return fmt.Errorf("cannot copy directory (%s)", source)
	}

	if opts.CopyAttributes {
		err = copyStat(source, target)
		if err != nil {
			return err
		}
	}

	if opts.CopyXattrs {
		err = CopyXattrs(source, target)
		if err != nil {
			return err
		}
	}

	return nil
}

// CopyContents copies the data of a regular file from source to target,
// truncating any existing target file. No metadata is propagated.
func CopyContents(source string, target string) error {
	return copyDataFlags(source, target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
}

// The copy paths remove the target first, so a leftover entry means
// something else is writing to the tree: fail rather than clobber it.
func copyDataExclusive(source string, target string) error {
	return copyDataFlags(source, target, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
}

func copyDataFlags(source string, target string, targetFlags int) (err error) {
	srcFile, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open source file (%s):\n%w", source, err)
	}
	defer func() {
		if srcFile != nil {
			srcFile.Close()
		}
	}()

	dstFile, err := os.OpenFile(target, targetFlags, 0o666)
	if err != nil {
		return fmt.Errorf("failed to create target file (%s):\n%w", target, err)
	}
	defer func() {
		if dstFile != nil {
			dstFile.Close()
		}
	}()

	err = CopyData(dstFile, srcFile)
	if err != nil {
		return fmt.Errorf("failed to copy data to (%s):\n%w", target, err)
	}

	err = dstFile.Close()
	dstFile = nil
	if err != nil {
		return fmt.Errorf("failed to finalize target file (%s):\n%w", target, err)
	}

	err = srcFile.Close()
	srcFile = nil
	if err != nil {
		return fmt.Errorf("failed to finalize source file (%s):\n%w", source, err)
	}

	return nil
}

// copyStat applies the source's ownership and permission bits onto the
// target. Permission bits on a symlink are not meaningful and are left
// alone; ownership is still applied to the link itself.
func copyStat(source string, target string) error {
	var st unix.Stat_t
	err := unix.Lstat(source, &st)
	if err != nil {
		return fmt.Errorf("failed to stat (%s):\n%w", source, err)
	}

	err = unix.Lchown(target, int(st.Uid), int(st.Gid))
	if err != nil {
		return fmt.Errorf("failed to chown (%s):\n%w", target, err)
	}

	if kindOfMode(st.Mode) != KindSymlink {
		err = unix.Chmod(target, st.Mode&0o7777)
		if err != nil {
			return fmt.Errorf("failed to chmod (%s):\n%w", target, err)
		}
	}

	return nil
}

// The required buffer size is only learned by the readlink call filling
// the buffer completely, so retry with a doubled buffer until the target
// fits with room to spare.
func readLinkTarget(path string) (string, error) {
	for size := initialLinkBufferSize; ; size *= 2 {
		buf := make([]byte, size)

		n, err := unix.Readlink(path, buf)
		if err != nil {
			return "", err
		}

		if n < size {
			return string(buf[:n]), nil
		}
	}
}

func removeExisting(target string) error {
	err := os.Remove(target)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing entry (%s):\n%w", target, err)
	}
	return nil
}
