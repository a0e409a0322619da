// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package safecopy

import (
	"golang.org/x/sys/unix"
)

// FileKind identifies the type of a filesystem entry. It is derived once
// from the entry's stat mode and drives copy dispatch.
type FileKind int

const (
	KindRegular FileKind = iota
	KindDirectory
	KindSymlink
	KindBlockDevice
	KindCharDevice
	KindFifo
	KindSocket
)

func kindOfMode(mode uint32) FileKind {
	switch mode & unix.S_IFMT {
	case unix.S_IFDIR:
		return KindDirectory
	case unix.S_IFLNK:
		return KindSymlink
	case unix.S_IFBLK:
		return KindBlockDevice
	case unix.S_IFCHR:
		return KindCharDevice
	case unix.S_IFIFO:
		return KindFifo
	case unix.S_IFSOCK:
		return KindSocket
	default:
		return KindRegular
	}
}

func (k FileKind) String() string {
	switch k {
	case KindRegular:
		return "regular file"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindBlockDevice:
		return "block device"
	case KindCharDevice:
		return "character device"
	case KindFifo:
		return "fifo"
	case KindSocket:
		return "socket"
	default:
		return "unknown"
	}
}
