// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package safecopy

import (
	"golang.org/x/sys/unix"
)

// withZeroUmask runs fn with the process file-creation mask cleared so that
// copied permission bits are not silently masked. The previous mask is
// restored on every exit path, including panics. The mask is process-wide
// state, callers must not create files concurrently from other goroutines.
func withZeroUmask(fn func() error) error {
	oldMask := unix.Umask(0)
	defer unix.Umask(oldMask)

	return fn()
}
