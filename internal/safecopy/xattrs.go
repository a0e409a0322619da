// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package safecopy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/SMNahidEmon/DualBootPatcher/internal/logger"
	"golang.org/x/sys/unix"
)

const initialXattrBufferSize = 128

// CopyXattrs replicates every extended attribute name/value pair from
// source onto target. Filesystems without extended attribute support are
// tolerated: listing stops attribute propagation without failing it, and
// so does an unsupported target encountered mid-way.
func CopyXattrs(source string, target string) error {
	names, err := listXattrNames(source)
	if err != nil {
		if errors.Is(err, unix.ENOTSUP) {
			logger.Log.Debugf("(%s): xattrs not supported on filesystem", source)
			return nil
		}
		return fmt.Errorf("failed to list xattrs on (%s):\n%w", source, err)
	}

	for _, name := range names {
		value, err := getXattr(source, name)
		if err != nil {
			logger.Log.Warnf("Failed to get attribute (%s) of (%s): %v", name, source, err)
			continue
		}

		err = unix.Lsetxattr(target, name, value, 0)
		if err != nil {
			if errors.Is(err, unix.ENOTSUP) {
				logger.Log.Debugf("(%s): xattrs not supported on filesystem", target)
				break
			}
			return fmt.Errorf("failed to set attribute (%s) on (%s):\n%w", name, target, err)
		}
	}

	return nil
}

// Attribute names come back as a NUL-separated list whose required buffer
// size is only learned from the call itself, so retry with a doubled
// buffer until it fits.
func listXattrNames(path string) ([]string, error) {
	for size := initialXattrBufferSize; ; size *= 2 {
		buf := make([]byte, size)

		n, err := unix.Llistxattr(path, buf)
		if errors.Is(err, unix.ERANGE) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return splitXattrNames(buf[:n]), nil
	}
}

func splitXattrNames(data []byte) []string {
	names := []string(nil)
	for _, name := range strings.Split(string(data), "\x00") {
		if name != "" {
			names = append(names, name)
		}
	}
	return names
}

func getXattr(path string, name string) ([]byte, error) {
	for size := initialXattrBufferSize; ; size *= 2 {
		buf := make([]byte, size)

		n, err := unix.Lgetxattr(path, name, buf)
		if errors.Is(err, unix.ERANGE) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return buf[:n], nil
	}
}
