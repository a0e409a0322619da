// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package safecopy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SMNahidEmon/DualBootPatcher/internal/logger"
	"golang.org/x/sys/unix"
)

// CopyDir recursively copies the tree rooted at source into the target
// directory, copying as much as possible: an entry that fails to copy is
// reported and skipped while the walk continues with its siblings. The
// returned error is non-nil if any entry failed.
//
// Copying a tree on top of itself (target identical to, or nested inside,
// the source) is detected and aborts the whole walk. Entries on a
// different device than the source root are excluded from the walk.
func CopyDir(source string, target string, opts Options) error {
	if opts.FollowSymlinks {
		err := errors.New("FollowSymlinks is not allowed for recursive copies")
		logger.Log.Errorf("%v", err)
		return err
	}

	return withZeroUmask(func() error {
		copier := &treeCopier{
			opts:   opts,
			source: filepath.Clean(source),
			target: filepath.Clean(target),
		}
		return copier.run()
	})
}

// treeCopier drives a depth-first, pre-order traversal of the source tree.
// Directory metadata is applied post-order, once all children have been
// processed. Per-entry failures accumulate in entryErrs; an error returned
// through the recursion is fatal and aborts the walk.
type treeCopier struct {
	opts   Options
	source string
	target string

	// Identity of the target root, the self-copy guard key.
	targetDev uint64
	targetIno uint64

	// Device of the source root, the mount boundary key.
	sourceDev uint64

	entryErrs []error
}

func (c *treeCopier) run() error {
	err := c.prepareTargetRoot()
	if err != nil {
		logger.Log.Errorf("%v", err)
		return err
	}

	var rootSt unix.Stat_t
	err = unix.Lstat(c.source, &rootSt)
	if err != nil {
		err = fmt.Errorf("failed to stat (%s):\n%w", c.source, err)
		logger.Log.Errorf("%v", err)
		return err
	}
	c.sourceDev = rootSt.Dev

	// The per-node guard below catches a target nested inside the source.
	// This catches the other direction: the effective target root (which
	// includes the source's own name unless ExcludeTopLevel is set)
	// resolving to the source itself, before anything below the target
	// root is written.
	var effSt unix.Stat_t
	err = unix.Lstat(c.targetPath(""), &effSt)
	if err == nil && effSt.Dev == rootSt.Dev && effSt.Ino == rootSt.Ino {
		err = fmt.Errorf("(%s): cannot copy on top of itself", c.source)
		logger.Log.Errorf("%v", err)
		return err
	}

	err = c.visit(c.source, "", &rootSt)
	if err != nil {
		logger.Log.Errorf("%v", err)
		return err
	}

	if len(c.entryErrs) > 0 {
		return fmt.Errorf("copy of (%s) to (%s) completed with errors:\n%w",
			c.source, c.target, errors.Join(c.entryErrs...))
	}

	return nil
}

func (c *treeCopier) prepareTargetRoot() error {
	err := os.Mkdir(c.target, 0o777)
	if err != nil && !os.IsExist(err) {
		return fmt.Errorf("failed to create directory (%s):\n%w", c.target, err)
	}

	var st unix.Stat_t
	err = unix.Stat(c.target, &st)
	if err != nil {
		return fmt.Errorf("failed to stat (%s):\n%w", c.target, err)
	}

	if kindOfMode(st.Mode) != KindDirectory {
		return fmt.Errorf("target (%s) exists but is not a directory", c.target)
	}

	c.targetDev = st.Dev
	c.targetIno = st.Ino
	return nil
}

// The target path is the node's path relative to the source root appended
// to the target root, with the source root's own name inserted as an extra
// segment unless ExcludeTopLevel is set.
func (c *treeCopier) targetPath(rel string) string {
	if c.opts.ExcludeTopLevel {
		return filepath.Join(c.target, rel)
	}
	return filepath.Join(c.target, filepath.Base(c.source), rel)
}

func (c *treeCopier) visit(srcPath string, rel string, st *unix.Stat_t) error {
	// Entries on a different device than the source root are treated as
	// not present.
	if st.Dev != c.sourceDev {
		logger.Log.Debugf("(%s): Skipping mount point", srcPath)
		return nil
	}

	// Make sure we aren't copying the target on top of itself.
	if st.Dev == c.targetDev && st.Ino == c.targetIno {
		return fmt.Errorf("(%s): cannot copy on top of itself", srcPath)
	}

	tgtPath := c.targetPath(rel)

	switch kindOfMode(st.Mode) {
	case KindDirectory:
		return c.visitDir(srcPath, rel, tgtPath)

	case KindRegular:
		c.copyLeaf(srcPath, tgtPath, func() error {
			return copyDataExclusive(srcPath, tgtPath)
		})

	case KindSymlink:
		c.copyLeaf(srcPath, tgtPath, func() error {
			linkTarget, err := readLinkTarget(srcPath)
			if err != nil {
				return fmt.Errorf("failed to read symlink (%s):\n%w", srcPath, err)
			}

			err = os.Symlink(linkTarget, tgtPath)
			if err != nil {
				return fmt.Errorf("failed to create symlink (%s):\n%w", tgtPath, err)
			}
			return nil
		})

	case KindBlockDevice:
		c.copyLeaf(srcPath, tgtPath, func() error {
			err := unix.Mknod(tgtPath, unix.S_IFBLK|0o700, int(st.Rdev))
			if err != nil {
				return fmt.Errorf("failed to create block device (%s):\n%w", tgtPath, err)
			}
			return nil
		})

	case KindCharDevice:
		c.copyLeaf(srcPath, tgtPath, func() error {
			err := unix.Mknod(tgtPath, unix.S_IFCHR|0o700, int(st.Rdev))
			if err != nil {
				return fmt.Errorf("failed to create character device (%s):\n%w", tgtPath, err)
			}
			return nil
		})

	case KindFifo:
		c.copyLeaf(srcPath, tgtPath, func() error {
			err := unix.Mkfifo(tgtPath, 0o700)
			if err != nil {
				return fmt.Errorf("failed to create FIFO pipe (%s):\n%w", tgtPath, err)
			}
			return nil
		})

	case KindSocket:
		logger.Log.Debugf("(%s): Skipping socket", srcPath)
	}

	return nil
}

func (c *treeCopier) visitDir(srcPath string, rel string, tgtPath string) error {
	skip := false

	err := os.Mkdir(tgtPath, 0o777)
	if err != nil && !os.IsExist(err) {
		c.recordEntryError(fmt.Errorf("failed to create directory (%s):\n%w", tgtPath, err))
		skip = true
	}

	if !skip {
		var st unix.Stat_t
		err = unix.Stat(tgtPath, &st)
		if err != nil {
			c.recordEntryError(fmt.Errorf("failed to stat (%s):\n%w", tgtPath, err))
			skip = true
		} else if kindOfMode(st.Mode) != KindDirectory {
			c.recordEntryError(fmt.Errorf("(%s) exists but is not a directory", tgtPath))
			skip = true
		}
	}

	if skip {
		// The post-visit step won't run for a skipped subtree, so apply
		// whatever metadata propagation is still possible now.
		err = c.applyMetadata(srcPath, tgtPath)
		if err != nil {
			c.recordEntryError(err)
		}
		return nil
	}

	entries, err := os.ReadDir(srcPath)
	if err != nil {
		c.recordEntryError(fmt.Errorf("failed to read directory (%s):\n%w", srcPath, err))
	} else {
		for _, entry := range entries {
			childSrc := filepath.Join(srcPath, entry.Name())

			var childSt unix.Stat_t
			err = unix.Lstat(childSrc, &childSt)
			if err != nil {
				c.recordEntryError(fmt.Errorf("failed to stat (%s):\n%w", childSrc, err))
				continue
			}

			err = c.visit(childSrc, filepath.Join(rel, entry.Name()), &childSt)
			if err != nil {
				return err
			}
		}
	}

	// Applied only after every child has been processed, so restrictive
	// permissions on the directory do not block copying its own contents.
	err = c.applyMetadata(srcPath, tgtPath)
	if err != nil {
		c.recordEntryError(err)
	}

	return nil
}

func (c *treeCopier) copyLeaf(srcPath string, tgtPath string, create func() error) {
	err := removeExisting(tgtPath)
	if err == nil {
		err = create()
	}
	if err == nil {
		err = c.applyMetadata(srcPath, tgtPath)
	}
	if err != nil {
		c.recordEntryError(err)
	}
}

func (c *treeCopier) applyMetadata(srcPath string, tgtPath string) error {
	if c.opts.CopyAttributes {
		err := copyStat(srcPath, tgtPath)
		if err != nil {
			return err
		}
	}

	if c.opts.CopyXattrs {
		err := CopyXattrs(srcPath, tgtPath)
		if err != nil {
			return err
		}
	}

	return nil
}

func (c *treeCopier) recordEntryError(err error) {
	logger.Log.Warnf("%v", err)
	c.entryErrs = append(c.entryErrs, err)
}
