// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

// Package packagelist parses the Android package manager's packages.xml
// database into flat package records.
package packagelist

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/SMNahidEmon/DualBootPatcher/internal/logger"
)

// Flags mirrors the package manager's ApplicationInfo flag bits.
type Flags int64

const (
	FlagSystem Flags = 1 << iota
	FlagDebuggable
	FlagHasCode
	FlagPersistent
	FlagFactoryTest
	FlagAllowTaskReparenting
	FlagAllowClearUserData
	FlagUpdatedSystemApp
	FlagTestOnly
	FlagSupportsSmallScreens
	FlagSupportsNormalScreens
	FlagSupportsLargeScreens
	FlagResizeableForScreens
	FlagSupportsScreenDensities
	FlagVmSafeMode
	FlagAllowBackup
	FlagKillAfterRestore
	FlagRestoreAnyVersion
	FlagExternalStorage
	FlagSupportsXlargeScreens
	FlagLargeHeap
	FlagStopped
	FlagSupportsRtl
	FlagInstalled
	FlagIsDataOnly
	FlagIsGame
	FlagFullBackupOnly
	FlagHidden
	FlagCantSaveState
	FlagForwardLock
	FlagPrivileged
	FlagMultiarch
)

// Package is one <package> entry from packages.xml.
type Package struct {
	Name              string
	RealName          string
	CodePath          string
	ResourcePath      string
	NativeLibraryPath string
	PrimaryCpuAbi     string
	SecondaryCpuAbi   string
	CpuAbiOverride    string

	Flags Flags

	// Milliseconds since the epoch.
	Timestamp        uint64
	FirstInstallTime uint64
	LastUpdateTime   uint64

	Version int

	// Exactly one of UserId and SharedUserId is meaningful, selected by
	// IsSharedUser.
	IsSharedUser bool
	UserId       int
	SharedUserId int

	UidError      string
	InstallStatus string
	Installer     string
}

// ParseFile reads packages.xml at path and returns every package record it
// declares. Unrecognized tags and attributes are logged and skipped.
func ParseFile(path string) ([]*Package, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open XML file (%s):\n%w", path, err)
	}
	defer f.Close()

	decoder := xml.NewDecoder(f)
	pkgs := []*Package(nil)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse XML file (%s):\n%w", path, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		if start.Name.Local == "packages" {
			err = parsePackagesTag(decoder, &pkgs)
		} else {
			logger.Log.Warnf("Unrecognized root tag: %s", start.Name.Local)
			err = decoder.Skip()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse XML file (%s):\n%w", path, err)
		}
	}

	return pkgs, nil
}

func parsePackagesTag(decoder *xml.Decoder, pkgs *[]*Package) error {
	for {
		tok, err := decoder.Token()
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "packages":
				logger.Log.Warnf("Nested <packages> is not allowed")
				err = decoder.Skip()

			case "package":
				var pkg *Package
				pkg, err = parsePackageTag(decoder, &t)
				if err == nil {
					*pkgs = append(*pkgs, pkg)
				}

			case "database-version", "keyset-settings", "last-platform-version",
				"permission-trees", "permissions", "renamed-package",
				"shared-user", "updated-package":
				err = decoder.Skip()

			default:
				logger.Log.Warnf("Unrecognized <%s> within <packages>", t.Name.Local)
				err = decoder.Skip()
			}

			if err != nil {
				return err
			}

		case xml.EndElement:
			return nil
		}
	}
}

func parsePackageTag(decoder *xml.Decoder, start *xml.StartElement) (*Package, error) {
	pkg := &Package{}

	for _, attr := range start.Attr {
		value := attr.Value

		switch attr.Name.Local {
		case "name":
			pkg.Name = value
		case "realName":
			pkg.RealName = value
		case "codePath":
			pkg.CodePath = value
		case "resourcePath":
			pkg.ResourcePath = value
		case "nativeLibraryPath":
			pkg.NativeLibraryPath = value
		case "primaryCpuAbi":
			pkg.PrimaryCpuAbi = value
		case "secondaryCpuAbi":
			pkg.SecondaryCpuAbi = value
		case "cpuAbiOverride":
			pkg.CpuAbiOverride = value
		case "flags":
			pkg.Flags = Flags(parseInt64(attr, 10))
		case "ft":
			pkg.Timestamp = parseUint64(attr, 16)
		case "it":
			pkg.FirstInstallTime = parseUint64(attr, 16)
		case "ut":
			pkg.LastUpdateTime = parseUint64(attr, 16)
		case "version":
			pkg.Version = int(parseInt64(attr, 10))
		case "userId":
			pkg.UserId = int(parseInt64(attr, 10))
			pkg.IsSharedUser = false
		case "sharedUserId":
			pkg.SharedUserId = int(parseInt64(attr, 10))
			pkg.IsSharedUser = true
		case "uidError":
			pkg.UidError = value
		case "installStatus":
			pkg.InstallStatus = value
		case "installer":
			pkg.Installer = value
		default:
			logger.Log.Warnf("Unrecognized attribute '%s' in <package>", attr.Name.Local)
		}
	}

	err := consumePackageChildren(decoder)
	if err != nil {
		return nil, err
	}

	return pkg, nil
}

func consumePackageChildren(decoder *xml.Decoder) error {
	for {
		tok, err := decoder.Token()
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "package":
				logger.Log.Warnf("Nested <package> is not allowed")
			case "defined-keyset", "perms", "proper-signing-keyset",
				"signing-keyset", "sigs", "upgrade-keyset":
				// Ignore
			default:
				logger.Log.Warnf("Unrecognized <%s> within <package>", t.Name.Local)
			}

			err = decoder.Skip()
			if err != nil {
				return err
			}

		case xml.EndElement:
			return nil
		}
	}
}

func parseInt64(attr xml.Attr, base int) int64 {
	v, err := strconv.ParseInt(attr.Value, base, 64)
	if err != nil {
		logger.Log.Warnf("Invalid value (%s) for attribute '%s'", attr.Value, attr.Name.Local)
		return 0
	}
	return v
}

func parseUint64(attr xml.Attr, base int) uint64 {
	v, err := strconv.ParseUint(attr.Value, base, 64)
	if err != nil {
		logger.Log.Warnf("Invalid value (%s) for attribute '%s'", attr.Value, attr.Name.Local)
		return 0
	}
	return v
}
