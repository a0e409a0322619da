// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package packagelist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

const samplePackagesXml = `<?xml version='1.0' encoding='utf-8' standalone='yes' ?>
<packages>
    <last-platform-version internal="21" external="21" />
    <database-version internal="3" external="3" />
    <permission-trees />
    <permissions>
        <item name="android.permission.INTERNET" package="android" protection="1" />
    </permissions>
    <package name="com.example.app" codePath="/data/app/com.example.app-1"
             nativeLibraryPath="/data/app/com.example.app-1/lib"
             primaryCpuAbi="arm64-v8a" flags="940097093" ft="14d52a03a28"
             it="14ca2f0a71d" ut="14d52a04b2b" version="2001" userId="10066"
             installer="com.android.vending">
        <sigs count="1">
            <cert index="4" />
        </sigs>
        <perms>
            <item name="android.permission.INTERNET" granted="true" />
        </perms>
        <signing-keyset identifier="5" />
    </package>
    <package name="com.example.shared" realName="com.example.renamed"
             codePath="/system/app/Shared" resourcePath="/system/app/Shared"
             flags="1" ft="14ca2eef7e0" it="14ca2eef7e0" ut="14ca2eef7e0"
             version="21" sharedUserId="1000" installStatus="1" />
    <shared-user name="android.uid.system" userId="1000" />
</packages>
`

func TestParseFile(t *testing.T) {
	path := writeSampleXml(t, samplePackagesXml)

	pkgs, err := ParseFile(path)
	assert.NoError(t, err)
	assert.Len(t, pkgs, 2)

	pkg := pkgs[0]
	assert.Equal(t, "com.example.app", pkg.Name)
	assert.Equal(t, "/data/app/com.example.app-1", pkg.CodePath)
	assert.Equal(t, "/data/app/com.example.app-1/lib", pkg.NativeLibraryPath)
	assert.Equal(t, "arm64-v8a", pkg.PrimaryCpuAbi)
	assert.Equal(t, Flags(940097093), pkg.Flags)
	assert.NotZero(t, pkg.Flags&FlagSystem)
	assert.NotZero(t, pkg.Flags&FlagHasCode)
	assert.Equal(t, uint64(0x14d52a03a28), pkg.Timestamp)
	assert.Equal(t, uint64(0x14ca2f0a71d), pkg.FirstInstallTime)
	assert.Equal(t, uint64(0x14d52a04b2b), pkg.LastUpdateTime)
	assert.Equal(t, 2001, pkg.Version)
	assert.False(t, pkg.IsSharedUser)
	assert.Equal(t, 10066, pkg.UserId)
	assert.Equal(t, "com.android.vending", pkg.Installer)
}

func TestParseFileSharedUser(t *testing.T) {
	path := writeSampleXml(t, samplePackagesXml)

	pkgs, err := ParseFile(path)
	assert.NoError(t, err)
	assert.Len(t, pkgs, 2)

	pkg := pkgs[1]
	assert.Equal(t, "com.example.shared", pkg.Name)
	assert.Equal(t, "com.example.renamed", pkg.RealName)
	assert.True(t, pkg.IsSharedUser)
	assert.Equal(t, 1000, pkg.SharedUserId)
	assert.Equal(t, Flags(1), pkg.Flags)
	assert.Equal(t, "1", pkg.InstallStatus)
}

func TestParseFileUnrecognizedAttributeLogged(t *testing.T) {
	path := writeSampleXml(t, `<packages>
    <package name="com.example" mysteryAttr="42" />
</packages>
`)

	pkgs, err := ParseFile(path)
	assert.NoError(t, err)
	assert.Len(t, pkgs, 1)
	assert.Equal(t, "com.example", pkgs[0].Name)

	assert.True(t, logMessagesHook.ContainsMessage("Unrecognized attribute 'mysteryAttr'"))
}

func TestParseFileUnrecognizedTagLogged(t *testing.T) {
	path := writeSampleXml(t, `<packages>
    <mystery-tag />
    <package name="com.example" />
</packages>
`)

	pkgs, err := ParseFile(path)
	assert.NoError(t, err)
	assert.Len(t, pkgs, 1)

	assert.True(t, logMessagesHook.ContainsMessage("Unrecognized <mystery-tag> within <packages>"))
}

func TestParseFileInvalidNumericAttribute(t *testing.T) {
	path := writeSampleXml(t, `<packages>
    <package name="com.example" flags="not-a-number" version="7" />
</packages>
`)

	pkgs, err := ParseFile(path)
	assert.NoError(t, err)
	assert.Len(t, pkgs, 1)
	assert.Equal(t, Flags(0), pkgs[0].Flags)
	assert.Equal(t, 7, pkgs[0].Version)
}

func TestParseFileMalformedXml(t *testing.T) {
	path := writeSampleXml(t, `<packages><package name="broken"`)

	_, err := ParseFile(path)
	assert.ErrorContains(t, err, "failed to parse XML file")
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "nope.xml"))
	assert.ErrorContains(t, err, "failed to open XML file")
}

func writeSampleXml(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "packages.xml")
	err := os.WriteFile(path, []byte(contents), 0o644)
	assert.NoError(t, err)
	return path
}
