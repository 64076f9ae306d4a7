package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tegra-tools/jetson-kernel-upgrade/internal/domain/release"
)

// TestDetectCurrentRelease parses the standard identity header.
func TestDetectCurrentRelease(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nv_tegra_release")
	header := "# R35 (release), REVISION: 4.1, GCID: 33958178, BOARD: t186ref, EABI: aarch64, DATE: Tue Aug  1 19:57:35 UTC 2023\n"
	require.NoError(t, os.WriteFile(path, []byte(header), 0o644))

	current, err := DetectCurrentRelease(path)
	require.NoError(t, err)
	require.Equal(t, release.MustParse("35.4.1"), current)
}

// TestDetectCurrentReleaseMissing distinguishes the missing-identity case.
func TestDetectCurrentReleaseMissing(t *testing.T) {
	t.Parallel()

	_, err := DetectCurrentRelease(filepath.Join(t.TempDir(), "absent"))
	require.ErrorIs(t, err, ErrNoIdentity)
}

// TestDetectCurrentReleaseGarbage rejects files without the release header.
func TestDetectCurrentReleaseGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nv_tegra_release")
	require.NoError(t, os.WriteFile(path, []byte("not a release file"), 0o644))

	_, err := DetectCurrentRelease(path)
	require.ErrorIs(t, err, ErrNoIdentity)
}

// TestReadModel trims the trailing NUL of device-tree strings and treats a
// missing descriptor as an empty model.
func TestReadModel(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "model")
	require.NoError(t, os.WriteFile(path, []byte("NVIDIA Jetson AGX Xavier Industrial\x00"), 0o644))
	require.Equal(t, "NVIDIA Jetson AGX Xavier Industrial", ReadModel(path))

	require.Empty(t, ReadModel(filepath.Join(t.TempDir(), "absent")))
}

// TestIndustrialWarningNeeded scopes the warning to Industrial models below
// the validated minimum, using numeric comparison.
func TestIndustrialWarningNeeded(t *testing.T) {
	t.Parallel()

	industrial := "NVIDIA Jetson AGX Xavier Industrial"

	require.True(t, IndustrialWarningNeeded(industrial, release.MustParse("35.1.0")))
	require.False(t, IndustrialWarningNeeded(industrial, release.MustParse("35.2.1")))
	require.False(t, IndustrialWarningNeeded(industrial, release.MustParse("36.4.0")))

	// Non-Industrial and unknown models never warn.
	require.False(t, IndustrialWarningNeeded("NVIDIA Orin Nano Developer Kit", release.MustParse("35.1.0")))
	require.False(t, IndustrialWarningNeeded("", release.MustParse("32.7.4")))
}

// TestCrossToolchainPrefix reads the configured environment variable.
func TestCrossToolchainPrefix(t *testing.T) {
	t.Setenv("TEST_CROSS_COMPILE", "/opt/toolchain/bin/aarch64-linux-gnu-")

	prefix, ok := CrossToolchainPrefix("TEST_CROSS_COMPILE")
	require.True(t, ok)
	require.Equal(t, "/opt/toolchain/bin/aarch64-linux-gnu-", prefix)

	_, ok = CrossToolchainPrefix("TEST_CROSS_COMPILE_UNSET")
	require.False(t, ok)
}
