package resolver

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tegra-tools/jetson-kernel-upgrade/internal/catalog"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/domain/release"
)

// TestResolveReleasePattern covers direct release identifiers, including
// the implicit zero patch and the jetson/l4t prefixes.
func TestResolveReleasePattern(t *testing.T) {
	t.Parallel()

	cat := catalog.Default()

	cases := map[string]string{
		"36.4":               "36.4.0",
		"35.4.1":             "35.4.1",
		"l4t 35.3.1":         "35.3.1",
		"L4T-R35.4.1":        "35.4.1",
		"Jetson Linux 36.4":  "36.4.0",
		"jetson-linux r36.3": "36.3.0",
	}
	for input, want := range cases {
		res, err := Resolve(input, release.Release{}, cat)
		require.NoError(t, err, "input %q", input)
		require.Equal(t, release.MustParse(want), res.Target, "input %q", input)
	}

	// Unlisted releases still resolve; display fields stay empty.
	res, err := Resolve("38.1", release.Release{}, cat)
	require.NoError(t, err)
	require.Equal(t, release.MustParse("38.1.0"), res.Target)
	require.Empty(t, res.SDK)
}

// TestResolveSDKPattern covers JetPack labels in their common spellings.
func TestResolveSDKPattern(t *testing.T) {
	t.Parallel()

	cat := catalog.Default()

	cases := map[string]string{
		"JetPack 5.1.2": "35.4.1",
		"jp5.1.1":       "35.3.1",
		"5.1.2":         "35.4.1",
		"jetpack 6.1":   "36.4.0",
		"jp 4.6":        "32.7.4", // minor-only alias
	}
	for input, want := range cases {
		res, err := Resolve(input, release.Release{}, cat)
		require.NoError(t, err, "input %q", input)
		require.Equal(t, release.MustParse(want), res.Target, "input %q", input)
	}
}

// TestResolveUnsupportedSDK checks that an SDK-shaped input without a
// catalog entry fails with ErrUnsupportedVersion, not ErrUnknownInput.
func TestResolveUnsupportedSDK(t *testing.T) {
	t.Parallel()

	_, err := Resolve("jetpack 9.9", release.Release{}, catalog.Default())
	require.ErrorIs(t, err, ErrUnsupportedVersion)

	_, err = Resolve("5.1.0", release.Release{}, catalog.Default())
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

// TestResolveUnknownInput checks inputs matching no namespace at all.
func TestResolveUnknownInput(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "  ", "banana", "version five", "35", "x.y.z"} {
		_, err := Resolve(input, release.Release{}, catalog.Default())
		require.ErrorIs(t, err, ErrUnknownInput, "input %q", input)
	}
}

// TestResolveDistributionKeyword covers singleton and multi-candidate
// distribution keywords. A multi-candidate keyword must never auto-select.
func TestResolveDistributionKeyword(t *testing.T) {
	t.Parallel()

	cat := catalog.Default()

	// Singleton resolves directly.
	res, err := Resolve("bionic", release.Release{}, cat)
	require.NoError(t, err)
	require.Equal(t, release.MustParse("32.7.4"), res.Target)

	// Multi-candidate surfaces the full ordered list.
	_, err = Resolve("Ubuntu 20.04", release.Release{}, cat)

	var ambiguity *AmbiguityError

	require.ErrorAs(t, err, &ambiguity)
	require.Equal(t, []release.Release{
		release.MustParse("35.1.0"),
		release.MustParse("35.2.1"),
		release.MustParse("35.3.1"),
		release.MustParse("35.4.1"),
		release.MustParse("35.5.0"),
	}, ambiguity.Candidates)

	// The order is stable between calls.
	_, err = Resolve("focal", release.Release{}, cat)

	var second *AmbiguityError

	require.ErrorAs(t, err, &second)
	require.Equal(t, ambiguity.Candidates, second.Candidates)
}

// TestResolveKernelKeyword covers the prefixed kernel-branch namespace.
func TestResolveKernelKeyword(t *testing.T) {
	t.Parallel()

	cat := catalog.Default()

	res, err := Resolve("kernel-4.9", release.Release{}, cat)
	require.NoError(t, err)
	require.Equal(t, release.MustParse("32.7.4"), res.Target)

	var ambiguity *AmbiguityError

	_, err = Resolve("linux 5.15", release.Release{}, cat)
	require.ErrorAs(t, err, &ambiguity)
	require.Len(t, ambiguity.Candidates, 3)

	_, err = Resolve("kernel-6.6", release.Release{}, cat)
	require.ErrorIs(t, err, ErrUnsupportedVersion)
}

// TestResolveRebuildCurrent checks that targeting the running release is a
// valid rebuild, not an error.
func TestResolveRebuildCurrent(t *testing.T) {
	t.Parallel()

	current := release.MustParse("35.4.1")

	res, err := Resolve("35.4.1", current, catalog.Default())
	require.NoError(t, err)
	require.True(t, res.Rebuild)
	require.Equal(t, current, res.Target)

	res, err = Resolve("JetPack 5.1.1", current, catalog.Default())
	require.NoError(t, err)
	require.False(t, res.Rebuild)
}

// TestResolveScenarioFromField reproduces the documented field scenario:
// current 35.3.1, operator asks for "JetPack 5.1.2".
func TestResolveScenarioFromField(t *testing.T) {
	t.Parallel()

	res, err := Resolve("JetPack 5.1.2", release.MustParse("35.3.1"), catalog.Default())
	require.NoError(t, err)
	require.Equal(t, release.MustParse("35.4.1"), res.Target)
	require.Equal(t, "5.1.2", res.SDK)
	require.Equal(t, "5.10", res.KernelBranch)
	require.Equal(t, "focal", res.Distribution)
	require.False(t, res.Rebuild)
}

// TestForRelease checks the post-ambiguity continuation.
func TestForRelease(t *testing.T) {
	t.Parallel()

	res := ForRelease("focal", release.MustParse("35.4.1"), release.MustParse("35.4.1"), catalog.Default())
	require.True(t, res.Rebuild)
	require.Equal(t, "5.1.2", res.SDK)
}
