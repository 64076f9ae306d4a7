package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tegra-tools/jetson-kernel-upgrade/internal/domain/release"
)

// TestSDKRoundTrip verifies that every SDK label resolves to a release whose
// catalog info points back at an SDK label resolving to the same release.
func TestSDKRoundTrip(t *testing.T) {
	t.Parallel()

	cat := Default()

	for _, label := range cat.SDKLabels() {
		r, ok := cat.ReleaseForSDK(label)
		require.True(t, ok, "label %q", label)

		info, ok := cat.Info(r)
		require.True(t, ok, "release %s", r)

		back, ok := cat.ReleaseForSDK(info.SDK)
		require.True(t, ok)
		require.Equal(t, r, back, "label %q", label)
	}
}

// TestKnownMappings pins the mappings the upgrade flow depends on.
func TestKnownMappings(t *testing.T) {
	t.Parallel()

	cat := Default()

	r, ok := cat.ReleaseForSDK("5.1.2")
	require.True(t, ok)
	require.Equal(t, release.MustParse("35.4.1"), r)

	r, ok = cat.ReleaseForSDK("5.1.1")
	require.True(t, ok)
	require.Equal(t, release.MustParse("35.3.1"), r)

	info, ok := cat.Info(release.MustParse("36.4.3"))
	require.True(t, ok)
	require.Equal(t, "6.2", info.SDK)
	require.Equal(t, "5.15", info.KernelBranch)
	require.Equal(t, "jammy", info.Distribution)
}

// TestMinorOnlyAlias checks the single explicit minor-only SDK alias.
func TestMinorOnlyAlias(t *testing.T) {
	t.Parallel()

	cat := Default()

	aliased, ok := cat.ReleaseForSDK("4.6")
	require.True(t, ok)

	full, ok := cat.ReleaseForSDK("4.6.4")
	require.True(t, ok)
	require.Equal(t, full, aliased)

	// No other minor-only labels are invented.
	_, ok = cat.ReleaseForSDK("5.0")
	require.False(t, ok)
}

// TestKeywordListsStableOrder ensures keyword candidate sets keep catalog
// insertion order and are copies.
func TestKeywordListsStableOrder(t *testing.T) {
	t.Parallel()

	cat := Default()

	focal := cat.ReleasesForDistribution("focal")
	require.Equal(t, []release.Release{
		release.MustParse("35.1.0"),
		release.MustParse("35.2.1"),
		release.MustParse("35.3.1"),
		release.MustParse("35.4.1"),
		release.MustParse("35.5.0"),
	}, focal)

	// Numeric alias resolves to the same set.
	require.Equal(t, focal, cat.ReleasesForDistribution("20.04"))

	// Mutating the returned slice must not leak into the catalog.
	focal[0] = release.MustParse("99.9.9")
	require.Equal(t, release.MustParse("35.1.0"), cat.ReleasesForDistribution("focal")[0])

	bionic := cat.ReleasesForDistribution("bionic")
	require.Len(t, bionic, 1)
	require.Equal(t, release.MustParse("32.7.4"), bionic[0])
}

// TestKernelBranchLookup checks branch candidate sets.
func TestKernelBranchLookup(t *testing.T) {
	t.Parallel()

	cat := Default()

	require.Len(t, cat.ReleasesForKernelBranch("4.9"), 1)
	require.Len(t, cat.ReleasesForKernelBranch("5.10"), 5)
	require.Len(t, cat.ReleasesForKernelBranch("5.15"), 3)
	require.Empty(t, cat.ReleasesForKernelBranch("6.1"))
}

// TestSDKLabelsReflectTheInstance derives labels from the catalog the method
// is called on, not from the authored default table.
func TestSDKLabelsReflectTheInstance(t *testing.T) {
	t.Parallel()

	custom := build([]row{
		{sdk: "9.9", release: release.MustParse("99.9.0"), kernelBranch: "6.1", distribution: "noble"},
	}, nil)

	require.Equal(t, []string{"9.9"}, custom.SDKLabels())

	// The returned slice is a copy.
	labels := custom.SDKLabels()
	labels[0] = "mutated"
	require.Equal(t, []string{"9.9"}, custom.SDKLabels())
}
