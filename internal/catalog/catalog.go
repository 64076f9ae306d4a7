package catalog

import (
	"sync"

	"github.com/tegra-tools/jetson-kernel-upgrade/internal/domain/release"
)

// Info carries the secondary identifiers associated with a release.
// All fields are display-oriented; any of them may be empty for releases
// that were resolved from a bare numeric pattern.
type Info struct {
	// SDK is the JetPack label that maps onto this release.
	SDK string
	// KernelBranch is the upstream kernel line shipped with the release.
	KernelBranch string
	// Distribution is the Ubuntu base of the release rootfs.
	Distribution string
}

// row is one catalog entry as authored; insertion order is preserved for
// deterministic disambiguation lists.
type row struct {
	sdk          string
	release      release.Release
	kernelBranch string
	distribution string
	// distroAliases are additional keywords resolving to the same
	// distribution (numeric Ubuntu version next to the codename).
	distroAliases []string
}

// rows is the authoritative JetPack-to-L4T table. Multiple SDK labels may
// collapse onto one release line; releases keep their first-seen order.
func rows() []row {
	return []row{
		{sdk: "4.6.4", release: release.MustParse("32.7.4"), kernelBranch: "4.9", distribution: "bionic", distroAliases: []string{"18.04"}},
		{sdk: "5.0.2", release: release.MustParse("35.1.0"), kernelBranch: "5.10", distribution: "focal", distroAliases: []string{"20.04"}},
		{sdk: "5.1", release: release.MustParse("35.2.1"), kernelBranch: "5.10", distribution: "focal", distroAliases: []string{"20.04"}},
		{sdk: "5.1.1", release: release.MustParse("35.3.1"), kernelBranch: "5.10", distribution: "focal", distroAliases: []string{"20.04"}},
		{sdk: "5.1.2", release: release.MustParse("35.4.1"), kernelBranch: "5.10", distribution: "focal", distroAliases: []string{"20.04"}},
		{sdk: "5.1.3", release: release.MustParse("35.5.0"), kernelBranch: "5.10", distribution: "focal", distroAliases: []string{"20.04"}},
		{sdk: "6.0", release: release.MustParse("36.3.0"), kernelBranch: "5.15", distribution: "jammy", distroAliases: []string{"22.04"}},
		{sdk: "6.1", release: release.MustParse("36.4.0"), kernelBranch: "5.15", distribution: "jammy", distroAliases: []string{"22.04"}},
		{sdk: "6.2", release: release.MustParse("36.4.3"), kernelBranch: "5.15", distribution: "jammy", distroAliases: []string{"22.04"}},
	}
}

// sdkAliases maps minor-only SDK labels onto their latest known patch.
func sdkAliases() map[string]string {
	return map[string]string{
		"4.6": "4.6.4",
	}
}

// Catalog is the read-only mapping between the four version namespaces.
// It is built once at first use and never mutated afterwards.
type Catalog struct {
	bySDK          map[string]release.Release
	aliases        map[string]string
	byRelease      map[release.Release]Info
	byDistribution map[string][]release.Release
	byKernel       map[string][]release.Release
	sdkLabels      []string
}

var (
	defaultOnce    sync.Once          //nolint:gochecknoglobals // Built once, read-only afterwards.
	defaultCatalog *Catalog           //nolint:gochecknoglobals // Built once, read-only afterwards.
)

// Default returns the process-wide catalog, building it on first use.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = build(rows(), sdkAliases())
	})

	return defaultCatalog
}

func build(entries []row, aliases map[string]string) *Catalog {
	c := &Catalog{
		bySDK:          make(map[string]release.Release, len(entries)),
		aliases:        aliases,
		byRelease:      make(map[release.Release]Info, len(entries)),
		byDistribution: make(map[string][]release.Release, len(entries)),
		byKernel:       make(map[string][]release.Release, len(entries)),
	}

	for _, e := range entries {
		c.bySDK[e.sdk] = e.release
		c.sdkLabels = append(c.sdkLabels, e.sdk)

		// First SDK label wins the reverse mapping; later labels for the
		// same release stay resolvable forward only.
		if _, seen := c.byRelease[e.release]; !seen {
			c.byRelease[e.release] = Info{
				SDK:          e.sdk,
				KernelBranch: e.kernelBranch,
				Distribution: e.distribution,
			}

			c.byKernel[e.kernelBranch] = append(c.byKernel[e.kernelBranch], e.release)

			keywords := append([]string{e.distribution}, e.distroAliases...)
			for _, kw := range keywords {
				c.byDistribution[kw] = append(c.byDistribution[kw], e.release)
			}
		}
	}

	return c
}

// ReleaseForSDK resolves a JetPack label (exact or via the minor-only alias)
// to its release identifier.
func (c *Catalog) ReleaseForSDK(label string) (release.Release, bool) {
	if full, ok := c.aliases[label]; ok {
		label = full
	}

	r, ok := c.bySDK[label]

	return r, ok
}

// Info returns the secondary identifiers for a release. Absence is not an
// error: releases resolved from bare numeric input may be unlisted.
func (c *Catalog) Info(r release.Release) (Info, bool) {
	info, ok := c.byRelease[r]
	return info, ok
}

// ReleasesForDistribution returns all releases sharing an OS-distribution
// keyword, in catalog insertion order. The slice is a copy.
func (c *Catalog) ReleasesForDistribution(keyword string) []release.Release {
	return append([]release.Release(nil), c.byDistribution[keyword]...)
}

// ReleasesForKernelBranch returns all releases sharing a kernel branch,
// in catalog insertion order. The slice is a copy.
func (c *Catalog) ReleasesForKernelBranch(branch string) []release.Release {
	return append([]release.Release(nil), c.byKernel[branch]...)
}

// SDKLabels returns every JetPack label known to the catalog, in insertion
// order. The slice is a copy.
func (c *Catalog) SDKLabels() []string {
	return append([]string(nil), c.sdkLabels...)
}
