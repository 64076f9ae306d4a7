package resolver

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/tegra-tools/jetson-kernel-upgrade/internal/catalog"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/domain/release"
)

// outcome is a successful classification: either a single target or an
// ordered candidate list requiring explicit selection.
type outcome struct {
	target     release.Release
	candidates []release.Release
}

// matcher classifies one version namespace. ok=false means the input does
// not belong to this namespace at all; an error means the input matched the
// namespace pattern but cannot be resolved.
type matcher interface {
	match(input string) (outcome, bool, error)
}

// matchers returns the classifier chain in precedence order. The release
// and SDK patterns are mutually exclusive by construction: a bare release
// identifier requires a two-digit major, a bare SDK label a one-digit one.
func matchers(cat *catalog.Catalog) []matcher {
	return []matcher{
		releaseMatcher{},
		sdkMatcher{cat: cat},
		distributionMatcher{cat: cat},
		kernelMatcher{cat: cat},
	}
}

var (
	// "35.4.1", "36.4", "l4t 35.4.1", "jetson-linux r36.4.3", "l4t-r35.3.1".
	releasePattern = regexp.MustCompile(`^(?:(?:jetson(?:[ -]?linux)?|l4t)[ -]?r?)?(\d{2})\.(\d+)(?:\.(\d+))?$`)
	// "5.1.2", "jetpack 5.1.2", "jp5.1.1", "jp 6.0".
	sdkPattern = regexp.MustCompile(`^(?:(?:jetpack|jp)[ -]?)?(\d)\.(\d+)(?:\.(\d+))?$`)
	// "kernel-5.10", "kernel 5.15", "linux-4.9".
	kernelPattern = regexp.MustCompile(`^(?:kernel|linux)[ -]v?(\d+\.\d+)$`)
)

// releaseMatcher handles explicit L4T release identifiers. Digits are taken
// directly; no catalog entry is required, unlisted releases stay resolvable.
type releaseMatcher struct{}

func (releaseMatcher) match(input string) (outcome, bool, error) {
	groups := releasePattern.FindStringSubmatch(input)
	if groups == nil {
		return outcome{}, false, nil
	}

	return outcome{target: releaseFromGroups(groups)}, true, nil
}

// sdkMatcher handles JetPack labels and looks them up in the catalog.
type sdkMatcher struct {
	cat *catalog.Catalog
}

func (m sdkMatcher) match(input string) (outcome, bool, error) {
	groups := sdkPattern.FindStringSubmatch(input)
	if groups == nil {
		return outcome{}, false, nil
	}

	label := groups[1] + "." + groups[2]
	if groups[3] != "" {
		label += "." + groups[3]
	}

	target, ok := m.cat.ReleaseForSDK(label)
	if !ok {
		return outcome{}, true, fmt.Errorf("%w: JetPack %s", ErrUnsupportedVersion, label)
	}

	return outcome{target: target}, true, nil
}

// distributionMatcher handles Ubuntu codenames and version numbers.
type distributionMatcher struct {
	cat *catalog.Catalog
}

func (m distributionMatcher) match(input string) (outcome, bool, error) {
	keyword := strings.TrimSpace(strings.TrimPrefix(input, "ubuntu"))

	candidates := m.cat.ReleasesForDistribution(keyword)
	if len(candidates) == 0 {
		return outcome{}, false, nil
	}

	return outcome{candidates: candidates}, true, nil
}

// kernelMatcher handles prefixed kernel branch keywords. The prefix is
// required: a bare "5.10" belongs to the SDK namespace by precedence.
type kernelMatcher struct {
	cat *catalog.Catalog
}

func (m kernelMatcher) match(input string) (outcome, bool, error) {
	groups := kernelPattern.FindStringSubmatch(input)
	if groups == nil {
		return outcome{}, false, nil
	}

	candidates := m.cat.ReleasesForKernelBranch(groups[1])
	if len(candidates) == 0 {
		return outcome{}, true, fmt.Errorf("%w: kernel %s", ErrUnsupportedVersion, groups[1])
	}

	return outcome{candidates: candidates}, true, nil
}

// releaseFromGroups builds a Release from regexp submatches; the submatches
// are digit-only by construction, so Atoi cannot fail.
func releaseFromGroups(groups []string) release.Release {
	major, _ := strconv.Atoi(groups[1])
	minor, _ := strconv.Atoi(groups[2])

	patch := 0
	if groups[3] != "" {
		patch, _ = strconv.Atoi(groups[3])
	}

	return release.Release{Major: major, Minor: minor, Patch: patch}
}
