package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/tegra-tools/jetson-kernel-upgrade/internal/domain/release"
)

// ErrNoIdentity is returned when the release identity file is missing or
// does not carry a parseable release header.
var ErrNoIdentity = errors.New("release identity not found")

// identityPattern matches the header line of the release identity file:
// "# R35 (release), REVISION: 4.1, GCID: ...".
var identityPattern = regexp.MustCompile(`# R(\d+) \(release\), REVISION: (\d+)\.(\d+)`)

// minIndustrialRelease is the lowest release validated for Industrial
// modules; installing anything below it earns the operator a warning.
var minIndustrialRelease = release.Release{Major: 35, Minor: 2, Patch: 1} //nolint:gochecknoglobals // Read-only threshold.

// DetectCurrentRelease parses the release identity file into the currently
// installed release identifier.
func DetectCurrentRelease(identityPath string) (release.Release, error) {
	contents, err := os.ReadFile(filepath.Clean(identityPath))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return release.Release{}, fmt.Errorf("%w: %s", ErrNoIdentity, identityPath)
		}

		return release.Release{}, fmt.Errorf("read identity file: %w", err)
	}

	groups := identityPattern.FindStringSubmatch(string(contents))
	if groups == nil {
		return release.Release{}, fmt.Errorf("%w: unrecognized header in %s", ErrNoIdentity, identityPath)
	}

	return release.Parse(groups[1] + "." + groups[2] + "." + groups[3])
}

// ReadModel returns the device model descriptor, NUL- and
// whitespace-trimmed. The descriptor is best-effort: a missing or
// unreadable file yields an empty model, never an error, because it is
// only used to tailor warnings.
func ReadModel(modelPath string) string {
	contents, err := os.ReadFile(filepath.Clean(modelPath))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(strings.Trim(string(contents), "\x00"))
}

// IsNative reports whether the tool runs on the target hardware class.
// Off-device builds require a cross toolchain.
func IsNative() bool {
	return runtime.GOARCH == "arm64"
}

// CrossToolchainPrefix reads the configured toolchain prefix variable.
func CrossToolchainPrefix(envName string) (string, bool) {
	prefix, ok := os.LookupEnv(envName)
	return strings.TrimSpace(prefix), ok && strings.TrimSpace(prefix) != ""
}

// ActiveKernelRelease returns the running kernel's release string, which
// names the active directory under the module tree.
func ActiveKernelRelease() (string, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "", fmt.Errorf("uname: %w", err)
	}

	return unix.ByteSliceToString(uts.Release[:]), nil
}

// IndustrialWarningNeeded reports whether the target release is below the
// validated minimum for Industrial-grade modules. Unknown models never
// warn; the comparison is numeric over the full triple.
func IndustrialWarningNeeded(model string, target release.Release) bool {
	if !strings.Contains(model, "Industrial") {
		return false
	}

	return target.Less(minIndustrialRelease)
}
