package upgrade

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-ps"

	"github.com/tegra-tools/jetson-kernel-upgrade/internal/domain/release"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/logger"
)

const (
	// MarkerFilename marks that an upgrade is running right now to avoid
	// parallel execution. The marker lives in the system temp directory.
	MarkerFilename = "jetson-kernel-upgrade-marker.bin"

	// executableName is the process name a concurrent run would show up as.
	executableName = "jetson-kernel-upgrade"

	// bspSubdir is the top-level directory of the board support archive.
	bspSubdir = "Linux_for_Tegra"

	// sourcesSubdir is the top-level directory of the public sources
	// archive; the kernel tree lives directly under it.
	sourcesSubdir = "kernel_src"

	// builtImageRelPath is the kernel image location inside the configured
	// source tree once the build completes.
	builtImageRelPath = "arch/arm64/boot/Image"

	// builtDtbRelPath is the device-tree output directory inside the source
	// tree once the build completes.
	builtDtbRelPath = "arch/arm64/boot/dts/nvidia"
)

// archive describes one release archive the operator must download and the
// sole top-level directory it is expected to unpack into.
type archive struct {
	name    string
	topDir  string
	purpose string
}

// archivesFor returns the archives required to build the given release, in
// the order they are extracted.
func archivesFor(target release.Release) []archive {
	label := target.String()

	return []archive{
		{
			name:    fmt.Sprintf("Jetson_Linux_R%s_aarch64.tbz2", label),
			topDir:  bspSubdir,
			purpose: "board support package",
		},
		{
			name:    fmt.Sprintf("Public_Sources_R%s_aarch64.tbz2", label),
			topDir:  sourcesSubdir,
			purpose: "kernel sources",
		},
	}
}

// markerPath returns the run marker location.
func markerPath() string {
	return filepath.Join(os.TempDir(), MarkerFilename)
}

// IsUpgradeRunningNow checks presence of the run marker and attempts
// recovery if it looks stale. A kernel build can take hours, so staleness is
// judged by whether a peer process is still alive rather than by age.
func IsUpgradeRunningNow(ctx context.Context) bool {
	_, err := os.Stat(markerPath())
	if err == nil {
		if peerProcessExists() {
			return true
		}

		logger.Info(ctx, "Run marker is stale, no peer process found, removing it")

		if err = os.Remove(markerPath()); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		return false
	}

	logger.Infof(ctx, "Unable to read run marker: %v", err)

	return false
}

// peerProcessExists reports whether another process with our executable name
// is alive. When the process table cannot be read, the marker is trusted.
func peerProcessExists() bool {
	processList, err := ps.Processes()
	if err != nil {
		return true
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == executableName {
			return true
		}
	}

	return false
}

// createMarker writes the run marker.
func createMarker() error {
	marker, err := os.Create(markerPath())
	if err != nil {
		return fmt.Errorf("create run marker: %w", err)
	}

	if err = marker.Close(); err != nil {
		return fmt.Errorf("close run marker: %w", err)
	}

	return nil
}

// removeMarker deletes the run marker; a missing marker is not an error.
func removeMarker() {
	_ = os.Remove(markerPath())
}
