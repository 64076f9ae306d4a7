package backup

import (
	"fmt"
	"strings"
	"time"

	"github.com/tegra-tools/jetson-kernel-upgrade/internal/domain/release"
)

const (
	// recordSuffix is appended to the release identifier to name a record
	// directory under the backup root.
	recordSuffix = "_backup"

	// manifestFilename stores record metadata and boot file checksums.
	manifestFilename = "backup-manifest.yaml"

	// Subtree layout inside a record, mirroring the live system.
	bootSubdir    = "boot"
	modulesSubdir = "modules"

	// Boot partition entries captured by a record.
	bootImageFilename  = "Image"
	bootInitrdFilename = "initrd"
	dtbSubdir          = "dtb"
)

// Record describes one stored snapshot of boot and module state.
// Records are immutable once created; they are deleted only by explicit
// operator action outside this tool.
type Record struct {
	// SourceRelease is the release the snapshot was taken from.
	SourceRelease release.Release
	// Path is the record directory under the backup root.
	Path string
	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time
}

// String renders the record for prompts and logs.
func (r *Record) String() string {
	return fmt.Sprintf("%s (taken %s)", r.SourceRelease, r.CreatedAt.Format(time.RFC3339))
}

// recordDirName derives the deterministic directory name for a release.
func recordDirName(r release.Release) string {
	return r.String() + recordSuffix
}

// releaseFromDirName recovers the release from a record directory name.
func releaseFromDirName(name string) (release.Release, bool) {
	if !strings.HasSuffix(name, recordSuffix) {
		return release.Release{}, false
	}

	r, err := release.Parse(strings.TrimSuffix(name, recordSuffix))
	if err != nil {
		return release.Release{}, false
	}

	return r, true
}

// manifest is the YAML document written at record creation time.
type manifest struct {
	// Release is the source release identifier.
	Release string `yaml:"release"`
	// CreatedAt is the snapshot timestamp.
	CreatedAt time.Time `yaml:"created_at"`
	// Checksums maps record-relative boot file paths to their
	// base64-encoded SHA-512 checksums.
	Checksums map[string]string `yaml:"checksums"`
}
