package upgrade

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tegra-tools/jetson-kernel-upgrade/internal/domain/release"
)

func TestArchivesFor(t *testing.T) {
	t.Parallel()

	archives := archivesFor(release.MustParse("35.4.1"))
	require.Len(t, archives, 2)
	require.Equal(t, "Jetson_Linux_R35.4.1_aarch64.tbz2", archives[0].name)
	require.Equal(t, bspSubdir, archives[0].topDir)
	require.Equal(t, "Public_Sources_R35.4.1_aarch64.tbz2", archives[1].name)
	require.Equal(t, sourcesSubdir, archives[1].topDir)
}

func TestStageOrderAndNames(t *testing.T) {
	t.Parallel()

	require.Less(t, StageResolving, StageArtifactsReady)
	require.Less(t, StageBuilt, StageBackedUp)
	require.Less(t, StageBackedUp, StageInstalled)
	require.Equal(t, "backed-up", StageBackedUp.String())
	require.Equal(t, "done", StageDone.String())
	require.Equal(t, "unknown", Stage(42).String())
}
