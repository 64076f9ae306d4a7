package upgrade

// Stage identifies how far a pipeline run has progressed. Stages advance
// monotonically; a failed run keeps the last stage it completed.
type Stage int

const (
	// StageResolving is the initial stage: the target release is being
	// resolved and the environment checked.
	StageResolving Stage = iota
	// StageArtifactsReady means both release archives were found.
	StageArtifactsReady
	// StageExtracted means the archives were unpacked into the workspace.
	StageExtracted
	// StageConfigured means the kernel source tree is configured.
	StageConfigured
	// StageBuilt means the kernel image, device trees and modules compiled.
	StageBuilt
	// StageBackedUp means the live boot state was snapshotted.
	StageBackedUp
	// StageInstalled means the new artifacts replaced the live ones.
	StageInstalled
	// StageDone means the run finished; only a reboot remains.
	StageDone
)

// String renders the stage for logs and the simulation report.
func (s Stage) String() string {
	switch s {
	case StageResolving:
		return "resolving"
	case StageArtifactsReady:
		return "artifacts-ready"
	case StageExtracted:
		return "extracted"
	case StageConfigured:
		return "configured"
	case StageBuilt:
		return "built"
	case StageBackedUp:
		return "backed-up"
	case StageInstalled:
		return "installed"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}
