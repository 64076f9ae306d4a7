package upgrade

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	goupdate "github.com/doitdistributed/go-update"
	"github.com/fatih/color"
	"go.uber.org/zap/zapcore"

	"github.com/tegra-tools/jetson-kernel-upgrade/internal/catalog"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/config"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/decision"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/device"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/domain/release"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/logger"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/repository/backup"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/resolver"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/safety"
)

var (
	// ErrMissingArtifact indicates that required release archives were not
	// found in the download directory during an unattended run.
	ErrMissingArtifact = errors.New("release archives are missing")

	// ErrExtraction indicates a failed or suspicious archive extraction.
	// The workspace may hold a partial tree; re-running re-extracts it.
	ErrExtraction = errors.New("archive extraction failed")

	// ErrBuildFailure indicates that configuring or building the kernel
	// source tree failed. The build tool's own output explains why.
	ErrBuildFailure = errors.New("kernel build failed")

	errAlreadyRunning = errors.New("an upgrade is already running")
	errNoToolchain    = errors.New("cross toolchain is not configured")
	errUnknownCurrent = errors.New("current release is unknown, backup record cannot be named")
)

// Options are inputs accepted by the upgrade entry point.
type Options struct {
	// Target is the operator's free-form release request.
	Target string
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// AssumeYes runs unattended: confirmations are answered yes and
	// decisions without a safe default fail fast.
	AssumeYes bool
	// Quiet suppresses informational logging.
	Quiet bool
	// Simulate records every side-effectful step instead of executing it.
	Simulate bool
}

// runner holds the mutable state of a single pipeline execution. It is
// intentionally unexported; call Run(ctx, opts) from callers.
type runner struct {
	cfg      *config.Config
	cat      *catalog.Catalog
	provider decision.Provider
	backups  backup.Manager
	tools    ToolRunner

	targetInput string
	simulate    bool
	unattended  bool
	native      bool

	stage     Stage
	current   release.Release
	model     string
	res       *resolver.Resolution
	buildEnv  []string
	workDir   string
	kernelDir string
	moduleDir string
	actions   []string
}

// Run executes the upgrade pipeline and is the public entry point for the
// CLI. An operator abort surfaces as decision.ErrAborted.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "upgrade")

	if opts.Quiet {
		logger.SetLevel(zapcore.WarnLevel)
	}

	r, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	if !r.simulate {
		defer removeMarker()
	}

	if err = r.run(ctx); err != nil {
		if errors.Is(err, decision.ErrAborted) {
			logger.InfoKV(ctx, "Run stopped by the operator", "stage", r.stage)
		} else {
			logger.ErrorKV(ctx, "Upgrade failed", "stage", r.stage, "error", err)
		}

		return err
	}

	return nil
}

// newRunner loads settings, guards against concurrent runs and assembles
// the pipeline dependencies.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigFilename
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	// A simulated run touches nothing, so it neither respects nor writes
	// the run marker.
	if !opts.Simulate {
		if IsUpgradeRunningNow(ctx) {
			return nil, errAlreadyRunning
		}

		if err = createMarker(); err != nil {
			return nil, err
		}
	}

	r := &runner{
		cfg:         cfg,
		cat:         catalog.Default(),
		tools:       ExecRunner{},
		targetInput: opts.Target,
		simulate:    opts.Simulate,
		unattended:  opts.AssumeYes,
		native:      device.IsNative(),
	}

	if opts.AssumeYes {
		r.provider = decision.Unattended(true)
	} else {
		r.provider = decision.Interactive()
	}

	if kernelRelease, uErr := device.ActiveKernelRelease(); uErr == nil {
		r.moduleDir = filepath.Join(cfg.ModulesDir, kernelRelease)
	} else if !opts.Simulate {
		removeMarker()

		return nil, uErr
	}

	r.backups = backup.NewFileManager(cfg.BackupRoot, cfg.BootDir, r.moduleDir)

	return r, nil
}

// run walks the stages in order, stopping on the first failure.
func (r *runner) run(ctx context.Context) error {
	steps := []struct {
		completes Stage
		fn        func(context.Context) error
	}{
		{StageArtifactsReady, r.ensureArtifacts},
		{StageExtracted, r.extract},
		{StageConfigured, r.configure},
		{StageBuilt, r.build},
		{StageBackedUp, r.backUp},
		{StageInstalled, r.install},
		{StageDone, r.finish},
	}

	if err := r.resolve(ctx); err != nil {
		return err
	}

	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return err
		}

		r.stage = step.completes

		logger.InfoKV(ctx, "Stage complete", "stage", r.stage)
	}

	return nil
}

// resolve turns the operator's input into a canonical release, checks the
// environment and lays out workspace paths.
func (r *runner) resolve(ctx context.Context) error {
	r.stage = StageResolving

	current, err := device.DetectCurrentRelease(r.cfg.IdentityFile)

	switch {
	case err == nil:
		r.current = current
	case errors.Is(err, device.ErrNoIdentity):
		logger.Warn(ctx, "No release identity found, treating the current release as unknown")
	default:
		return err
	}

	res, err := resolver.Resolve(r.targetInput, r.current, r.cat)

	var ambiguity *resolver.AmbiguityError
	if errors.As(err, &ambiguity) {
		res, err = r.disambiguate(ctx, ambiguity)
	}

	if err != nil {
		return err
	}

	r.res = res

	logger.InfoKV(ctx, "Resolved target release",
		"input", r.targetInput,
		"release", res.Target,
		"sdk", res.SDK,
		"kernel", res.KernelBranch,
		"distribution", res.Distribution)

	if res.Rebuild {
		logger.Info(ctx, "Target equals the current release, performing a full rebuild")
	}

	r.model = device.ReadModel(r.cfg.ModelFile)
	if device.IndustrialWarningNeeded(r.model, res.Target) {
		warnColor := color.New(color.FgYellow, color.Bold)
		_, _ = warnColor.Fprintf(os.Stderr,
			"WARNING: release %s is below the minimum validated for Industrial-grade modules.\n",
			res.Target)
	}

	if r.native {
		r.buildEnv = []string{"ARCH=arm64"}
	} else {
		prefix, ok := device.CrossToolchainPrefix(r.cfg.CrossCompileEnv)
		if !ok {
			return fmt.Errorf("%w: set %s to the toolchain prefix", errNoToolchain, r.cfg.CrossCompileEnv)
		}

		logger.InfoKV(ctx, "Building off-device", "toolchain", prefix)

		r.buildEnv = []string{"ARCH=arm64", "CROSS_COMPILE=" + prefix}
	}

	r.buildEnv = append(r.buildEnv, "LOCALVERSION=-tegra")
	r.workDir = filepath.Join(r.cfg.WorkingRoot, res.Target.String())
	r.kernelDir = filepath.Join(r.workDir, sourcesSubdir)

	return nil
}

// disambiguate turns a multi-candidate keyword into one release via the
// decision provider, preserving candidate order.
func (r *runner) disambiguate(ctx context.Context, ambiguity *resolver.AmbiguityError) (*resolver.Resolution, error) {
	options := make([]string, 0, len(ambiguity.Candidates))

	for _, candidate := range ambiguity.Candidates {
		label := candidate.String()
		if info, ok := r.cat.Info(candidate); ok {
			label = fmt.Sprintf("%s (JetPack %s, Ubuntu %s)", label, info.SDK, info.Distribution)
		}

		options = append(options, label)
	}

	index, err := r.provider.ChooseOne(ctx,
		fmt.Sprintf("%q matches several releases", ambiguity.Input), options)
	if err != nil {
		return nil, err
	}

	return resolver.ForRelease(ambiguity.Input, ambiguity.Candidates[index], r.current, r.cat), nil
}

// ensureArtifacts loops until both release archives are present, asking the
// operator to supply missing ones. Unattended runs fail fast instead.
func (r *runner) ensureArtifacts(ctx context.Context) error {
	for {
		missing := r.missingArchives()
		if len(missing) == 0 {
			logger.InfoKV(ctx, "Release archives present", "dir", r.cfg.DownloadDir)
			return nil
		}

		if r.simulate {
			r.record("verify archives %s in %s", strings.Join(missing, ", "), r.cfg.DownloadDir)
			return nil
		}

		if r.unattended {
			return fmt.Errorf("%w: %s (looked in %s)",
				ErrMissingArtifact, strings.Join(missing, ", "), r.cfg.DownloadDir)
		}

		proceed, err := r.provider.Confirm(ctx,
			fmt.Sprintf("Missing %s in %s. Download them, then continue?",
				strings.Join(missing, ", "), r.cfg.DownloadDir), true)
		if err != nil {
			return err
		}

		if !proceed {
			return decision.ErrAborted
		}
	}
}

// missingArchives lists required archives absent from the download
// directory.
func (r *runner) missingArchives() []string {
	var missing []string

	for _, a := range archivesFor(r.res.Target) {
		if _, err := os.Stat(filepath.Join(r.cfg.DownloadDir, a.name)); err != nil {
			missing = append(missing, a.name)
		}
	}

	return missing
}

// extract unpacks both archives into the release workspace.
func (r *runner) extract(ctx context.Context) error {
	if r.simulate {
		r.record("extract release archives into %s", r.workDir)
		return nil
	}

	if err := os.MkdirAll(r.workDir, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	for _, a := range archivesFor(r.res.Target) {
		if err := r.extractArchive(ctx, a); err != nil {
			return err
		}
	}

	return nil
}

// extractArchive unpacks one archive into a scratch directory, verifies it
// holds exactly the documented top-level tree and moves that tree into the
// workspace. Unpacking to scratch first keeps a truncated or mislabeled
// archive from scribbling over the workspace.
func (r *runner) extractArchive(ctx context.Context, a archive) error {
	scratch, err := os.MkdirTemp(r.cfg.WorkingRoot, ".extract-")
	if err != nil {
		return fmt.Errorf("%w: scratch dir: %w", ErrExtraction, err)
	}

	defer func() {
		_ = os.RemoveAll(scratch)
	}()

	logger.InfoKV(ctx, "Extracting archive", "archive", a.name, "purpose", a.purpose)

	if err = r.tools.Run(ctx, scratch, nil, "tar", "-xpf", filepath.Join(r.cfg.DownloadDir, a.name)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrExtraction, a.name, err)
	}

	entries, err := os.ReadDir(scratch)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtraction, err)
	}

	if len(entries) == 0 {
		return fmt.Errorf("%w: %s unpacked to nothing", ErrExtraction, a.name)
	}

	for _, entry := range entries {
		if entry.Name() != a.topDir {
			return fmt.Errorf("%w: %s contains unexpected top-level entry %q",
				ErrExtraction, a.name, entry.Name())
		}
	}

	target := filepath.Join(r.workDir, a.topDir)

	// An interrupted earlier run may have left a partial tree behind.
	if err = os.RemoveAll(target); err != nil {
		return fmt.Errorf("%w: clear %s: %w", ErrExtraction, target, err)
	}

	if err = os.Rename(filepath.Join(scratch, a.topDir), target); err != nil {
		return fmt.Errorf("%w: move %s: %w", ErrExtraction, a.topDir, err)
	}

	return nil
}

// configure prepares the kernel source tree for building.
func (r *runner) configure(ctx context.Context) error {
	if r.simulate {
		r.record("configure the kernel source in %s", r.kernelDir)
		return nil
	}

	logger.InfoKV(ctx, "Configuring kernel source", "dir", r.kernelDir)

	if err := r.tools.Run(ctx, r.kernelDir, r.buildEnv, "make", "tegra_defconfig"); err != nil {
		return fmt.Errorf("%w: configure: %w", ErrBuildFailure, err)
	}

	return nil
}

// build compiles the kernel image, device trees and modules.
func (r *runner) build(ctx context.Context) error {
	if r.simulate {
		r.record("build the kernel image, device trees and modules")
		return nil
	}

	jobs := strconv.Itoa(runtime.NumCPU())

	logger.InfoKV(ctx, "Building kernel", "jobs", jobs)

	if err := r.tools.Run(ctx, r.kernelDir, r.buildEnv, "make", "-j", jobs, "Image", "dtbs", "modules"); err != nil {
		return fmt.Errorf("%w: %w", ErrBuildFailure, err)
	}

	return nil
}

// backUp remediates offending symlinks and snapshots the live boot state. A
// backup failure stops the pipeline before install.
func (r *runner) backUp(ctx context.Context) error {
	if err := r.remediateSymlinks(ctx); err != nil {
		return err
	}

	if r.simulate {
		r.record("snapshot %s and %s into %s", r.cfg.BootDir, r.moduleDir, r.cfg.BackupRoot)
		return nil
	}

	if r.current.IsZero() {
		return errUnknownCurrent
	}

	record, err := r.backups.Create(ctx, r.current)
	if errors.Is(err, backup.ErrRecordExists) {
		record, err = r.replaceExistingRecord(ctx)
	}

	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Live state backed up", "record", record.Path)

	return nil
}

// replaceExistingRecord handles a leftover record for the current release.
// The record may be the only good snapshot of the pre-upgrade system, so
// replacing it takes an explicit confirmation; unattended runs fail fast.
func (r *runner) replaceExistingRecord(ctx context.Context) (*backup.Record, error) {
	if r.unattended {
		return nil, fmt.Errorf("%w: remove it explicitly or re-run attended", backup.ErrRecordExists)
	}

	proceed, err := r.provider.Confirm(ctx,
		fmt.Sprintf("A backup record for release %s already exists. Replace it with a fresh snapshot?",
			r.current), false)
	if err != nil {
		return nil, err
	}

	if !proceed {
		return nil, decision.ErrAborted
	}

	existing, err := r.backups.Select(ctx, &r.current)
	if err != nil {
		return nil, err
	}

	if err = r.backups.Remove(ctx, existing); err != nil {
		return nil, err
	}

	return r.backups.Create(ctx, r.current)
}

// remediateSymlinks scans the directories about to be snapshotted and lets
// the operator decide the fate of each symlink found there.
func (r *runner) remediateSymlinks(ctx context.Context) error {
	for _, dir := range []string{r.cfg.BootDir, r.moduleDir} {
		if dir == "" {
			continue
		}

		links, err := safety.ScanForSymlinks(dir)
		if err != nil {
			return err
		}

		for _, link := range links {
			if err = r.remediateSymlink(ctx, link); err != nil {
				return err
			}
		}
	}

	return nil
}

// remediateSymlink handles one offending link.
func (r *runner) remediateSymlink(ctx context.Context, link string) error {
	if r.simulate {
		r.record("decide the fate of symlink %s", link)
		return nil
	}

	action, err := r.provider.RemediateSymlink(ctx, link)
	if err != nil {
		return err
	}

	switch action {
	case decision.SymlinkRemove:
		if err = os.Remove(link); err != nil {
			return fmt.Errorf("remove symlink %s: %w", link, err)
		}

		logger.InfoKV(ctx, "Removed symlink", "path", link)

		return nil
	case decision.SymlinkSkip:
		logger.WarnKV(ctx, "Keeping symlink, it will not be part of the backup", "path", link)
		return nil
	case decision.SymlinkAbort:
		return decision.ErrAborted
	default:
		return decision.ErrAborted
	}
}

// install replaces the live kernel image, device trees and module tree with
// the freshly built ones, after a final confirmation.
func (r *runner) install(ctx context.Context) error {
	proceed, err := r.confirm(ctx,
		fmt.Sprintf("Install release %s over the live system?", r.res.Target), false)
	if err != nil {
		return err
	}

	if !proceed {
		return decision.ErrAborted
	}

	if r.simulate {
		r.record("install the kernel image and device trees into %s", r.cfg.BootDir)
		r.record("install modules and refresh module dependency and initrd data")

		return nil
	}

	if err = r.installBootFiles(ctx); err != nil {
		return err
	}

	return r.installModules(ctx)
}

// installBootFiles places the built image and device trees on the boot
// partition.
func (r *runner) installBootFiles(ctx context.Context) error {
	target := filepath.Join(r.cfg.BootDir, "Image")

	if err := installFile(filepath.Join(r.kernelDir, builtImageRelPath), target); err != nil {
		return fmt.Errorf("install kernel image: %w", err)
	}

	logger.InfoKV(ctx, "Installed kernel image", "target", target)

	dtbTarget := filepath.Join(r.cfg.BootDir, "dtb")
	if err := os.MkdirAll(dtbTarget, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dtbTarget, err)
	}

	dtbSource := filepath.Join(r.kernelDir, builtDtbRelPath)
	if err := r.tools.Run(ctx, "", nil, "cp", "-r", dtbSource+"/.", dtbTarget); err != nil {
		return fmt.Errorf("install device trees: %w", err)
	}

	logger.InfoKV(ctx, "Installed device trees", "target", dtbTarget)

	return nil
}

// installModules runs the kernel's own module install target and refreshes
// the dependency and initrd data that describe the new module tree.
func (r *runner) installModules(ctx context.Context) error {
	// modules_install appends lib/modules itself.
	modRoot := filepath.Dir(filepath.Dir(r.cfg.ModulesDir))

	env := append(append([]string{}, r.buildEnv...), "INSTALL_MOD_PATH="+modRoot)
	if err := r.tools.Run(ctx, r.kernelDir, env, "make", "modules_install"); err != nil {
		return fmt.Errorf("install modules: %w", err)
	}

	if err := r.tools.Run(ctx, "", nil, "depmod", "-a"); err != nil {
		return fmt.Errorf("refresh module dependencies: %w", err)
	}

	if err := r.tools.Run(ctx, "", nil, "update-initramfs", "-u"); err != nil {
		return fmt.Errorf("rebuild initrd: %w", err)
	}

	logger.Info(ctx, "Installed kernel modules")

	return nil
}

// finish reports the outcome. Simulated runs replay the recorded actions.
func (r *runner) finish(ctx context.Context) error {
	if r.simulate {
		logger.Info(ctx, "Simulation finished, nothing was changed")

		for _, action := range r.actions {
			logger.Infof(ctx, "would %s", action)
		}

		return nil
	}

	logger.InfoKV(ctx, "Upgrade finished, reboot to start the new kernel", "release", r.res.Target)

	return nil
}

// confirm asks a yes/no question, auto-recording the answer in simulate
// mode so a simulation never suspends.
func (r *runner) confirm(ctx context.Context, prompt string, defaultYes bool) (bool, error) {
	if r.simulate {
		r.record("ask for confirmation: %s", prompt)
		return true, nil
	}

	return r.provider.Confirm(ctx, prompt, defaultYes)
}

// record notes one skipped side effect for the simulation report.
func (r *runner) record(format string, args ...any) {
	r.actions = append(r.actions, fmt.Sprintf(format, args...))
}

// installFile replaces one live file with the built artifact, cleaning up
// the .old file the apply leaves behind.
func installFile(src, dst string) error {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return err
	}

	defer func() {
		_ = in.Close()
	}()

	if err = goupdate.Apply(in, goupdate.Options{TargetPath: dst, TargetMode: 0o644}); err != nil {
		return err
	}

	oldFile := dst + ".old"
	if _, err = os.Stat(oldFile); err == nil {
		_ = os.Remove(oldFile)
	}

	return nil
}
