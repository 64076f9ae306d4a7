package revert

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/tegra-tools/jetson-kernel-upgrade/internal/catalog"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/config"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/decision"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/device"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/domain/release"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/logger"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/repository/backup"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/resolver"
)

// Options are inputs accepted by the revert entry point.
type Options struct {
	// Requested optionally names the release whose backup to restore, in
	// any form the resolver accepts. Empty means pick among existing
	// records.
	Requested string
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// AssumeYes runs unattended: the restore confirmation is answered yes
	// and an ambiguous record choice fails fast.
	AssumeYes bool
	// Quiet suppresses informational logging.
	Quiet bool
}

// runner holds the state of one revert execution.
type runner struct {
	cfg       *config.Config
	provider  decision.Provider
	backups   backup.Manager
	requested string
}

// Run executes the revert flow and is the public entry point for the CLI.
// An operator abort surfaces as decision.ErrAborted.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "revert")

	if opts.Quiet {
		logger.SetLevel(zapcore.WarnLevel)
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = config.DefaultConfigFilename
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	kernelRelease, err := device.ActiveKernelRelease()
	if err != nil {
		return err
	}

	r := &runner{
		cfg:       cfg,
		backups:   backup.NewFileManager(cfg.BackupRoot, cfg.BootDir, filepath.Join(cfg.ModulesDir, kernelRelease)),
		requested: opts.Requested,
	}

	if opts.AssumeYes {
		r.provider = decision.Unattended(true)
	} else {
		r.provider = decision.Interactive()
	}

	if err = r.run(ctx); err != nil {
		if errors.Is(err, decision.ErrAborted) {
			logger.Info(ctx, "Revert stopped by the operator")
		} else {
			logger.ErrorKV(ctx, "Revert failed", "error", err)
		}

		return err
	}

	return nil
}

// run selects a record, confirms and restores it.
func (r *runner) run(ctx context.Context) error {
	requested, err := r.requestedRelease(ctx)
	if err != nil {
		return err
	}

	record, err := r.backups.Select(ctx, requested)

	var ambiguity *backup.AmbiguousSelectionError
	if errors.As(err, &ambiguity) {
		record, err = r.chooseRecord(ctx, ambiguity)
	}

	if err != nil {
		return err
	}

	proceed, err := r.provider.Confirm(ctx,
		fmt.Sprintf("Restore the backup of release %s over the live system?", record.SourceRelease), false)
	if err != nil {
		return err
	}

	if !proceed {
		return decision.ErrAborted
	}

	if err = r.backups.Restore(ctx, record); err != nil {
		var partial *backup.PartialRestoreError
		if errors.As(err, &partial) {
			logger.ErrorKV(ctx, "Live system is inconsistent, do not reboot until resolved",
				"record", partial.Record.Path)
		}

		return err
	}

	logger.InfoKV(ctx, "Revert finished, reboot to start the restored kernel",
		"release", record.SourceRelease)

	return nil
}

// requestedRelease resolves the operator's optional release request into a
// canonical identifier. A multi-candidate keyword goes through the decision
// provider, same as the upgrade flow.
func (r *runner) requestedRelease(ctx context.Context) (*release.Release, error) {
	if strings.TrimSpace(r.requested) == "" {
		return nil, nil //nolint:nilnil // No request means pick among existing records.
	}

	res, err := resolver.Resolve(r.requested, release.Release{}, catalog.Default())

	var ambiguity *resolver.AmbiguityError
	if errors.As(err, &ambiguity) {
		target, chooseErr := r.chooseRelease(ctx, ambiguity)
		if chooseErr != nil {
			return nil, chooseErr
		}

		return &target, nil
	}

	if err != nil {
		return nil, err
	}

	return &res.Target, nil
}

// chooseRelease settles an ambiguous release request, preserving candidate
// order.
func (r *runner) chooseRelease(ctx context.Context, ambiguity *resolver.AmbiguityError) (release.Release, error) {
	cat := catalog.Default()
	options := make([]string, 0, len(ambiguity.Candidates))

	for _, candidate := range ambiguity.Candidates {
		label := candidate.String()
		if info, ok := cat.Info(candidate); ok {
			label = fmt.Sprintf("%s (JetPack %s, Ubuntu %s)", label, info.SDK, info.Distribution)
		}

		options = append(options, label)
	}

	index, err := r.provider.ChooseOne(ctx,
		fmt.Sprintf("%q matches several releases", ambiguity.Input), options)
	if err != nil {
		return release.Release{}, err
	}

	return ambiguity.Candidates[index], nil
}

// chooseRecord settles an ambiguous selection through the decision
// provider, preserving record order.
func (r *runner) chooseRecord(ctx context.Context, ambiguity *backup.AmbiguousSelectionError) (*backup.Record, error) {
	options := make([]string, 0, len(ambiguity.Records))

	for _, record := range ambiguity.Records {
		label := record.SourceRelease.String()
		if !record.CreatedAt.IsZero() {
			label = fmt.Sprintf("%s (taken %s)", label, record.CreatedAt.Format("2006-01-02 15:04"))
		}

		options = append(options, label)
	}

	index, err := r.provider.ChooseOne(ctx, "Several backup records exist", options)
	if err != nil {
		return nil, err
	}

	return ambiguity.Records[index], nil
}
