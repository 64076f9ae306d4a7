package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tegra-tools/jetson-kernel-upgrade/internal/config"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/decision"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/service/revert"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/service/upgrade"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// assumeYes runs unattended, answering yes at confirmations.
	assumeYes bool

	// quiet suppresses informational output.
	quiet bool

	// simulate walks the pipeline without changing anything.
	simulate bool

	// rootCmd represents the base command for building and installing a
	// kernel release.
	rootCmd = &cobra.Command{
		Use:   "jetson-kernel-upgrade <release>",
		Short: "Build and install a kernel release on a Jetson device",
		Long: `Resolves a free-form release request (an L4T release, a JetPack version,
an Ubuntu codename or a kernel branch), builds the matching kernel from
the official archives, backs up the live boot state and installs the
result. Downgrades and same-release rebuilds use the same pipeline.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &upgrade.Options{
				Target:     args[0],
				ConfigPath: configPath,
				AssumeYes:  assumeYes,
				Quiet:      quiet,
				Simulate:   simulate,
			}

			return upgrade.Run(ctx, options)
		},
	}

	// revertCmd restores a backup record taken by an earlier upgrade.
	revertCmd = &cobra.Command{
		Use:           "revert [release]",
		Short:         "Restore a backup record taken by an earlier upgrade",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &revert.Options{
				ConfigPath: configPath,
				AssumeYes:  assumeYes,
				Quiet:      quiet,
			}

			if len(args) > 0 {
				options.Requested = args[0]
			}

			return revert.Run(ctx, options)
		},
	}
)

// Execute runs the CLI. A deliberate operator abort is a graceful outcome
// and exits zero; every other error exits with non-zero status.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, decision.ErrAborted) {
			return
		}

		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "run unattended, assume yes at confirmations")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress informational output")
	rootCmd.Flags().BoolVarP(&simulate, "simulate", "n", false, "walk the pipeline without changing anything")

	rootCmd.AddCommand(revertCmd)
}
