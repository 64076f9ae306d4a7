// Package upgrade drives a kernel upgrade (or downgrade, or same-release
// rebuild) as an ordered pipeline of stages: resolve the target, verify the
// release archives, extract them, configure and build the kernel, back up
// the live boot state and install the freshly built artifacts.
//
// Stages run strictly in order and the pipeline stops on the first failure,
// so a stage only ever executes after everything it depends on succeeded.
// In simulate mode every side-effectful step is recorded instead of
// executed and the pipeline still walks all the way to completion.
package upgrade
