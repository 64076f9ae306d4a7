// Package device reads the live-system inputs the pipeline consults:
// the release identity file, the device model descriptor, the running
// kernel release, and the cross-compilation environment. All of these are
// read-only; nothing in this package writes to the device.
package device
