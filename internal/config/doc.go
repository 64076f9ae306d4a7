// Package config defines filesystem and toolchain settings used by the
// upgrade and revert flows and provides helpers to load, validate and save
// them in YAML format.
//
// Every path setting has a device-appropriate default, so a configuration
// file is optional.
package config
