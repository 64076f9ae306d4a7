package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Config holds filesystem locations and toolchain settings shared by the
// upgrade and revert flows. All paths are absolute after Validate.
type Config struct {
	// WorkingRoot is the directory holding one build workspace per release.
	WorkingRoot string `yaml:"working_root"`
	// BackupRoot is the directory holding one backup record per release.
	// Defaults to <working_root>/backups.
	BackupRoot string `yaml:"backup_root"`
	// DownloadDir is where the operator places the release archives.
	DownloadDir string `yaml:"download_dir"`
	// BootDir is the live boot partition mount point.
	BootDir string `yaml:"boot_dir"`
	// ModulesDir is the parent of per-kernel module directories.
	ModulesDir string `yaml:"modules_dir"`
	// IdentityFile is the L4T release identity file on the device.
	IdentityFile string `yaml:"identity_file"`
	// ModelFile is the device-tree model descriptor.
	ModelFile string `yaml:"model_file"`
	// CrossCompileEnv names the environment variable carrying the
	// cross toolchain prefix when building off-device.
	CrossCompileEnv string `yaml:"cross_compile_env"`
}

const (
	// DefaultConfigFilename is the default filename for tool settings.
	DefaultConfigFilename = "jetson-kernel-upgrade.yaml"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	defaultWorkingRoot     = "~/jetson-kernel"
	defaultDownloadDir     = "~/Downloads"
	defaultBootDir         = "/boot"
	defaultModulesDir      = "/lib/modules"
	defaultIdentityFile    = "/etc/nv_tegra_release"
	defaultModelFile       = "/proc/device-tree/model"
	defaultCrossCompileEnv = "CROSS_COMPILE"

	// backupSubdir is appended to the working root when no backup root is set.
	backupSubdir = "backups"
)

// errConfigIsNotSet is returned when a nil configuration is provided.
var errConfigIsNotSet = errors.New("configuration is not set")

// Default returns a configuration with every field set to its default value.
func Default() *Config {
	cfg := new(Config)
	if err := Validate(cfg); err != nil {
		// Defaults always validate; this only trips on a broken home lookup.
		panic(err)
	}

	return cfg
}

// Load reads configuration from the provided path and validates essential fields.
// A missing file is not an error: defaults are used instead, so the tool works
// out of the box on a stock device.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills in defaults and expands "~" in every configured path.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.WorkingRoot == "" {
		cfg.WorkingRoot = defaultWorkingRoot
	}

	if cfg.DownloadDir == "" {
		cfg.DownloadDir = defaultDownloadDir
	}

	if cfg.BootDir == "" {
		cfg.BootDir = defaultBootDir
	}

	if cfg.ModulesDir == "" {
		cfg.ModulesDir = defaultModulesDir
	}

	if cfg.IdentityFile == "" {
		cfg.IdentityFile = defaultIdentityFile
	}

	if cfg.ModelFile == "" {
		cfg.ModelFile = defaultModelFile
	}

	if cfg.CrossCompileEnv == "" {
		cfg.CrossCompileEnv = defaultCrossCompileEnv
	}

	for _, p := range []*string{
		&cfg.WorkingRoot,
		&cfg.BackupRoot,
		&cfg.DownloadDir,
		&cfg.BootDir,
		&cfg.ModulesDir,
		&cfg.IdentityFile,
		&cfg.ModelFile,
	} {
		if *p == "" {
			continue
		}

		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand path %q: %w", *p, err)
		}

		*p = filepath.Clean(expanded)
	}

	if cfg.BackupRoot == "" {
		cfg.BackupRoot = filepath.Join(cfg.WorkingRoot, backupSubdir)
	}

	return nil
}
