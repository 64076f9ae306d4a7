package backup

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	goupdate "github.com/doitdistributed/go-update"
	"gopkg.in/yaml.v3"

	"github.com/tegra-tools/jetson-kernel-upgrade/internal/domain/release"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/logger"
	"github.com/tegra-tools/jetson-kernel-upgrade/internal/safety"
)

var (
	// ErrBackupIO indicates a failed snapshot write. The partially written
	// record directory is left in place so the operator can inspect it;
	// the caller must not proceed to install.
	ErrBackupIO = errors.New("backup is incomplete")

	// ErrBackupNotFound indicates that no record matches the selection.
	ErrBackupNotFound = errors.New("backup record not found")

	// ErrRecordExists indicates that a record for the requested release is
	// already on disk. Records are never replaced implicitly; replacing
	// one takes an explicit operator decision followed by Remove.
	ErrRecordExists = errors.New("a backup record for this release already exists")

	// ErrRestore indicates a failed restore. When any live file was
	// already replaced the error is a *PartialRestoreError, which wraps
	// ErrRestore; a bare ErrRestore means nothing was touched.
	ErrRestore = errors.New("restore failed")
)

// AmbiguousSelectionError is returned by Select when several records exist
// and none was requested explicitly. The caller must obtain a selection.
type AmbiguousSelectionError struct {
	// Records are the candidates in enumeration order.
	Records []*Record
}

// Error lists the candidates without picking one.
func (e *AmbiguousSelectionError) Error() string {
	names := make([]string, 0, len(e.Records))
	for _, r := range e.Records {
		names = append(names, r.SourceRelease.String())
	}

	return fmt.Sprintf("several backup records exist (%s); specify one explicitly", strings.Join(names, ", "))
}

// PartialRestoreError reports a restore that began replacing live files but
// failed before finishing. The live system is inconsistent: the operator
// must resolve it manually before rebooting.
type PartialRestoreError struct {
	// Record is the snapshot that was being restored.
	Record *Record
	// Err is the failure that interrupted the restore.
	Err error
}

// Error spells out the inconsistent state explicitly.
func (e *PartialRestoreError) Error() string {
	return fmt.Sprintf(
		"partial restore of %s: some live files were replaced before the failure: %s",
		e.Record.SourceRelease, e.Err)
}

// Unwrap exposes both the restore class and the underlying cause.
func (e *PartialRestoreError) Unwrap() []error {
	return []error{ErrRestore, e.Err}
}

// Manager defines snapshot operations over the live boot state.
type Manager interface {
	// Create snapshots the live boot files and active module tree into a
	// new record named after the given release.
	Create(ctx context.Context, current release.Release) (*Record, error)
	// List enumerates existing records in filesystem enumeration order.
	List(ctx context.Context) ([]*Record, error)
	// Select picks a record: exact match when requested is non-nil, the
	// sole record when exactly one exists, otherwise an
	// *AmbiguousSelectionError.
	Select(ctx context.Context, requested *release.Release) (*Record, error)
	// Restore copies a record's boot files and module tree back to their
	// live locations.
	Restore(ctx context.Context, record *Record) error
	// Remove deletes a record. Callers invoke it only on an explicit
	// operator decision; nothing in this package removes records on its
	// own.
	Remove(ctx context.Context, record *Record) error
}

// FileManager implements Manager on the local filesystem.
type FileManager struct {
	// root is the backup root directory; one record directory per release.
	root string
	// bootDir is the live boot partition location.
	bootDir string
	// moduleDir is the active kernel module directory.
	moduleDir string
}

// NewFileManager creates a manager for the given backup root and live
// system locations.
func NewFileManager(root, bootDir, moduleDir string) *FileManager {
	return &FileManager{
		root:      filepath.Clean(root),
		bootDir:   filepath.Clean(bootDir),
		moduleDir: filepath.Clean(moduleDir),
	}
}

// Create snapshots boot image, initrd, device-tree directory and the active
// module tree. An existing record for the same release is ErrRecordExists.
// On failure the partial record stays on disk for inspection and the error
// wraps ErrBackupIO.
func (m *FileManager) Create(ctx context.Context, current release.Release) (*Record, error) {
	recordPath := filepath.Join(m.root, recordDirName(current))

	if err := safety.ValidateBackupPath(recordPath, m.root); err != nil {
		return nil, err
	}

	// Never replace a record implicitly. After a failed install this
	// record may be the only good snapshot of the pre-upgrade system, and
	// a re-run would capture the half-upgraded state over it.
	if _, err := os.Lstat(recordPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrRecordExists, recordPath)
	}

	record := &Record{
		SourceRelease: current,
		Path:          recordPath,
		CreatedAt:     time.Now().UTC(),
	}

	checksums := make(map[string]string, 2)

	for _, name := range []string{bootImageFilename, bootInitrdFilename} {
		src := filepath.Join(m.bootDir, name)
		dst := filepath.Join(recordPath, bootSubdir, name)

		if err := copyFile(src, dst); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBackupIO, err)
		}

		sum, err := FileChecksum(dst)
		if err != nil {
			return nil, fmt.Errorf("%w: checksum %s: %w", ErrBackupIO, dst, err)
		}

		checksums[filepath.Join(bootSubdir, name)] = base64.StdEncoding.EncodeToString(sum)

		logger.InfoKV(ctx, "Captured boot file", "file", name)
	}

	if err := copyTree(filepath.Join(m.bootDir, dtbSubdir), filepath.Join(recordPath, bootSubdir, dtbSubdir)); err != nil {
		return nil, fmt.Errorf("%w: device-tree directory: %w", ErrBackupIO, err)
	}

	if err := copyTree(m.moduleDir, filepath.Join(recordPath, modulesSubdir)); err != nil {
		return nil, fmt.Errorf("%w: module tree: %w", ErrBackupIO, err)
	}

	logger.InfoKV(ctx, "Captured module tree", "source", m.moduleDir)

	if err := m.writeManifest(record, checksums); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackupIO, err)
	}

	logger.InfoKV(ctx, "Backup record created", "path", recordPath)

	return record, nil
}

// List enumerates record directories under the backup root. A missing root
// simply means no records yet.
func (m *FileManager) List(_ context.Context) ([]*Record, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("enumerate backup root: %w", err)
	}

	var records []*Record

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		source, ok := releaseFromDirName(entry.Name())
		if !ok {
			continue
		}

		record := &Record{
			SourceRelease: source,
			Path:          filepath.Join(m.root, entry.Name()),
		}

		if mf, mfErr := m.readManifest(record.Path); mfErr == nil {
			record.CreatedAt = mf.CreatedAt
		} else if info, infoErr := entry.Info(); infoErr == nil {
			record.CreatedAt = info.ModTime()
		}

		records = append(records, record)
	}

	return records, nil
}

// Select resolves the operator's record choice.
func (m *FileManager) Select(ctx context.Context, requested *release.Release) (*Record, error) {
	records, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	if requested != nil {
		for _, record := range records {
			if record.SourceRelease.Equal(*requested) {
				return record, nil
			}
		}

		return nil, fmt.Errorf("%w: %s", ErrBackupNotFound, requested)
	}

	switch len(records) {
	case 0:
		return nil, fmt.Errorf("%w: backup root %s holds no records", ErrBackupNotFound, m.root)
	case 1:
		return records[0], nil
	default:
		return nil, &AmbiguousSelectionError{Records: records}
	}
}

// Restore copies a record back over the live system. Boot files go first,
// verified against the manifest checksums; the device-tree directory and the
// module tree follow. Once the first live file has been replaced, any later
// failure is a *PartialRestoreError.
func (m *FileManager) Restore(ctx context.Context, record *Record) error {
	if err := safety.ValidateBackupPath(record.Path, m.root); err != nil {
		return err
	}

	mf, err := m.readManifest(record.Path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRestore, err)
	}

	replaced := false

	for _, name := range []string{bootImageFilename, bootInitrdFilename} {
		if err = m.restoreBootFile(record, mf, name); err != nil {
			if replaced {
				return &PartialRestoreError{Record: record, Err: err}
			}

			return fmt.Errorf("%w: %w", ErrRestore, err)
		}

		replaced = true

		logger.InfoKV(ctx, "Restored boot file", "file", name)
	}

	if err = copyTree(filepath.Join(record.Path, bootSubdir, dtbSubdir), filepath.Join(m.bootDir, dtbSubdir)); err != nil {
		return &PartialRestoreError{Record: record, Err: fmt.Errorf("device-tree directory: %w", err)}
	}

	if err = copyTree(filepath.Join(record.Path, modulesSubdir), m.moduleDir); err != nil {
		return &PartialRestoreError{Record: record, Err: fmt.Errorf("module tree: %w", err)}
	}

	logger.InfoKV(ctx, "Restore complete", "release", record.SourceRelease)

	return nil
}

// Remove deletes a record directory after validating its path.
func (m *FileManager) Remove(ctx context.Context, record *Record) error {
	if err := safety.ValidateBackupPath(record.Path, m.root); err != nil {
		return err
	}

	if err := os.RemoveAll(record.Path); err != nil {
		return fmt.Errorf("remove record %s: %w", record.Path, err)
	}

	logger.InfoKV(ctx, "Backup record removed", "path", record.Path)

	return nil
}

// restoreBootFile applies one boot file with checksum verification, so a
// corrupted record is rejected before it replaces a live file.
func (m *FileManager) restoreBootFile(record *Record, mf *manifest, name string) error {
	relPath := filepath.Join(bootSubdir, name)

	encoded, ok := mf.Checksums[relPath]
	if !ok {
		return fmt.Errorf("manifest has no checksum for %s", relPath)
	}

	sum, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decode checksum for %s: %w", relPath, err)
	}

	in, err := os.Open(filepath.Clean(filepath.Join(record.Path, relPath)))
	if err != nil {
		return fmt.Errorf("open %s: %w", relPath, err)
	}

	defer func() {
		_ = in.Close()
	}()

	options := goupdate.Options{
		TargetPath: filepath.Join(m.bootDir, name),
		TargetMode: filePermissions,
		Checksum:   sum,
		Hash:       ChecksumFunction,
	}

	if err = goupdate.Apply(in, options); err != nil {
		return fmt.Errorf("apply %s: %w", relPath, err)
	}

	// Apply leaves a .old file next to the target; drop it.
	oldFile := filepath.Join(m.bootDir, name+".old")
	if _, err = os.Stat(oldFile); err == nil {
		_ = os.Remove(oldFile)
	}

	return nil
}

// writeManifest persists record metadata next to the snapshot content.
func (m *FileManager) writeManifest(record *Record, checksums map[string]string) error {
	doc := manifest{
		Release:   record.SourceRelease.String(),
		CreatedAt: record.CreatedAt,
		Checksums: checksums,
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	path := filepath.Join(record.Path, manifestFilename)
	if err = os.WriteFile(path, data, filePermissions); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// readManifest loads record metadata.
func (m *FileManager) readManifest(recordPath string) (*manifest, error) {
	contents, err := os.ReadFile(filepath.Clean(filepath.Join(recordPath, manifestFilename)))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var doc manifest
	if err = yaml.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}

	return &doc, nil
}
