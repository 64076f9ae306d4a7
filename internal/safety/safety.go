package safety

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned when a path escapes its designated root,
// contains a symbolic link, or enumerates entries outside its own subtree.
var ErrUnsafePath = errors.New("unsafe path")

// ValidateBackupPath verifies that path is safe to read or write as a
// backup record location under root:
//
//   - path must be a strict descendant of root (no "../" traversal),
//   - no component below path may be a symbolic link,
//   - every entry enumerated below path must stay inside path's subtree.
//
// A path that does not exist yet passes the walk checks trivially; the
// containment check still applies, so records can be validated before
// creation as well as before restore.
func ValidateBackupPath(path, root string) error {
	absRoot, err := filepath.Abs(filepath.Clean(root))
	if err != nil {
		return fmt.Errorf("resolve backup root: %w", err)
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("resolve backup path: %w", err)
	}

	if !isStrictDescendant(absPath, absRoot) {
		return fmt.Errorf("%w: %s escapes backup root %s", ErrUnsafePath, path, root)
	}

	if _, err = os.Lstat(absPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("inspect backup path: %w", err)
	}

	return walkForViolations(absPath)
}

// walkForViolations rejects symlinks and entries that somehow resolve
// outside the subtree (race-created links, prepared archives).
func walkForViolations(subtree string) error {
	return filepath.WalkDir(subtree, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("enumerate %s: %w", p, err)
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: symbolic link at %s", ErrUnsafePath, p)
		}

		if p != subtree && !isStrictDescendant(p, subtree) {
			return fmt.Errorf("%w: %s enumerated outside %s", ErrUnsafePath, p, subtree)
		}

		return nil
	})
}

// ScanForSymlinks walks dir and returns the symbolic links found, in
// deterministic lexical walk order. The caller decides per link whether to
// remove it, skip it, or abort the run. A missing dir yields an empty list.
func ScanForSymlinks(dir string) ([]string, error) {
	var links []string

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir && errors.Is(err, os.ErrNotExist) {
				return filepath.SkipAll
			}

			return fmt.Errorf("scan %s: %w", p, err)
		}

		if d.Type()&fs.ModeSymlink != 0 {
			links = append(links, p)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return links, nil
}

// isStrictDescendant reports whether p lies strictly below dir.
func isStrictDescendant(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}

	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
