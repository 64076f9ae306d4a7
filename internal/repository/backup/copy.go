package backup

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	dirPermissions  = os.FileMode(0o755)
	filePermissions = os.FileMode(0o644)
)

// copyFile copies a regular file, creating parent directories as needed and
// preserving the source mode bits.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	if err = os.MkdirAll(filepath.Dir(dst), dirPermissions); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dst), err)
	}

	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}

	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()

		return fmt.Errorf("copy %s: %w", src, err)
	}

	if err = out.Close(); err != nil {
		return fmt.Errorf("flush %s: %w", dst, err)
	}

	return nil
}

// copyTree mirrors a directory tree. Symbolic links are not copied: records
// must stay link-free, and links deliberately kept by the operator during
// remediation simply do not make it into the snapshot.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", p, err)
		}

		rel, err := filepath.Rel(src, p)
		if err != nil {
			return fmt.Errorf("relativize %s: %w", p, err)
		}

		target := filepath.Join(dst, rel)

		switch {
		case d.Type()&fs.ModeSymlink != 0:
			return nil
		case d.IsDir():
			if err := os.MkdirAll(target, dirPermissions); err != nil {
				return fmt.Errorf("create %s: %w", target, err)
			}

			return nil
		default:
			return copyFile(p, target)
		}
	})
}
