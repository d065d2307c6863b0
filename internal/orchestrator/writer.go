package orchestrator

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// OutputPathForPage maps a page's site-root-absolute Path to a destination
// file under outputDir, matching the teacher's url-to-file convention:
// a trailing-slash (or extensionless) path gets an index.html, anything
// else is written as-is.
func OutputPathForPage(outputDir, path string) string {
	rel := strings.TrimPrefix(path, "/")
	switch {
	case rel == "":
		return filepath.Join(outputDir, "index.html")
	case strings.HasSuffix(rel, "/"):
		return filepath.Join(outputDir, rel, "index.html")
	case filepath.Ext(rel) == "":
		return filepath.Join(outputDir, rel, "index.html")
	default:
		return filepath.Join(outputDir, rel)
	}
}

// OutputPathForAsset maps an asset's site-root-absolute Path directly onto
// outputDir, preserving its relative structure.
func OutputPathForAsset(outputDir, path string) string {
	return filepath.Join(outputDir, strings.TrimPrefix(path, "/"))
}

// WriteFileAtomic writes data to path via a temp file in the same
// directory followed by a rename, so a reader never observes a partially
// written file and a crash mid-write leaves the previous version intact
// (spec §4.8 "Atomic write via temp + rename").
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("orchestrator: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("orchestrator: creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("orchestrator: writing temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("orchestrator: closing temp file %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("orchestrator: renaming %s to %s: %w", tmpPath, path, err)
	}
	return nil
}

// CopyFileAtomic copies src to dst via the same temp+rename discipline as
// WriteFileAtomic, used for the assets phase.
func CopyFileAtomic(src, dst string) (int64, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return 0, fmt.Errorf("orchestrator: reading %s: %w", src, err)
	}
	if err := WriteFileAtomic(dst, data); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

// CleanDir removes dir and recreates it empty. If dir does not exist it is
// simply created.
func CleanDir(dir string) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("orchestrator: removing %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("orchestrator: creating %s: %w", dir, err)
	}
	return nil
}

// DirSize totals the size in bytes of every regular file under dir.
func DirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil && os.IsNotExist(err) {
		return 0, nil
	}
	return total, err
}
