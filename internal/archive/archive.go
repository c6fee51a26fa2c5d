// Package archive compresses finished observation logs in place. The log
// reader transparently handles both forms, so archiving is safe at any point
// after the day ends.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Path returns the archived form of a date's log path.
func Path(logDir, date string) string {
	return filepath.Join(logDir, date+".jsonl.zst")
}

// IsArchived reports whether a date's log is already compressed.
func IsArchived(logDir, date string) bool {
	_, err := os.Stat(Path(logDir, date))
	return err == nil
}

// Compress turns logDir/<date>.jsonl into <date>.jsonl.zst and removes the
// original. The original is only removed after the archive is fully written
// and synced, so a failure never loses the day's log.
func Compress(logDir, date string) (string, error) {
	srcPath := filepath.Join(logDir, date+".jsonl")
	destPath := Path(logDir, date)

	if IsArchived(logDir, date) {
		if _, err := os.Stat(srcPath); os.IsNotExist(err) {
			return destPath, nil
		}
		return "", fmt.Errorf("both %s and its archive exist, refusing to overwrite", srcPath)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open log: %w", err)
	}
	defer src.Close()

	tmpPath := destPath + ".tmp"
	dest, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}

	encoder, err := zstd.NewWriter(dest)
	if err != nil {
		dest.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("create zstd encoder: %w", err)
	}

	if _, err := io.Copy(encoder, src); err != nil {
		encoder.Close()
		dest.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("compress: %w", err)
	}
	if err := encoder.Close(); err != nil {
		dest.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("finalize compression: %w", err)
	}
	if err := dest.Sync(); err != nil {
		dest.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("sync archive: %w", err)
	}
	if err := dest.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close archive: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("finalize archive: %w", err)
	}
	if err := os.Remove(srcPath); err != nil {
		return "", fmt.Errorf("remove original log: %w", err)
	}
	return destPath, nil
}
