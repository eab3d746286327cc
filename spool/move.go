package spool

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MoveToDir moves src into dir, creating dir when needed. An existing file
// of the same name is never overwritten: the moved file gets a
// "-<unixnano>" suffix before its extension instead. A failed rename (for
// example across devices) falls back to copy and remove.
func MoveToDir(src, dir string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("move %s: destination directory is empty", src)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("move %s: %w", src, err)
	}
	dst := freeName(dir, filepath.Base(src))

	if err := os.Rename(src, dst); err == nil {
		return dst, nil
	}
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("move %s: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("move %s: remove source: %w", src, err)
	}
	return dst, nil
}

func freeName(dir, base string) string {
	dst := filepath.Join(dir, base)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for {
		if _, err := os.Lstat(dst); err != nil {
			return dst
		}
		dst = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, time.Now().UnixNano(), ext))
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(dst)
	}
	return copyErr
}
