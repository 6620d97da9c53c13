package fsutil

import (
	"io"
	"os"
	"path/filepath"
	"strings"
)

var screenshotExts = map[string]struct{}{
	".tga":  {},
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".bmp":  {},
	".tif":  {},
	".tiff": {},
}

// FirstExisting returns the first path that exists.
func FirstExisting(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Exists reports whether path names an existing file or directory.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsScreenshotFile checks if a file is a capture format the engine emits.
func IsScreenshotFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	_, ok := screenshotExts[ext]
	return ok
}

// CopyFile copies src to dst byte-for-byte, creating dst's directory if
// needed. The golden bootstrap relies on the copy being bitwise identical
// so a follow-up comparison of the same candidate scores 1.0.
func CopyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
