package fsutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestFirstExisting(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "hl2.sh")
	if err := os.WriteFile(present, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	got := FirstExisting(filepath.Join(dir, "hl2.exe"), present)
	if got != present {
		t.Errorf("FirstExisting = %q, want %q", got, present)
	}

	if got := FirstExisting(filepath.Join(dir, "a"), filepath.Join(dir, "b")); got != "" {
		t.Errorf("FirstExisting with no matches = %q, want empty", got)
	}
}

func TestIsScreenshotFile(t *testing.T) {
	yes := []string{"de_test_spawn.tga", "shot.PNG", "a/b/c.jpeg", "x.tiff"}
	for _, p := range yes {
		if !IsScreenshotFile(p) {
			t.Errorf("IsScreenshotFile(%q) = false, want true", p)
		}
	}
	no := []string{"de_test.bsp", "report.html", "noext", "shot.tga.bak"}
	for _, p := range no {
		if IsScreenshotFile(p) {
			t.Errorf("IsScreenshotFile(%q) = true, want false", p)
		}
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.tga")
	content := []byte{0x00, 0x01, 0x02, 0xff, 0xfe}
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Destination parent does not exist yet.
	dst := filepath.Join(dir, "golden", "nested", "dst.tga")
	if err := CopyFile(src, dst); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("copy differs: got %v, want %v", got, content)
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	dir := t.TempDir()
	err := CopyFile(filepath.Join(dir, "absent"), filepath.Join(dir, "dst"))
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}
