package ioutils

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "scan.jpeg")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"directory", dir, true},
		{"directory with trailing slash", dir + string(filepath.Separator), true},
		{"regular file", file, true},
		{"missing", filepath.Join(dir, "missing.jpeg"), false},
		{"below a file", filepath.Join(file, "child"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Exists(tt.path); got != tt.want {
				t.Errorf("Exists(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestEnsureDir_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "2021-07-04", "abc123")
	for i := 0; i < 2; i++ {
		if err := EnsureDir(path); err != nil {
			t.Fatalf("EnsureDir call %d failed: %v", i, err)
		}
	}
	if !(OS{}).Exists(path) {
		t.Errorf("expected %s to exist", path)
	}
}

func TestLockMirror(t *testing.T) {
	root := filepath.Join(t.TempDir(), "mirror")

	unlock, err := LockMirror(root)
	if err != nil {
		t.Fatalf("LockMirror failed: %v", err)
	}

	if _, err := LockMirror(root); !errors.Is(err, ErrLocked) {
		t.Errorf("second LockMirror error = %v, want ErrLocked", err)
	}

	if err := unlock(); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}

	unlock, err = LockMirror(root)
	if err != nil {
		t.Fatalf("LockMirror after unlock failed: %v", err)
	}
	_ = unlock()
}

func TestImageService_Verify(t *testing.T) {
	dir := t.TempDir()
	svc := NewImageService()
	ctx := context.Background()

	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.White)
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	good := filepath.Join(dir, "good.part")
	if err := os.WriteFile(good, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(dir, "bad.part")
	if err := os.WriteFile(bad, []byte("<html>oops</html>"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := svc.Verify(ctx, good, "scan.png"); err != nil {
		t.Errorf("Verify(valid png) = %v, want nil", err)
	}
	if err := svc.Verify(ctx, bad, "scan.jpeg"); err == nil {
		t.Error("Verify(html as jpeg) = nil, want error")
	}
	if err := svc.Verify(ctx, bad, "scan.pdf"); err != nil {
		t.Errorf("Verify(pdf) = %v, want nil (not inspected)", err)
	}
}

func TestImageService_CanVerify(t *testing.T) {
	svc := NewImageService()
	tests := []struct {
		name string
		want bool
	}{
		{"scan.jpeg", true},
		{"front-enclosure.TIFF", true},
		{"scan.webp", true},
		{"scan.pdf", false},
		{"scan", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := svc.CanVerify(tt.name); got != tt.want {
				t.Errorf("CanVerify(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}
