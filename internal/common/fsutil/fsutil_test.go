package fsutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func setHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	if runtime.GOOS == "windows" {
		t.Setenv("USERPROFILE", home)
	}
	return home
}

func TestExpandHome(t *testing.T) {
	home := setHome(t)
	if got, err := ExpandHome("/tmp"); err != nil || got != "/tmp" {
		t.Fatalf("got %q err=%v", got, err)
	}
	if got, err := ExpandHome(""); err != nil || got != "" {
		t.Fatalf("got %q err=%v", got, err)
	}
	p, err := ExpandHome("~")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if p != home {
		t.Fatalf("expected %q, got %q", home, p)
	}
	exp, err := ExpandHome("~/weights")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if filepath.Base(exp) != "weights" || filepath.Dir(exp) != home {
		t.Fatalf("unexpected expanded path: %q", exp)
	}
}

func TestAbsPath(t *testing.T) {
	home := setHome(t)
	got, err := AbsPath("~/a/../b")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if got != filepath.Join(home, "b") {
		t.Fatalf("got %q", got)
	}
	rel, err := AbsPath("x")
	if err != nil || !filepath.IsAbs(rel) {
		t.Fatalf("expected absolute path, got %q err=%v", rel, err)
	}
}

func TestIsRegularFileAndPathExists(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "img.png")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !IsRegularFile(f) || !PathExists(f) {
		t.Fatalf("expected file to exist")
	}
	if IsRegularFile(dir) {
		t.Fatalf("directory reported as regular file")
	}
	missing := filepath.Join(dir, "missing.png")
	if IsRegularFile(missing) || PathExists(missing) {
		t.Fatalf("missing path reported as present")
	}
}
