package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestEnsureParentDir(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a", "b", "session")

	dir, err := EnsureParentDir(path)
	if err != nil {
		t.Fatalf("EnsureParentDir error: %v", err)
	}
	if dir != filepath.Join(root, "a", "b") {
		t.Fatalf("dir = %q", dir)
	}
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		t.Fatalf("expected directory at %q, err=%v", dir, err)
	}

	if _, err := EnsureParentDir(path); err != nil {
		t.Fatalf("second call should succeed: %v", err)
	}
}

func TestEnsureParentDir_BlockedByFile(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := EnsureParentDir(filepath.Join(blocker, "session")); err == nil {
		t.Fatal("expected error when parent is a regular file")
	}
}

func TestWritePrivateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x", "session")
	if err := WritePrivateFile(path, []byte("tok")); err != nil {
		t.Fatalf("WritePrivateFile error: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil || string(b) != "tok" {
		t.Fatalf("read back %q, err=%v", b, err)
	}
	if runtime.GOOS != "windows" {
		fi, _ := os.Stat(path)
		if fi.Mode().Perm() != 0o600 {
			t.Fatalf("mode = %v, want 0600", fi.Mode().Perm())
		}
	}
}
