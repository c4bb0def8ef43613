package security

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestSecurePathInBase(t *testing.T) {
	base := t.TempDir()

	sp, err := NewSecurePathInBase(base, "documents/a.pdf")
	if err != nil {
		t.Fatalf("NewSecurePathInBase: %v", err)
	}
	if want := filepath.Join(base, "documents", "a.pdf"); sp.String() != want {
		t.Errorf("String()=%q, want %q", sp.String(), want)
	}
	if want := filepath.Join(base, "documents"); sp.Dir().String() != want {
		t.Errorf("Dir()=%q, want %q", sp.Dir().String(), want)
	}

	if _, err := NewSecurePathInBase(base, "../escape.pdf"); err == nil {
		t.Error("expected traversal to be rejected")
	}
}

func TestResolveSecurePath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Skipping on Windows due to path differences")
	}
	sp, err := ResolveSecurePath("relative.pdf")
	if err != nil {
		t.Fatalf("ResolveSecurePath: %v", err)
	}
	if !filepath.IsAbs(sp.String()) {
		t.Errorf("expected absolute path, got %q", sp.String())
	}
	if _, err := ResolveSecurePath(""); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestSafeOperations(t *testing.T) {
	dir := t.TempDir()
	sp, err := NewSecurePathFromExisting(filepath.Join(dir, "nested", "out.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if err := SafeMkdirAll(sp.Dir(), 0o755); err != nil {
		t.Fatalf("SafeMkdirAll: %v", err)
	}
	f, err := SafeCreate(sp)
	if err != nil {
		t.Fatalf("SafeCreate: %v", err)
	}
	f.WriteString("%PDF-")
	f.Close()

	data, err := SafeReadFile(sp)
	if err != nil || string(data) != "%PDF-" {
		t.Fatalf("SafeReadFile=%q, %v", data, err)
	}
	if _, err := SafeStat(sp); err != nil {
		t.Fatalf("SafeStat: %v", err)
	}
	if err := SafeRemoveIfExists(sp); err != nil {
		t.Fatalf("SafeRemoveIfExists: %v", err)
	}
	if _, err := os.Stat(sp.String()); !os.IsNotExist(err) {
		t.Fatalf("file still exists")
	}
	if err := SafeRemoveIfExists(sp); err != nil {
		t.Fatalf("second remove should be a no-op: %v", err)
	}

	if _, err := SafeOpen(nil); err == nil {
		t.Error("SafeOpen(nil) should fail")
	}
	if _, err := SafeCreate(nil); err == nil {
		t.Error("SafeCreate(nil) should fail")
	}
}
