package security

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidateStorageKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"document key", "documents/3f1c.pdf", nil},
		{"nested", "a/b/c.pdf", nil},
		{"empty", "", ErrEmptyPath},
		{"traversal", "../etc/passwd", ErrPathTraversal},
		{"hidden traversal", "documents/../../x", ErrPathTraversal},
		{"absolute", "/etc/passwd", ErrAbsolutePath},
		{"double slash", "documents//x.pdf", ErrPathTraversal},
		{"dot segment", "documents/./x.pdf", ErrPathTraversal},
		{"null byte", "doc\x00.pdf", ErrInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStorageKey(tt.key)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateExistingFilePath(t *testing.T) {
	if err := ValidateExistingFilePath("/tmp/out.pdf"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateExistingFilePath("out.pdf"); !errors.Is(err, ErrRelativePath) {
		t.Errorf("relative path: got %v", err)
	}
	if err := ValidateExistingFilePath("/tmp/../etc/passwd"); !errors.Is(err, ErrPathTraversal) {
		t.Errorf("traversal: got %v", err)
	}
	if err := ValidateExistingFilePath(""); !errors.Is(err, ErrEmptyPath) {
		t.Errorf("empty: got %v", err)
	}
}

func TestValidateAndCleanFilename(t *testing.T) {
	if got, err := ValidateAndCleanFilename("  scan.png "); err != nil || got != "scan.png" {
		t.Errorf("got %q, %v", got, err)
	}
	for _, bad := range []string{"", "a/b.png", `a\b.png`, "..png", "x\x00.png"} {
		if _, err := ValidateAndCleanFilename(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "output.pdf"},
		{"report", "report.pdf"},
		{"report.PDF", "report.PDF"},
		{"holiday.png", "holiday.pdf"},
		{`../../etc/passwd`, "passwd.pdf"},
		{`C:\Users\me\scan.pdf`, "scan.pdf"},
		{`a"b;c.pdf`, "a_b_c.pdf"},
		{"naïve.pdf", "na_ve.pdf"},
		{"...", "output.pdf"},
	}
	for _, c := range cases {
		if got := SanitizeFilename(c.in, "output.pdf"); got != c.want {
			t.Errorf("SanitizeFilename(%q)=%q, want %q", c.in, got, c.want)
		}
	}

	long := strings.Repeat("x", 300) + ".pdf"
	if got := SanitizeFilename(long, "output.pdf"); len(got) != 128 || filepath.Ext(got) != ".pdf" {
		t.Errorf("long name not truncated: len=%d", len(got))
	}
}
