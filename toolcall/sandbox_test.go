package toolcall

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestValidate(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"simple file", "file.go", false},
		{"nested path", "src/main.go", false},
		{"dot path", "./file.go", false},
		{"the directory itself", ".", false},
		{"inner parent that stays inside", "src/../main.go", false},
		{"double dot in name", "file..go", false},
		{"parent escape", "../etc/passwd", true},
		{"hidden parent escape", "src/../../etc/passwd", true},
		{"absolute outside", "/etc/passwd", true},
		{"empty path", "", true},
		{"null byte", "a\x00b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(base, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil {
				var pse *PathSecurityError
				if !errors.As(err, &pse) {
					t.Errorf("expected PathSecurityError, got %T", err)
				}
			}
		})
	}
}

func TestValidateSiblingWithSharedPrefix(t *testing.T) {
	root := t.TempDir()
	work := filepath.Join(root, "proj")
	sibling := filepath.Join(root, "proj-evil")
	for _, d := range []string{work, sibling} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := Validate(work, filepath.Join(sibling, "x.go")); err == nil {
		t.Error("a sibling sharing the directory's name prefix must be rejected")
	}
	if _, err := Validate(work, "../proj-evil/x.go"); err == nil {
		t.Error("relative path into sibling must be rejected")
	}
}

func TestValidateReturnsAbsolutePath(t *testing.T) {
	base := t.TempDir()
	got, err := Validate(base, "src/main.go")
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	canonBase, _ := filepath.EvalSymlinks(base)
	want := filepath.Join(canonBase, "src", "main.go")
	if got != want {
		t.Errorf("Validate returned %q, want %q", got, want)
	}
}

func TestValidateAbsoluteInside(t *testing.T) {
	base := t.TempDir()
	if _, err := Validate(base, filepath.Join(base, "a", "b.go")); err != nil {
		t.Errorf("absolute path inside the directory should pass: %v", err)
	}
}

func TestValidateSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	base := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(base, "link")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if _, err := Validate(base, "link/secret.txt"); err == nil {
		t.Error("path through a symlink that leaves the directory must be rejected")
	}
}

func TestValidateBackslashIsOrdinaryOnUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("backslash is the native separator on windows")
	}
	base := t.TempDir()
	if _, err := Validate(base, `..\x`); err != nil {
		t.Errorf(`on unix %q is a filename inside the directory: %v`, `..\x`, err)
	}
}

func TestIsWithin(t *testing.T) {
	tests := []struct {
		dir, target string
		want        bool
	}{
		{"/project", "/project", true},
		{"/project", "/project/a.go", true},
		{"/project", "/project-other/a.go", false},
		{"/project", "/", false},
		{"/", "/anything", true},
	}
	for _, tt := range tests {
		if got := IsWithin(filepath.FromSlash(tt.dir), filepath.FromSlash(tt.target)); got != tt.want {
			t.Errorf("IsWithin(%q, %q) = %v, want %v", tt.dir, tt.target, got, tt.want)
		}
	}
}
