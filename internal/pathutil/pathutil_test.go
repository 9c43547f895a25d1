package pathutil

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestVaultRelativeReturnsForwardSlashes(t *testing.T) {
	vaultParts := []string{"home", "user", "vault"}
	fileParts := append(append([]string{}, vaultParts...), "subdir", "file.md")

	posixVault := filepath.Join(vaultParts...)
	posixFile := filepath.Join(fileParts...)

	rel, err := VaultRelative(posixVault, posixFile)
	if err != nil {
		t.Fatalf("VaultRelative returned error for POSIX paths: %v", err)
	}
	if rel != "subdir/file.md" {
		t.Fatalf("expected relative path 'subdir/file.md', got %q", rel)
	}

	windowsVault := strings.ReplaceAll(posixVault, string(filepath.Separator), "\\")
	windowsFile := strings.ReplaceAll(posixFile, string(filepath.Separator), "\\")

	rel, err = VaultRelative(windowsVault, windowsFile)
	if err != nil {
		t.Fatalf("VaultRelative returned error for Windows paths: %v", err)
	}
	if rel != "subdir/file.md" {
		t.Fatalf("expected relative path 'subdir/file.md', got %q", rel)
	}
}

func TestVaultRelativeOfVaultRootIsDot(t *testing.T) {
	vault := filepath.Join("home", "user", "vault")
	rel, err := VaultRelative(vault, vault)
	if err != nil {
		t.Fatalf("VaultRelative returned error for the vault root itself: %v", err)
	}
	if rel != "." {
		t.Fatalf("expected '.', got %q", rel)
	}
}

func TestNormalizePathCollapsesSeparatorsAndDotSegments(t *testing.T) {
	got := NormalizePath(`a\b\.\c`)
	want := filepath.FromSlash("a/b/c")
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestNormalizePathEmptyStringStaysEmpty(t *testing.T) {
	if got := NormalizePath(""); got != "" {
		t.Fatalf("expected empty string to stay empty, got %q", got)
	}
}
