// Package pathutil resolves filesystem paths to the vault-relative, slash
// separated ids the rest of the core uses as document identifiers. Both
// vault.FSSource and coalesce.Coalescer depend on it to agree on the same
// id for the same file regardless of host platform.
package pathutil

import (
	"path/filepath"
	"strings"
)

// NormalizePath rewrites Windows-style separators to the current
// platform's separator and cleans the result.
func NormalizePath(p string) string {
	if p == "" {
		return ""
	}
	replaced := strings.ReplaceAll(p, "\\", "/")
	return filepath.Clean(filepath.FromSlash(replaced))
}

// VaultRelative returns target's path relative to vaultDir, using forward
// slashes regardless of host platform so the result is stable as a
// document id.
func VaultRelative(vaultDir, target string) (string, error) {
	rel, err := filepath.Rel(NormalizePath(vaultDir), NormalizePath(target))
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}
