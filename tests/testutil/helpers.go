// Package testutil holds small helpers shared by tests across packages.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// WriteFile writes content to path, creating parent directories, and
// returns the path.
func WriteFile(t *testing.T, path string, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// WriteManifest writes a manifest file with one target=source line per
// entry and returns its path.
func WriteManifest(t *testing.T, path string, lines ...string) string {
	t.Helper()
	return WriteFile(t, path, strings.Join(lines, "\n")+"\n")
}

// ReadFile returns the content of path, failing the test if unreadable.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}
