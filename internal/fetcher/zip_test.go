package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractTable_Single(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"providers-07-2025.csv":            "PROVIDER,ADDRESS\n",
		"README.txt":                       "ignored",
		"__MACOSX/._providers-07-2025.csv": "resource fork",
	})

	destDir := t.TempDir()
	path, err := ExtractTable(zipPath, destDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(destDir, "providers-07-2025.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "PROVIDER,ADDRESS\n", string(data))
}

func TestExtractTable_Ambiguous(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"a.csv": "x",
		"b.csv": "y",
	})

	_, err := ExtractTable(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 2")
}

func TestExtractTable_ZipSlip(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{"../../evil.csv": "x"})

	_, err := ExtractTable(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}

func TestExtractTable_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := ExtractTable(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip: open archive")
}
