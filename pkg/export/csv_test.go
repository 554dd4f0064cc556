package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gdelfava/domaintools/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCSVFilesNewestFirst(t *testing.T) {
	dir := t.TempDir()

	older := filepath.Join(dir, "domain_export_tenant-a_batch1_20240101_000000.csv")
	newer := filepath.Join(dir, "domain_export_tenant-a_batch2_20240102_000000.csv")
	require.NoError(t, os.WriteFile(older, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("bb"), 0o644))
	require.NoError(t, os.Chtimes(older, time.Now().Add(-time.Hour), time.Now().Add(-time.Hour)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	files, err := ListCSVFiles(dir, "")
	require.NoError(t, err)

	require.Len(t, files, 2)
	assert.Equal(t, filepath.Base(newer), files[0].Filename)
	assert.Equal(t, int64(2), files[0].Size)
	assert.Equal(t, filepath.Base(older), files[1].Filename)
}

func TestListCSVFilesScopedToTenant(t *testing.T) {
	dir := t.TempDir()

	mine := "domain_export_tenant-a_batch1_20240101_000000.csv"
	other := "domain_export_tenant-b_batch1_20240101_000000.csv"
	require.NoError(t, os.WriteFile(filepath.Join(dir, mine), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, other), []byte("b"), 0o644))

	files, err := ListCSVFiles(dir, "tenant-a")
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, mine, files[0].Filename)
}

func TestListCSVFilesMissingDir(t *testing.T) {
	files, err := ListCSVFiles(filepath.Join(t.TempDir(), "nope"), "tenant-a")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestPurgeCSVFiles(t *testing.T) {
	dir := t.TempDir()

	old := filepath.Join(dir, "old.csv")
	fresh := filepath.Join(dir, "fresh.csv")
	require.NoError(t, os.WriteFile(old, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("b"), 0o644))
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	purged, err := PurgeCSVFiles(dir, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestWriteCSVErrorRowShape(t *testing.T) {
	dir := t.TempDir()

	path, err := writeCSV(dir, "tenant-a", 7, []model.DomainOutcome{
		{DomainName: "broken.com", DomainID: "9", Status: model.StatusActive, Error: "Unknown domain"},
	})
	require.NoError(t, err)

	rows := readCSV(t, path)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"broken.com", "9", "Active", "ERROR", "Unknown domain", "", "", "", "Failed", "7"}, rows[1])
}
