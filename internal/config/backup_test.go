package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupFile_MissingFile(t *testing.T) {
	backup, err := BackupFile(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Empty(t, backup)
}

func TestBackupFile_CopiesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	backup, err := BackupFile(path)

	require.NoError(t, err)
	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "version: 1\n", string(data))
}

func TestListBackups_PrunesToMax(t *testing.T) {
	// Given: five older backups
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("v"), 0o644))
	for i := 1; i <= 5; i++ {
		name := fmt.Sprintf("%s%s2020010%d-000000.000", path, BackupSuffix, i)
		require.NoError(t, os.WriteFile(name, []byte("old"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml.bak.2020"), nil, 0o644))

	// When: taking a new backup
	newest, err := BackupFile(path)
	require.NoError(t, err)

	// Then: only the newest MaxBackups remain, newest first
	backups, err := ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, MaxBackups)
	assert.Equal(t, newest, backups[0])
	assert.Equal(t, filepath.Base(path)+BackupSuffix+"20200105-000000.000", filepath.Base(backups[1]))
	assert.Equal(t, filepath.Base(path)+BackupSuffix+"20200104-000000.000", filepath.Base(backups[2]))
}
