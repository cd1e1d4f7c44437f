package yaml2lua

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBackupOfMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-written.lua")

	got, err := NewBackupManager().CreateBackupOf(path)
	require.NoError(t, err)
	assert.Empty(t, got, "nothing to back up, no backup path expected")
}

func TestCreateBackupOfExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "init.lua")
	content := []byte("return {\n\t[\"keep\"] = true,\n}\n")
	require.NoError(t, os.WriteFile(path, content, 0644))

	got, err := NewBackupManager().CreateBackupOf(path)
	require.NoError(t, err)

	// init.lua.20240101_120000.bak, next to the original
	assert.Equal(t, dir, filepath.Dir(got))
	assert.Regexp(t, regexp.MustCompile(`init\.lua\.\d{8}_\d{6}\.bak$`), got)

	copied, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, content, copied)

	// the original stays in place untouched
	original, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, original)
}

func TestCreateBackupOfUnwritableDir(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("directory permissions do not apply to root")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "init.lua")
	require.NoError(t, os.WriteFile(path, []byte("return {\n}\n"), 0644))

	require.NoError(t, os.Chmod(dir, 0555))
	t.Cleanup(func() { os.Chmod(dir, 0755) })

	_, err := NewBackupManager().CreateBackupOf(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating backup")
}
