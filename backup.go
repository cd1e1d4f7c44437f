package yaml2lua

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// BackupManager copies an output file aside before it is overwritten,
// so a stray conversion over a hand-edited .lua file is recoverable.
type BackupManager struct{}

func NewBackupManager() *BackupManager {
	return &BackupManager{}
}

// CreateBackupOf copies path to a timestamped sibling if it exists.
//
// Returns the path of the backup file, or an empty string if there was
// nothing to back up.
func (bm *BackupManager) CreateBackupOf(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading output file: %w", err)
	}

	backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102_150405"))
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return "", fmt.Errorf("creating backup: %w", err)
	}

	slog.Debug("created backup of existing output", "backup", backupPath, "output", path)
	return backupPath, nil
}
