package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/pkg/storage"
)

// BackupTimestampLayout sorts lexically in chronological order.
const BackupTimestampLayout = "20060102T150405.000000000Z"

// FileAllocationStore keeps an allocation set in a single JSON file. Backups are
// written next to it (or into a configured directory) as
// <file>.backup-<timestamp>.
type FileAllocationStore struct {
	files     *storage.LocalStorage
	path      string
	backupDir string
}

// NewFileAllocationStore resolves the paths and ensures their directories exist.
func NewFileAllocationStore(path, backupDir string) (*FileAllocationStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("allocation file path required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve allocation file: %w", err)
	}
	if backupDir == "" {
		backupDir = filepath.Dir(abs)
	}
	if backupDir, err = filepath.Abs(backupDir); err != nil {
		return nil, fmt.Errorf("resolve backup dir: %w", err)
	}
	files, err := storage.NewLocalStorage(filepath.Dir(abs))
	if err != nil {
		return nil, err
	}
	if _, err := storage.NewLocalStorage(backupDir); err != nil {
		return nil, err
	}
	return &FileAllocationStore{files: files, path: abs, backupDir: backupDir}, nil
}

// Name returns the absolute path of the store file.
func (s *FileAllocationStore) Name() string {
	return s.path
}

// Exists reports whether the store file has been written before.
func (s *FileAllocationStore) Exists(ctx context.Context) (bool, error) {
	exists, err := s.files.Exists(s.path)
	if err != nil {
		return false, s.fail("stat", err)
	}
	return exists, nil
}

// Load reads the stored set. A missing file is an empty set.
func (s *FileAllocationStore) Load(ctx context.Context) ([]models.Allocation, error) {
	exists, err := s.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return []models.Allocation{}, nil
	}
	data, err := s.files.Read(s.path)
	if err != nil {
		return nil, s.fail("read", err)
	}
	allocations, err := DecodeAllocations(data)
	if err != nil {
		return nil, s.fail("decode", err)
	}
	return allocations, nil
}

// Backup copies the current file to a timestamped sibling and returns its path.
func (s *FileAllocationStore) Backup(ctx context.Context, at time.Time) (string, error) {
	target := filepath.Join(s.backupDir, s.backupPrefix()+at.UTC().Format(BackupTimestampLayout))
	if err := s.files.Copy(s.path, target); err != nil {
		return "", s.fail("backup", err)
	}
	return target, nil
}

// Replace overwrites the file with the encoded set via temp file and rename.
func (s *FileAllocationStore) Replace(ctx context.Context, allocations []models.Allocation) error {
	if err := ctx.Err(); err != nil {
		return s.fail("write", err)
	}
	payload, err := EncodeAllocations(allocations)
	if err != nil {
		return s.fail("encode", err)
	}
	if _, err := s.files.Save(s.path, payload); err != nil {
		return s.fail("write", err)
	}
	return nil
}

// ListBackups returns stored backups, oldest first.
func (s *FileAllocationStore) ListBackups(ctx context.Context) ([]models.BackupInfo, error) {
	prefix := s.backupPrefix()
	files, err := s.files.List(s.backupDir, prefix)
	if err != nil {
		return nil, s.fail("list backups", err)
	}
	backups := make([]models.BackupInfo, 0, len(files))
	for _, file := range files {
		backups = append(backups, models.BackupInfo{
			Name:      file.Name,
			Location:  file.Path,
			Timestamp: strings.TrimPrefix(file.Name, prefix),
			Size:      file.Size,
		})
	}
	return backups, nil
}

// RestoreBackup reads the allocation set captured in the named backup file.
func (s *FileAllocationStore) RestoreBackup(ctx context.Context, name string) ([]models.Allocation, error) {
	if name != filepath.Base(name) || !strings.HasPrefix(name, s.backupPrefix()) {
		return nil, s.fail("restore", fmt.Errorf("backup %q does not belong to this store", name))
	}
	data, err := s.files.Read(filepath.Join(s.backupDir, name))
	if err != nil {
		return nil, s.fail("restore", err)
	}
	allocations, err := DecodeAllocations(data)
	if err != nil {
		return nil, s.fail("restore", err)
	}
	return allocations, nil
}

func (s *FileAllocationStore) backupPrefix() string {
	return filepath.Base(s.path) + ".backup-"
}

func (s *FileAllocationStore) fail(op string, err error) error {
	return &models.StorageError{Op: op, Store: s.path, Err: err}
}
