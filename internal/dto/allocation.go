package dto

import "github.com/noah-isme/college-timetable-api/internal/models"

// PersistAllocationsRequest submits a batch for the persistence coordinator.
type PersistAllocationsRequest struct {
	Mode        models.PersistMode  `json:"mode"`
	Allocations []models.Allocation `json:"allocations" binding:"required"`
}

// ConflictCheckRequest asks which stored entries collide with the given ones.
type ConflictCheckRequest struct {
	Entries []models.Allocation `json:"entries" binding:"required"`
}

// GroupConflictCheckRequest checks several recurring groups at once.
type GroupConflictCheckRequest struct {
	Groups [][]models.Allocation `json:"groups" binding:"required"`
}

// SetActiveRequest toggles an allocation on or off.
type SetActiveRequest struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// RestoreBackupRequest names the backup to restore.
type RestoreBackupRequest struct {
	Name string `json:"name" binding:"required"`
}

// BackupListResponse lists backups of one store.
type BackupListResponse struct {
	Store   string              `json:"store"`
	Backups []models.BackupInfo `json:"backups"`
}
