package models

import (
	"fmt"
	"strings"
)

// PersistMode selects how incoming allocations combine with the stored set.
type PersistMode string

const (
	PersistModeMerge   PersistMode = "merge"
	PersistModeReplace PersistMode = "replace"
)

// Valid reports whether the mode is one of the supported values.
func (m PersistMode) Valid() bool {
	return m == PersistModeMerge || m == PersistModeReplace
}

// PersistSummary describes the allocation set written by a persistence run.
type PersistSummary struct {
	Total       int         `json:"total"`
	Departments []string    `json:"departments"`
	Mode        PersistMode `json:"mode"`
	Existing    int         `json:"existing"`
	Incoming    int         `json:"incoming"`
	Dropped     int         `json:"dropped"`
	Backup      string      `json:"backup,omitempty"`
}

// AllocationViolation names a record and the required fields it lacks.
type AllocationViolation struct {
	AllocationID string   `json:"allocationId"`
	Index        int      `json:"index"`
	Missing      []string `json:"missing"`
}

// AllocationValidationError aborts a persistence run before anything is written.
type AllocationValidationError struct {
	Violations []AllocationViolation `json:"violations"`
}

// Error implements the error interface.
func (e *AllocationValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "allocation validation failed"
	}
	first := e.Violations[0]
	id := first.AllocationID
	if id == "" {
		id = fmt.Sprintf("#%d", first.Index)
	}
	msg := fmt.Sprintf("allocation %s missing %s", id, strings.Join(first.Missing, ", "))
	if extra := len(e.Violations) - 1; extra > 0 {
		msg = fmt.Sprintf("%s (and %d more invalid records)", msg, extra)
	}
	return msg
}

// StorageError wraps an I/O failure against the allocation store or its backup.
type StorageError struct {
	Op    string
	Store string
	Err   error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Store, e.Err)
}

// Unwrap returns the underlying I/O error.
func (e *StorageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// BackupInfo describes a stored backup copy of an allocation store.
type BackupInfo struct {
	Name      string `json:"name"`
	Location  string `json:"location"`
	Timestamp string `json:"timestamp"`
	Size      int64  `json:"size"`
}
