package service

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

var errBackupsUnsupported = errors.New("store does not keep backups")

// InstrumentedStore records the latency of every call to the wrapped store.
type InstrumentedStore struct {
	inner   AllocationStore
	driver  string
	metrics *MetricsService
}

// NewInstrumentedStore wraps store; driver labels the metric series.
func NewInstrumentedStore(store AllocationStore, driver string, metrics *MetricsService) *InstrumentedStore {
	return &InstrumentedStore{inner: store, driver: driver, metrics: metrics}
}

func (s *InstrumentedStore) observe(op string, start time.Time) {
	s.metrics.ObserveStoreOperation(s.driver, op, time.Since(start))
}

// Name returns the wrapped store name.
func (s *InstrumentedStore) Name() string { return s.inner.Name() }

func (s *InstrumentedStore) Exists(ctx context.Context) (bool, error) {
	defer s.observe("exists", time.Now())
	return s.inner.Exists(ctx)
}

func (s *InstrumentedStore) Load(ctx context.Context) ([]models.Allocation, error) {
	defer s.observe("load", time.Now())
	return s.inner.Load(ctx)
}

func (s *InstrumentedStore) Backup(ctx context.Context, at time.Time) (string, error) {
	defer s.observe("backup", time.Now())
	return s.inner.Backup(ctx, at)
}

func (s *InstrumentedStore) Replace(ctx context.Context, allocations []models.Allocation) error {
	defer s.observe("replace", time.Now())
	return s.inner.Replace(ctx, allocations)
}

// ListBackups forwards to the wrapped store when it keeps backups.
func (s *InstrumentedStore) ListBackups(ctx context.Context) ([]models.BackupInfo, error) {
	backups, ok := s.inner.(BackupStore)
	if !ok {
		return []models.BackupInfo{}, nil
	}
	defer s.observe("list_backups", time.Now())
	return backups.ListBackups(ctx)
}

// RestoreBackup forwards to the wrapped store when it keeps backups.
func (s *InstrumentedStore) RestoreBackup(ctx context.Context, name string) ([]models.Allocation, error) {
	backups, ok := s.inner.(BackupStore)
	if !ok {
		return nil, &models.StorageError{Op: "restore", Store: s.inner.Name(), Err: errBackupsUnsupported}
	}
	defer s.observe("restore", time.Now())
	return backups.RestoreBackup(ctx, name)
}
