package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// SQLAllocationStore keeps named allocation sets in relational tables. It runs on
// PostgreSQL (lib/pq) and SQLite (modernc.org/sqlite); queries are written with ?
// placeholders and rebound for the driver.
type SQLAllocationStore struct {
	db   *sqlx.DB
	name string
}

const allocationSchema = `
CREATE TABLE IF NOT EXISTS allocation_sets (
	name TEXT PRIMARY KEY,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS allocations (
	store TEXT NOT NULL,
	ordinal INTEGER NOT NULL,
	id TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	teacher_id TEXT,
	time_slot_id TEXT NOT NULL,
	day TEXT NOT NULL,
	day_id TEXT,
	room TEXT,
	room_id TEXT,
	semester_id TEXT NOT NULL,
	is_active BOOLEAN,
	PRIMARY KEY (store, id)
);
CREATE TABLE IF NOT EXISTS allocation_backups (
	store TEXT NOT NULL,
	label TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	payload TEXT NOT NULL,
	PRIMARY KEY (store, label)
);`

// NewSQLAllocationStore binds a store name to a database handle.
func NewSQLAllocationStore(db *sqlx.DB, name string) *SQLAllocationStore {
	if name == "" {
		name = "default"
	}
	return &SQLAllocationStore{db: db, name: name}
}

// EnsureSchema creates the tables when missing.
func (s *SQLAllocationStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, allocationSchema); err != nil {
		return s.fail("migrate", err)
	}
	return nil
}

// Name identifies the store in locks and logs.
func (s *SQLAllocationStore) Name() string {
	return s.db.DriverName() + ":" + s.name
}

// Exists reports whether the set has been written before.
func (s *SQLAllocationStore) Exists(ctx context.Context) (bool, error) {
	var count int
	query := s.db.Rebind(`SELECT COUNT(*) FROM allocation_sets WHERE name = ?`)
	if err := s.db.GetContext(ctx, &count, query, s.name); err != nil {
		return false, s.fail("stat", err)
	}
	return count > 0, nil
}

// Load returns the stored set in write order.
func (s *SQLAllocationStore) Load(ctx context.Context) ([]models.Allocation, error) {
	allocations, err := s.load(ctx, s.db)
	if err != nil {
		return nil, s.fail("load", err)
	}
	return allocations, nil
}

func (s *SQLAllocationStore) load(ctx context.Context, q sqlx.QueryerContext) ([]models.Allocation, error) {
	query := s.db.Rebind(`SELECT id, subject_id, teacher_id, time_slot_id, day, day_id, room, room_id, semester_id, is_active FROM allocations WHERE store = ? ORDER BY ordinal ASC`)
	allocations := []models.Allocation{}
	if err := sqlx.SelectContext(ctx, q, &allocations, query, s.name); err != nil {
		return nil, err
	}
	return allocations, nil
}

// Backup snapshots the current rows as a JSON payload labelled with the timestamp.
func (s *SQLAllocationStore) Backup(ctx context.Context, at time.Time) (label string, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", s.fail("backup", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := s.load(ctx, tx)
	if err != nil {
		return "", s.fail("backup", err)
	}
	payload, err := EncodeAllocations(current)
	if err != nil {
		return "", s.fail("backup", err)
	}
	label = s.name + ".backup-" + at.UTC().Format(BackupTimestampLayout)
	query := s.db.Rebind(`INSERT INTO allocation_backups (store, label, created_at, payload) VALUES (?, ?, ?, ?)`)
	if _, err = tx.ExecContext(ctx, query, s.name, label, at.UTC(), string(payload)); err != nil {
		return "", s.fail("backup", err)
	}
	if err = tx.Commit(); err != nil {
		return "", s.fail("backup", err)
	}
	return label, nil
}

// Replace swaps the stored rows for the given set in one transaction.
func (s *SQLAllocationStore) Replace(ctx context.Context, allocations []models.Allocation) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return s.fail("write", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, s.db.Rebind(`DELETE FROM allocations WHERE store = ?`), s.name); err != nil {
		return s.fail("write", err)
	}
	insert := s.db.Rebind(`INSERT INTO allocations (store, ordinal, id, subject_id, teacher_id, time_slot_id, day, day_id, room, room_id, semester_id, is_active) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for i, item := range allocations {
		if _, err = tx.ExecContext(ctx, insert, s.name, i, item.ID, item.SubjectID, item.TeacherID, item.TimeSlotID, item.Day, item.DayID, item.Room, item.RoomID, item.SemesterID, item.IsActive); err != nil {
			return s.fail("write", fmt.Errorf("insert %s: %w", item.ID, err))
		}
	}
	upsert := s.db.Rebind(`INSERT INTO allocation_sets (name, updated_at) VALUES (?, ?) ON CONFLICT (name) DO UPDATE SET updated_at = excluded.updated_at`)
	if _, err = tx.ExecContext(ctx, upsert, s.name, time.Now().UTC()); err != nil {
		return s.fail("write", err)
	}
	if err = tx.Commit(); err != nil {
		return s.fail("write", err)
	}
	return nil
}

// ListBackups returns backup metadata, oldest first.
func (s *SQLAllocationStore) ListBackups(ctx context.Context) ([]models.BackupInfo, error) {
	type row struct {
		Label     string    `db:"label"`
		CreatedAt time.Time `db:"created_at"`
		Size      int64     `db:"size"`
	}
	var rows []row
	query := s.db.Rebind(`SELECT label, created_at, LENGTH(payload) AS size FROM allocation_backups WHERE store = ? ORDER BY label ASC`)
	if err := s.db.SelectContext(ctx, &rows, query, s.name); err != nil {
		return nil, s.fail("list backups", err)
	}
	backups := make([]models.BackupInfo, 0, len(rows))
	for _, r := range rows {
		backups = append(backups, models.BackupInfo{
			Name:      r.Label,
			Location:  s.Name() + "/" + r.Label,
			Timestamp: r.CreatedAt.UTC().Format(BackupTimestampLayout),
			Size:      r.Size,
		})
	}
	return backups, nil
}

// RestoreBackup loads the allocation set captured under label.
func (s *SQLAllocationStore) RestoreBackup(ctx context.Context, label string) ([]models.Allocation, error) {
	var payload string
	query := s.db.Rebind(`SELECT payload FROM allocation_backups WHERE store = ? AND label = ?`)
	if err := s.db.GetContext(ctx, &payload, query, s.name, label); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.fail("restore", fmt.Errorf("backup %s not found: %w", label, err))
		}
		return nil, s.fail("restore", err)
	}
	allocations, err := DecodeAllocations([]byte(payload))
	if err != nil {
		return nil, s.fail("restore", err)
	}
	return allocations, nil
}

func (s *SQLAllocationStore) fail(op string, err error) error {
	var existing *models.StorageError
	if errors.As(err, &existing) {
		return err
	}
	return &models.StorageError{Op: op, Store: s.Name(), Err: err}
}
