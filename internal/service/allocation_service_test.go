package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

func (m *memoryStore) ListBackups(ctx context.Context) ([]models.BackupInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.backups))
	for name := range m.backups {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]models.BackupInfo, 0, len(names))
	for _, name := range names {
		out = append(out, models.BackupInfo{Name: name, Location: name, Timestamp: name[len(m.name+".backup-"):], Size: int64(len(m.backups[name]))})
	}
	return out, nil
}

func (m *memoryStore) RestoreBackup(ctx context.Context, name string) ([]models.Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.backups[name]
	if !ok {
		return nil, &models.StorageError{Op: "restore", Store: m.name, Err: fmt.Errorf("%s: %w", name, fs.ErrNotExist)}
	}
	var out []models.Allocation
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func newTestAllocationService(t *testing.T) (*AllocationService, *memoryStore) {
	t.Helper()
	store := newMemoryStore(t, []models.Allocation{
		allocation("a1", "s-chem", "t1", "ts1", "Monday", "R-44", "sem1"),
		allocation("a2", "s-zoo", "t2", "ts2", "Monday", "Lab 1", "sem1"),
	})
	refs := NewReferenceService(&stubReferenceSource{set: sampleReferenceSet()}, nil, nil, nil)
	svc := NewAllocationService(store, newTestPersistence(), refs, nil, nil, nil)
	svc.newID = func() string { return "new-1" }
	return svc, store
}

func allocationRequest(subject, teacher, slot, day, room string) AllocationRequest {
	return AllocationRequest{
		SubjectID:  subject,
		TeacherID:  models.StringPtr(teacher),
		TimeSlotID: slot,
		Day:        day,
		Room:       models.StringPtr(room),
		SemesterID: "sem3",
	}
}

func requireAppCode(t *testing.T, err error, code string) *appErrors.Error {
	t.Helper()
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func TestAllocationServiceCreate(t *testing.T) {
	svc, store := newTestAllocationService(t)

	created, err := svc.Create(context.Background(), allocationRequest("s-a", "t70", "ts3", "Tuesday", "R-44"))
	require.NoError(t, err)
	assert.Equal(t, "new-1", created.ID)

	written := store.snapshot(t)
	assert.ElementsMatch(t, []string{"a1", "a2", "new-1"}, allocationIDs(written))
	assert.Contains(t, store.calls, "backup")
}

func TestAllocationServiceCreateRejectsDoubleBooking(t *testing.T) {
	tests := []struct {
		name    string
		req     AllocationRequest
		teacher int
		room    int
	}{
		{name: "teacher", req: allocationRequest("s-b", "t1", "ts1", "Monday", "Lab 1"), teacher: 1},
		{name: "room ignores case", req: allocationRequest("s-b", "t70", "ts1", "mon", "r-44"), room: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, store := newTestAllocationService(t)
			before := store.snapshot(t)

			_, err := svc.Create(context.Background(), tc.req)
			requireAppCode(t, err, appErrors.ErrConflict.Code)
			var conflict *models.AllocationConflictError
			require.ErrorAs(t, err, &conflict)
			assert.Len(t, conflict.Report.TeacherConflicts, tc.teacher)
			assert.Len(t, conflict.Report.RoomConflicts, tc.room)
			assert.Equal(t, before, store.snapshot(t))
			assert.NotContains(t, store.calls, "replace")
		})
	}
}

func TestAllocationServiceCreateValidatesPayload(t *testing.T) {
	svc, store := newTestAllocationService(t)

	_, err := svc.Create(context.Background(), AllocationRequest{SubjectID: "s-a", TimeSlotID: "ts1"})
	requireAppCode(t, err, appErrors.ErrValidation.Code)
	assert.Empty(t, store.calls)
}

func TestAllocationServiceUpdate(t *testing.T) {
	svc, store := newTestAllocationService(t)

	updated, err := svc.Update(context.Background(), "a2", allocationRequest("s-zoo", "t2", "ts3", "Tuesday", "Lab 1"))
	require.NoError(t, err)
	assert.Equal(t, "a2", updated.ID)
	assert.Equal(t, "ts3", updated.TimeSlotID)

	got, err := svc.Get(context.Background(), "a2")
	require.NoError(t, err)
	assert.Equal(t, "Tuesday", got.Day)
	assert.Len(t, store.snapshot(t), 2)

	_, err = svc.Update(context.Background(), "missing", allocationRequest("s-zoo", "t2", "ts3", "Tuesday", "Lab 1"))
	requireAppCode(t, err, appErrors.ErrNotFound.Code)
}

func TestAllocationServiceMove(t *testing.T) {
	svc, store := newTestAllocationService(t)
	require.NoError(t, store.Replace(context.Background(), append(store.snapshot(t),
		allocation("a3", "s-b", "t2", "ts1", "Monday", "", "sem3"),
	)))

	_, err := svc.Move(context.Background(), "a2", MoveAllocationRequest{TimeSlotID: "ts1"})
	requireAppCode(t, err, appErrors.ErrConflict.Code)
	got, err := svc.Get(context.Background(), "a2")
	require.NoError(t, err)
	assert.Equal(t, "ts2", got.TimeSlotID)

	moved, err := svc.Move(context.Background(), "a2", MoveAllocationRequest{TimeSlotID: "ts1", Day: "Tuesday"})
	require.NoError(t, err)
	assert.Equal(t, "ts1", moved.TimeSlotID)
	assert.Equal(t, "Tuesday", moved.Day)
	assert.Contains(t, store.calls, "backup")

	_, err = svc.Move(context.Background(), "a2", MoveAllocationRequest{})
	requireAppCode(t, err, appErrors.ErrValidation.Code)
}

func TestAllocationServiceMoveByDayID(t *testing.T) {
	svc, store := newTestAllocationService(t)

	moved, err := svc.Move(context.Background(), "a2", MoveAllocationRequest{TimeSlotID: "ts3", DayID: models.StringPtr("day-2")})
	require.NoError(t, err)
	assert.Equal(t, "Tuesday", moved.Day)

	var stored models.Allocation
	for _, item := range store.snapshot(t) {
		if item.ID == "a2" {
			stored = item
		}
	}
	assert.Equal(t, "Tuesday", stored.Day)
	require.NotNil(t, stored.DayID)
	assert.Equal(t, "day-2", *stored.DayID)
	assert.Equal(t, "ts3", stored.TimeSlotID)

	require.NoError(t, store.Replace(context.Background(), append(store.snapshot(t),
		allocation("a3", "s-b", "t1", "ts2", "Tuesday", "", "sem3"),
	)))
	_, err = svc.Move(context.Background(), "a1", MoveAllocationRequest{TimeSlotID: "ts2", DayID: models.StringPtr("day-2")})
	requireAppCode(t, err, appErrors.ErrConflict.Code)
}

// slowLoadStore widens the window between reading and writing the set.
type slowLoadStore struct {
	*memoryStore
	delay time.Duration
}

func (s *slowLoadStore) Load(ctx context.Context) ([]models.Allocation, error) {
	time.Sleep(s.delay)
	return s.memoryStore.Load(ctx)
}

func TestAllocationServiceConcurrentWritesKeepEveryRecord(t *testing.T) {
	base := newMemoryStore(t, []models.Allocation{
		allocation("a1", "s-chem", "t1", "ts1", "Monday", "R-44", "sem1"),
		allocation("a2", "s-zoo", "t2", "ts2", "Monday", "Lab 1", "sem1"),
	})
	store := &slowLoadStore{memoryStore: base, delay: 5 * time.Millisecond}
	refs := NewReferenceService(&stubReferenceSource{set: sampleReferenceSet()}, nil, nil, nil)
	svc := NewAllocationService(store, newTestPersistence(), refs, nil, nil, nil)
	var seq int32
	svc.newID = func() string { return fmt.Sprintf("new-%d", atomic.AddInt32(&seq, 1)) }

	requests := []AllocationRequest{
		allocationRequest("s-a", "t70", "ts3", "Tuesday", "R-44"),
		allocationRequest("s-b", "t1", "ts3", "Wednesday", "Lab 1"),
		allocationRequest("s-b", "t2", "ts1", "Thursday", "R-44"),
	}
	var wg sync.WaitGroup
	errs := make([]error, len(requests))
	for i := range requests {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), requests[i])
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "create %d", i)
	}
	assert.ElementsMatch(t, []string{"a1", "a2", "new-1", "new-2", "new-3"}, allocationIDs(base.snapshot(t)))
}

func TestAllocationServiceInactiveEntriesDoNotBlock(t *testing.T) {
	svc, _ := newTestAllocationService(t)

	deactivated, err := svc.SetActive(context.Background(), "a1", false)
	require.NoError(t, err)
	assert.False(t, deactivated.Active())

	_, err = svc.Create(context.Background(), allocationRequest("s-b", "t1", "ts1", "Monday", "R-44"))
	require.NoError(t, err)

	_, err = svc.SetActive(context.Background(), "a1", true)
	requireAppCode(t, err, appErrors.ErrConflict.Code)
}

func TestAllocationServiceDelete(t *testing.T) {
	svc, store := newTestAllocationService(t)

	require.NoError(t, svc.Delete(context.Background(), "a1"))
	assert.Equal(t, []string{"a2"}, allocationIDs(store.snapshot(t)))

	err := svc.Delete(context.Background(), "a1")
	requireAppCode(t, err, appErrors.ErrNotFound.Code)
}

func TestAllocationServiceList(t *testing.T) {
	svc, store := newTestAllocationService(t)
	require.NoError(t, store.Replace(context.Background(), []models.Allocation{
		allocation("a1", "s-chem", "t1", "ts1", "Monday", "R-44", "sem1"),
		allocation("a2", "s-zoo", "t2", "ts2", "Monday", "Lab 1", "sem1"),
		allocation("a3", "s-a", "t1", "ts3", "Tuesday", "r-44", "sem3"),
	}))

	items, page, err := svc.List(context.Background(), models.AllocationFilter{TeacherID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a3"}, allocationIDs(items))
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, 20, page.PageSize)

	items, _, err = svc.List(context.Background(), models.AllocationFilter{Room: "R-44", Day: "tuesday"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a3"}, allocationIDs(items))

	items, page, err = svc.List(context.Background(), models.AllocationFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"a3"}, allocationIDs(items))
	assert.Equal(t, 3, page.TotalCount)

	items, _, err = svc.List(context.Background(), models.AllocationFilter{Page: 5, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAllocationServiceLoadFailure(t *testing.T) {
	svc, store := newTestAllocationService(t)
	store.loadErr = fmt.Errorf("disk gone")

	_, err := svc.Get(context.Background(), "a1")
	requireAppCode(t, err, appErrors.ErrStorage.Code)
}

func TestAllocationServiceBackupsAndRestore(t *testing.T) {
	svc, store := newTestAllocationService(t)
	require.NoError(t, svc.Delete(context.Background(), "a2"))

	backups, err := svc.ListBackups(context.Background())
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Equal(t, "20240301T083000.000000000Z", backups[0].Timestamp)

	summary, err := svc.Restore(context.Background(), backups[0].Name)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, models.PersistModeReplace, summary.Mode)
	assert.ElementsMatch(t, []string{"a1", "a2"}, allocationIDs(store.snapshot(t)))

	_, err = svc.Restore(context.Background(), "memory.backup-missing")
	requireAppCode(t, err, appErrors.ErrStorage.Code)
}

func TestAllocationServiceCheckConflicts(t *testing.T) {
	svc, _ := newTestAllocationService(t)

	report, err := svc.CheckConflicts(context.Background(), []models.Allocation{
		allocation("candidate", "s-b", "t1", "ts1", "Monday", "Lab 1", "sem3"),
	})
	require.NoError(t, err)
	require.Len(t, report.TeacherConflicts, 1)
	assert.ElementsMatch(t, []string{"a1", "candidate"}, report.TeacherConflicts[0].EntryIDs)
	assert.Empty(t, report.RoomConflicts)

	groups, err := svc.CheckGroups(context.Background(), [][]models.Allocation{
		{allocation("g1", "s-b", "t2", "ts2", "Monday", "", "sem3")},
		{allocation("g2", "s-b", "t70", "ts3", "Monday", "", "sem3")},
	})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0].TeacherConflicts, 1)
	assert.True(t, groups[1].Empty())
}

func TestAllocationServicePersist(t *testing.T) {
	svc, store := newTestAllocationService(t)

	summary, err := svc.Persist(context.Background(), []models.Allocation{
		allocation("a3", "s-a", "t70", "ts3", "Tuesday", "R-44", "sem3"),
	}, models.PersistModeMerge)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Len(t, store.snapshot(t), 3)
	assert.Equal(t, "memory", svc.StoreName())
}
