package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

type memoryStore struct {
	mu         sync.Mutex
	name       string
	data       []byte
	backups    map[string][]byte
	backupErr  error
	replaceErr error
	loadErr    error
	calls      []string
}

func newMemoryStore(t *testing.T, initial []models.Allocation) *memoryStore {
	t.Helper()
	store := &memoryStore{name: "memory", backups: make(map[string][]byte)}
	if initial != nil {
		payload, err := json.MarshalIndent(initial, "", "  ")
		require.NoError(t, err)
		store.data = payload
	}
	return store
}

func (m *memoryStore) Name() string { return m.name }

func (m *memoryStore) Exists(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "exists")
	return m.data != nil, nil
}

func (m *memoryStore) Load(ctx context.Context) ([]models.Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "load")
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return []models.Allocation{}, nil
	}
	var out []models.Allocation
	if err := json.Unmarshal(m.data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *memoryStore) Backup(ctx context.Context, at time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "backup")
	if m.backupErr != nil {
		return "", m.backupErr
	}
	name := fmt.Sprintf("%s.backup-%s", m.name, at.Format("20060102T150405.000000000Z"))
	m.backups[name] = append([]byte(nil), m.data...)
	return name, nil
}

func (m *memoryStore) Replace(ctx context.Context, allocations []models.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "replace")
	if m.replaceErr != nil {
		return m.replaceErr
	}
	payload, err := json.MarshalIndent(allocations, "", "  ")
	if err != nil {
		return err
	}
	m.data = payload
	return nil
}

func (m *memoryStore) snapshot(t *testing.T) []models.Allocation {
	t.Helper()
	out, err := m.Load(context.Background())
	require.NoError(t, err)
	return out
}

func newTestPersistence() *AllocationPersistenceService {
	svc := NewAllocationPersistenceService(nil, nil, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC) }
	return svc
}

func completeAllocation(id, subject, slot, day, room string) models.Allocation {
	return allocation(id, subject, "t1", slot, day, room, "sem1")
}

func TestPersistMergeKeepsExistingAndSorts(t *testing.T) {
	svc := newTestPersistence()
	store := newMemoryStore(t, []models.Allocation{
		completeAllocation("zoo-1", "s-zoo", "ts1", "Monday", "R-44"),
		completeAllocation("dup", "s-chem", "ts1", "Monday", "R-44"),
	})
	incoming := []models.Allocation{
		completeAllocation("dup", "s-chem", "ts2", "Tuesday", "Lab 1"),
		completeAllocation("chem-2", "s-chem", "ts2", "mon", "R-44"),
	}

	summary, err := svc.Persist(context.Background(), PersistRequest{
		Store:     store,
		Reference: sampleReference(),
		Incoming:  incoming,
		Mode:      models.PersistModeMerge,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, []string{"Chemistry", "Zoology"}, summary.Departments)
	assert.Equal(t, 2, summary.Existing)
	assert.Equal(t, 2, summary.Incoming)
	assert.Equal(t, 1, summary.Dropped)
	assert.Equal(t, "memory.backup-20240301T083000.000000000Z", summary.Backup)

	written := store.snapshot(t)
	assert.Equal(t, []string{"dup", "chem-2", "zoo-1"}, allocationIDs(written))
	assert.Equal(t, "ts1", written[0].TimeSlotID, "existing copy must win")
	assert.Equal(t, "Monday", written[1].Day, "day must be canonicalised")
	assert.Equal(t, []string{"exists", "backup", "load", "replace"}, store.calls[:4])
}

func TestPersistReplaceDiscardsExisting(t *testing.T) {
	svc := newTestPersistence()
	store := newMemoryStore(t, []models.Allocation{completeAllocation("old", "s-zoo", "ts1", "Monday", "R-44")})

	summary, err := svc.Persist(context.Background(), PersistRequest{
		Store:     store,
		Reference: sampleReference(),
		Incoming: []models.Allocation{
			completeAllocation("new", "s-chem", "ts1", "Monday", "R-44"),
			completeAllocation("new", "s-zoo", "ts2", "Monday", "R-44"),
		},
		Mode: models.PersistModeReplace,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, []string{"Chemistry"}, summary.Departments)
	assert.Zero(t, summary.Existing)
	assert.Equal(t, 1, summary.Dropped)
	assert.Equal(t, []string{"new"}, allocationIDs(store.snapshot(t)))
	assert.NotContains(t, store.calls[:3], "load")
	assert.Len(t, store.backups, 1)
}

func TestPersistWithoutPriorStoreSkipsBackup(t *testing.T) {
	svc := newTestPersistence()
	store := newMemoryStore(t, nil)

	summary, err := svc.Persist(context.Background(), PersistRequest{
		Store:    store,
		Incoming: []models.Allocation{completeAllocation("a", "s-missing", "ts1", "Monday", "")},
		Mode:     models.PersistModeMerge,
	})
	require.NoError(t, err)

	assert.Empty(t, summary.Backup)
	assert.Empty(t, store.backups)
	assert.Equal(t, []string{SentinelUnknownDepartment}, summary.Departments)
}

func TestPersistValidationLeavesStoreUnchanged(t *testing.T) {
	svc := newTestPersistence()
	store := newMemoryStore(t, []models.Allocation{completeAllocation("keep", "s-zoo", "ts1", "Monday", "R-44")})
	before := append([]byte(nil), store.data...)

	missingSemester := completeAllocation("bad", "s-chem", "ts1", "Monday", "R-44")
	missingSemester.SemesterID = ""
	missingTeacher := completeAllocation("bad-2", "s-chem", "ts2", "Monday", "R-44")
	missingTeacher.TeacherID = models.StringPtr("  ")

	summary, err := svc.Persist(context.Background(), PersistRequest{
		Store:     store,
		Reference: sampleReference(),
		Incoming:  []models.Allocation{missingSemester, missingTeacher},
		Mode:      models.PersistModeMerge,
	})
	require.Error(t, err)
	assert.Nil(t, summary)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)

	var verr *models.AllocationValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 2)
	assert.Equal(t, "bad", verr.Violations[0].AllocationID)
	assert.Equal(t, []string{"semesterId"}, verr.Violations[0].Missing)
	assert.Equal(t, []string{"teacherId"}, verr.Violations[1].Missing)
	assert.Contains(t, err.Error(), "allocation bad missing semesterId")

	assert.Equal(t, before, store.data)
	assert.NotContains(t, store.calls, "replace")
}

func TestPersistRejectsUnknownMode(t *testing.T) {
	svc := newTestPersistence()
	store := newMemoryStore(t, nil)

	_, err := svc.Persist(context.Background(), PersistRequest{Store: store, Mode: "append"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, store.calls)
}

func TestPersistStorageFailures(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*memoryStore)
		op    string
	}{
		{"backup", func(m *memoryStore) { m.backupErr = fs.ErrPermission }, "backup"},
		{"load", func(m *memoryStore) { m.loadErr = errors.New("corrupt") }, "load"},
		{"write", func(m *memoryStore) { m.replaceErr = fs.ErrPermission }, "write"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestPersistence()
			store := newMemoryStore(t, []models.Allocation{completeAllocation("keep", "s-zoo", "ts1", "Monday", "R-44")})
			tc.setup(store)
			before := append([]byte(nil), store.data...)

			_, err := svc.Persist(context.Background(), PersistRequest{
				Store:    store,
				Incoming: []models.Allocation{completeAllocation("n", "s-chem", "ts1", "Monday", "R-44")},
				Mode:     models.PersistModeMerge,
			})

			var appErr *appErrors.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, appErrors.ErrStorage.Code, appErr.Code)
			var storageErr *models.StorageError
			require.ErrorAs(t, err, &storageErr)
			assert.Equal(t, tc.op, storageErr.Op)
			assert.Equal(t, before, store.data)
		})
	}
}

func TestPersistKeepsExistingStorageError(t *testing.T) {
	svc := newTestPersistence()
	store := newMemoryStore(t, nil)
	store.replaceErr = &models.StorageError{Op: "rename", Store: "allocations.json", Err: fs.ErrPermission}

	_, err := svc.Persist(context.Background(), PersistRequest{
		Store:    store,
		Incoming: []models.Allocation{completeAllocation("n", "s-chem", "ts1", "Monday", "")},
		Mode:     models.PersistModeReplace,
	})

	var storageErr *models.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "rename", storageErr.Op)
	assert.ErrorIs(t, err, fs.ErrPermission)
}

func TestPersistSerialisesSameStore(t *testing.T) {
	svc := newTestPersistence()
	store := newMemoryStore(t, nil)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Persist(context.Background(), PersistRequest{
				Store:    store,
				Incoming: []models.Allocation{completeAllocation(fmt.Sprintf("a-%02d", i), "s-chem", "ts1", "Monday", "")},
				Mode:     models.PersistModeMerge,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.snapshot(t), 10)
}

func TestPersistRecordsMetrics(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewAllocationPersistenceService(nil, nil, metrics, nil)
	store := newMemoryStore(t, nil)

	_, err := svc.Persist(context.Background(), PersistRequest{
		Store:    store,
		Incoming: []models.Allocation{completeAllocation("a", "s-chem", "ts1", "Monday", "")},
		Mode:     models.PersistModeReplace,
	})
	require.NoError(t, err)
	_, err = svc.Persist(context.Background(), PersistRequest{
		Store:    store,
		Incoming: []models.Allocation{{ID: "broken"}},
		Mode:     models.PersistModeReplace,
	})
	require.Error(t, err)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.PersistSucceeded)
	assert.Equal(t, uint64(1), snap.PersistFailed)
	assert.Equal(t, 1, snap.LastPersistTotal)
}

func TestPersistStagesRunInOrder(t *testing.T) {
	svc := newTestPersistence()
	store := newMemoryStore(t, []models.Allocation{completeAllocation("x", "s-zoo", "ts1", "Monday", "")})
	run := svc.newRun(PersistRequest{
		Store:     store,
		Reference: sampleReference(),
		Incoming:  []models.Allocation{completeAllocation("y", "s-chem", "ts1", "1", "")},
		Mode:      models.PersistModeMerge,
	})
	ctx := context.Background()

	require.NoError(t, run.backup(ctx))
	assert.NotEmpty(t, run.summary.Backup)
	require.NoError(t, run.loadExisting(ctx))
	assert.Len(t, run.existing, 1)
	require.NoError(t, run.mergeOrReplace(ctx))
	assert.Equal(t, []string{"x", "y"}, allocationIDs(run.working))
	require.NoError(t, run.enrich(ctx))
	require.Len(t, run.keyed, 2)
	assert.Equal(t, "Monday", run.keyed[1].allocation.Day)
	assert.Equal(t, "Chemistry", run.keyed[1].key.department)
	require.NoError(t, run.sort(ctx))
	assert.Equal(t, "y", run.keyed[0].allocation.ID)
	require.NoError(t, run.validate(ctx))
	require.NoError(t, run.clean(ctx))
	assert.Nil(t, run.keyed)
	assert.Equal(t, []string{"y", "x"}, allocationIDs(run.cleaned))
	assert.Equal(t, []string{"Chemistry", "Zoology"}, run.summary.Departments)
	require.NoError(t, run.write(ctx))
	assert.Equal(t, []string{"y", "x"}, allocationIDs(store.snapshot(t)))
}
