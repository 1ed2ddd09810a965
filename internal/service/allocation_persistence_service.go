package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

// AllocationStore abstracts the file or table holding an allocation set.
// Replace must be all-or-nothing: on error the previous contents stay intact.
type AllocationStore interface {
	Name() string
	Exists(ctx context.Context) (bool, error)
	Load(ctx context.Context) ([]models.Allocation, error)
	Backup(ctx context.Context, at time.Time) (string, error)
	Replace(ctx context.Context, allocations []models.Allocation) error
}

type persistStage string

const (
	stageStart          persistStage = "START"
	stageBackup         persistStage = "BACKUP"
	stageLoadExisting   persistStage = "LOAD_EXISTING"
	stageMergeOrReplace persistStage = "MERGE_OR_REPLACE"
	stageEnrich         persistStage = "ENRICH"
	stageSort           persistStage = "SORT"
	stageValidate       persistStage = "VALIDATE"
	stageClean          persistStage = "CLEAN"
	stageWrite          persistStage = "WRITE"
	stageDone           persistStage = "DONE"
)

// PersistRequest describes one save of an allocation set.
type PersistRequest struct {
	Store     AllocationStore
	Reference *ReferenceData
	Incoming  []models.Allocation
	Mode      models.PersistMode
}

// AllocationPersistenceService backs up, merges, sorts, validates and writes
// allocation sets.
type AllocationPersistenceService struct {
	sorter  *AllocationSorter
	locker  StoreLocker
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewAllocationPersistenceService wires the coordinator. A nil locker defaults to
// in-process per-store locking.
func NewAllocationPersistenceService(sorter *AllocationSorter, locker StoreLocker, metrics *MetricsService, logger *zap.Logger) *AllocationPersistenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sorter == nil {
		sorter = NewAllocationSorter(logger)
	}
	if locker == nil {
		locker = NewLocalStoreLocker()
	}
	return &AllocationPersistenceService{
		sorter:  sorter,
		locker:  locker,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// MutateFunc derives the next allocation set from the stored one. Returning an
// error aborts the write before any stage runs.
type MutateFunc func(existing []models.Allocation) ([]models.Allocation, error)

// Persist runs START → BACKUP → LOAD_EXISTING → MERGE_OR_REPLACE → ENRICH → SORT →
// VALIDATE → CLEAN → WRITE → DONE while holding the store lock.
func (s *AllocationPersistenceService) Persist(ctx context.Context, req PersistRequest) (*models.PersistSummary, error) {
	if req.Store == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "allocation store missing")
	}
	if !req.Mode.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported persist mode %q", req.Mode))
	}
	release, err := s.acquire(ctx, req.Store)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.run(ctx, req)
}

// Mutate loads the stored set, applies mutate and persists the result in replace
// mode, all under one hold of the store lock.
func (s *AllocationPersistenceService) Mutate(ctx context.Context, store AllocationStore, ref *ReferenceData, mutate MutateFunc) (*models.PersistSummary, error) {
	if store == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "allocation store missing")
	}
	release, err := s.acquire(ctx, store)
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := store.Load(ctx)
	if err != nil {
		return nil, storageFailure("load", store.Name(), err)
	}
	next, err := mutate(existing)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, PersistRequest{Store: store, Reference: ref, Incoming: next, Mode: models.PersistModeReplace})
}

func (s *AllocationPersistenceService) acquire(ctx context.Context, store AllocationStore) (func(), error) {
	release, err := s.locker.Acquire(ctx, store.Name())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to acquire allocation store lock")
	}
	return release, nil
}

// run executes the stages. The caller holds the store lock.
func (s *AllocationPersistenceService) run(ctx context.Context, req PersistRequest) (*models.PersistSummary, error) {
	if req.Reference == nil {
		req.Reference = EmptyReferenceData()
	}
	start := time.Now()
	run := s.newRun(req)
	if err := run.execute(ctx); err != nil {
		s.metrics.ObservePersist(string(req.Mode), "failed", time.Since(start), 0, 0)
		s.logger.Error("allocation persist failed",
			zap.String("store", req.Store.Name()),
			zap.String("stage", string(run.stage)),
			zap.Error(err),
		)
		return nil, err
	}
	s.metrics.ObservePersist(string(req.Mode), "ok", time.Since(start), run.summary.Total, run.summary.Dropped)
	s.logger.Info("allocations persisted",
		zap.String("store", req.Store.Name()),
		zap.String("mode", string(req.Mode)),
		zap.Int("total", run.summary.Total),
		zap.Int("dropped", run.summary.Dropped),
		zap.String("backup", run.summary.Backup),
	)
	return &run.summary, nil
}

// persistRun carries the state between stages of one Persist call.
type persistRun struct {
	svc      *AllocationPersistenceService
	req      PersistRequest
	stage    persistStage
	existing []models.Allocation
	working  []models.Allocation
	keyed    []keyedAllocation
	cleaned  []models.Allocation
	summary  models.PersistSummary
}

func (s *AllocationPersistenceService) newRun(req PersistRequest) *persistRun {
	return &persistRun{
		svc:   s,
		req:   req,
		stage: stageStart,
		summary: models.PersistSummary{
			Mode:        req.Mode,
			Incoming:    len(req.Incoming),
			Departments: []string{},
		},
	}
}

func (r *persistRun) execute(ctx context.Context) error {
	steps := []struct {
		stage persistStage
		fn    func(context.Context) error
	}{
		{stageBackup, r.backup},
		{stageLoadExisting, r.loadExisting},
		{stageMergeOrReplace, r.mergeOrReplace},
		{stageEnrich, r.enrich},
		{stageSort, r.sort},
		{stageValidate, r.validate},
		{stageClean, r.clean},
		{stageWrite, r.write},
	}
	for _, step := range steps {
		r.transition(step.stage)
		if err := step.fn(ctx); err != nil {
			return err
		}
	}
	r.transition(stageDone)
	return nil
}

func (r *persistRun) transition(next persistStage) {
	r.svc.logger.Debug("persist stage", zap.String("from", string(r.stage)), zap.String("to", string(next)), zap.String("store", r.req.Store.Name()))
	r.stage = next
}

func (r *persistRun) backup(ctx context.Context) error {
	exists, err := r.req.Store.Exists(ctx)
	if err != nil {
		return storageFailure("stat", r.req.Store.Name(), err)
	}
	if !exists {
		return nil
	}
	location, err := r.req.Store.Backup(ctx, r.svc.now())
	if err != nil {
		return storageFailure("backup", r.req.Store.Name(), err)
	}
	r.summary.Backup = location
	return nil
}

func (r *persistRun) loadExisting(ctx context.Context) error {
	if r.req.Mode != models.PersistModeMerge {
		return nil
	}
	existing, err := r.req.Store.Load(ctx)
	if err != nil {
		return storageFailure("load", r.req.Store.Name(), err)
	}
	r.existing = existing
	r.summary.Existing = len(existing)
	return nil
}

func (r *persistRun) mergeOrReplace(context.Context) error {
	switch r.req.Mode {
	case models.PersistModeReplace:
		result := DedupeAllocations(nil, r.req.Incoming)
		r.working = result.Merged
		r.summary.Dropped = result.Dropped
	default:
		result := DedupeAllocations(r.existing, r.req.Incoming)
		r.working = result.Merged
		r.summary.Dropped = result.Dropped
	}
	if r.summary.Dropped > 0 {
		r.svc.logger.Info("duplicate allocation ids dropped", zap.Int("dropped", r.summary.Dropped), zap.String("mode", string(r.req.Mode)))
	}
	return nil
}

// enrich canonicalises the day of each record and attaches its sort key.
func (r *persistRun) enrich(context.Context) error {
	normalised := make([]models.Allocation, len(r.working))
	for i, item := range r.working {
		if day, ok := r.req.Reference.ResolveDay(item); ok {
			item.Day = day
		}
		normalised[i] = item
	}
	r.keyed = r.svc.sorter.enrich(normalised, r.req.Reference)
	return nil
}

func (r *persistRun) sort(context.Context) error {
	r.keyed = r.svc.sorter.sortKeyed(r.keyed)
	return nil
}

func (r *persistRun) validate(context.Context) error {
	var violations []models.AllocationViolation
	for i, item := range r.keyed {
		if missing := missingRequiredFields(item.allocation); len(missing) > 0 {
			violations = append(violations, models.AllocationViolation{AllocationID: item.allocation.ID, Index: i, Missing: missing})
		}
	}
	if len(violations) == 0 {
		return nil
	}
	verr := &models.AllocationValidationError{Violations: violations}
	return appErrors.Wrap(verr, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, verr.Error())
}

func (r *persistRun) clean(context.Context) error {
	departments := make(map[string]struct{})
	for _, item := range r.keyed {
		departments[item.key.department] = struct{}{}
	}
	r.cleaned = r.svc.sorter.strip(r.keyed)
	r.keyed = nil

	names := make([]string, 0, len(departments))
	for name := range departments {
		names = append(names, name)
	}
	sort.Strings(names)
	r.summary.Departments = names
	r.summary.Total = len(r.cleaned)
	return nil
}

func (r *persistRun) write(ctx context.Context) error {
	if err := r.req.Store.Replace(ctx, r.cleaned); err != nil {
		return storageFailure("write", r.req.Store.Name(), err)
	}
	return nil
}

func missingRequiredFields(a models.Allocation) []string {
	var missing []string
	if strings.TrimSpace(a.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(a.SubjectID) == "" {
		missing = append(missing, "subjectId")
	}
	if a.TeacherKey() == "" {
		missing = append(missing, "teacherId")
	}
	if strings.TrimSpace(a.TimeSlotID) == "" {
		missing = append(missing, "timeSlotId")
	}
	if strings.TrimSpace(a.Day) == "" {
		missing = append(missing, "day")
	}
	if strings.TrimSpace(a.SemesterID) == "" {
		missing = append(missing, "semesterId")
	}
	return missing
}

func storageFailure(op, store string, err error) error {
	var storageErr *models.StorageError
	if !errors.As(err, &storageErr) {
		storageErr = &models.StorageError{Op: op, Store: store, Err: err}
	}
	return appErrors.Wrap(storageErr, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, fmt.Sprintf("failed to %s allocation store", op))
}
