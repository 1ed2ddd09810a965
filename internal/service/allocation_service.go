package service

import (
	"context"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
)

type referenceProvider interface {
	Load(ctx context.Context) (*ReferenceData, error)
}

// BackupStore is implemented by allocation stores that can list and read back
// their backups.
type BackupStore interface {
	ListBackups(ctx context.Context) ([]models.BackupInfo, error)
	RestoreBackup(ctx context.Context, name string) ([]models.Allocation, error)
}

// AllocationRequest represents the payload for creating or updating an allocation.
type AllocationRequest struct {
	SubjectID  string  `json:"subjectId" validate:"required"`
	TeacherID  *string `json:"teacherId" validate:"required"`
	TimeSlotID string  `json:"timeSlotId" validate:"required"`
	Day        string  `json:"day" validate:"required"`
	DayID      *string `json:"dayId"`
	Room       *string `json:"room" validate:"omitempty,max=100"`
	RoomID     *string `json:"roomId"`
	SemesterID string  `json:"semesterId" validate:"required"`
	IsActive   *bool   `json:"isActive"`
}

// MoveAllocationRequest reassigns an allocation to another slot, as a drag does.
type MoveAllocationRequest struct {
	TimeSlotID string  `json:"timeSlotId" validate:"required"`
	Day        string  `json:"day"`
	DayID      *string `json:"dayId"`
}

// AllocationService exposes CRUD over the stored allocation set. Every write goes
// through the persistence coordinator so backups, ordering and validation apply.
type AllocationService struct {
	store       AllocationStore
	persistence *AllocationPersistenceService
	references  referenceProvider
	detector    *ConflictDetector
	validator   *validator.Validate
	logger      *zap.Logger
	newID       func() string
}

// NewAllocationService constructs an AllocationService.
func NewAllocationService(store AllocationStore, persistence *AllocationPersistenceService, references referenceProvider, detector *ConflictDetector, validate *validator.Validate, logger *zap.Logger) *AllocationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if persistence == nil {
		persistence = NewAllocationPersistenceService(nil, nil, nil, logger)
	}
	if detector == nil {
		detector = NewConflictDetector(logger, nil)
	}
	return &AllocationService{
		store:       store,
		persistence: persistence,
		references:  references,
		detector:    detector,
		validator:   validate,
		logger:      logger,
		newID:       func() string { return uuid.NewString() },
	}
}

// StoreName identifies the backing store.
func (s *AllocationService) StoreName() string {
	return s.store.Name()
}

// List returns stored allocations matching the filter plus pagination data.
func (s *AllocationService) List(ctx context.Context, filter models.AllocationFilter) ([]models.Allocation, *models.Pagination, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	matched := make([]models.Allocation, 0, len(all))
	for _, item := range all {
		if matchesFilter(item, filter) {
			matched = append(matched, item)
		}
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: len(matched)}
	start := (page - 1) * size
	if start >= len(matched) {
		return []models.Allocation{}, pagination, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], pagination, nil
}

// Get returns an allocation by id.
func (s *AllocationService) Get(ctx context.Context, id string) (*models.Allocation, error) {
	all, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(all, id)
	if idx < 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "allocation not found")
	}
	item := all[idx]
	return &item, nil
}

// Create validates the payload, rejects double bookings and stores a new allocation.
func (s *AllocationService) Create(ctx context.Context, req AllocationRequest) (*models.Allocation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation payload")
	}
	item := allocationFromRequest(s.newID(), req)
	return s.write(ctx, "create", func(all []models.Allocation) ([]models.Allocation, *models.Allocation, error) {
		return append(all, item), &item, nil
	})
}

// Update replaces the fields of an existing allocation.
func (s *AllocationService) Update(ctx context.Context, id string, req AllocationRequest) (*models.Allocation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation payload")
	}
	return s.write(ctx, "update", func(all []models.Allocation) ([]models.Allocation, *models.Allocation, error) {
		idx := indexOf(all, id)
		if idx < 0 {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "allocation not found")
		}
		all[idx] = allocationFromRequest(id, req)
		return all, &all[idx], nil
	})
}

// Move reassigns the time slot, and optionally the day, of an allocation.
func (s *AllocationService) Move(ctx context.Context, id string, req MoveAllocationRequest) (*models.Allocation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	return s.write(ctx, "move", func(all []models.Allocation) ([]models.Allocation, *models.Allocation, error) {
		idx := indexOf(all, id)
		if idx < 0 {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "allocation not found")
		}
		all[idx].TimeSlotID = req.TimeSlotID
		if day := strings.TrimSpace(req.Day); day != "" {
			all[idx].Day = day
			all[idx].DayID = req.DayID
		} else if req.DayID != nil {
			all[idx].Day = ""
			all[idx].DayID = req.DayID
		}
		return all, &all[idx], nil
	})
}

// SetActive toggles whether an allocation takes part in scheduling.
func (s *AllocationService) SetActive(ctx context.Context, id string, active bool) (*models.Allocation, error) {
	return s.write(ctx, "set_active", func(all []models.Allocation) ([]models.Allocation, *models.Allocation, error) {
		idx := indexOf(all, id)
		if idx < 0 {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "allocation not found")
		}
		all[idx].IsActive = models.BoolPtr(active)
		return all, &all[idx], nil
	})
}

// Delete removes an allocation.
func (s *AllocationService) Delete(ctx context.Context, id string) error {
	_, err := s.write(ctx, "delete", func(all []models.Allocation) ([]models.Allocation, *models.Allocation, error) {
		idx := indexOf(all, id)
		if idx < 0 {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "allocation not found")
		}
		return append(all[:idx], all[idx+1:]...), nil, nil
	})
	return err
}

// Persist runs the persistence coordinator against the configured store.
func (s *AllocationService) Persist(ctx context.Context, incoming []models.Allocation, mode models.PersistMode) (*models.PersistSummary, error) {
	ref, err := s.reference(ctx)
	if err != nil {
		return nil, err
	}
	return s.persistence.Persist(ctx, PersistRequest{Store: s.store, Reference: ref, Incoming: incoming, Mode: mode})
}

// CheckConflicts reports double bookings of entries against the stored set.
func (s *AllocationService) CheckConflicts(ctx context.Context, entries []models.Allocation) (models.ConflictReport, error) {
	all, ref, err := s.snapshot(ctx)
	if err != nil {
		return models.ConflictReport{}, err
	}
	return s.detector.Detect(entries, all, ref), nil
}

// CheckGroups describes conflicts for each group against the stored set.
func (s *AllocationService) CheckGroups(ctx context.Context, groups [][]models.Allocation) ([]models.GroupConflicts, error) {
	all, ref, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	results, err := s.detector.DetectGroups(ctx, groups, all, ref)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check allocation groups")
	}
	return results, nil
}

// Sorted returns the stored set in display order with the reference data used.
func (s *AllocationService) Sorted(ctx context.Context) ([]models.Allocation, *ReferenceData, error) {
	all, ref, err := s.snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	return s.persistence.sorter.Sort(all, ref), ref, nil
}

// ListBackups returns the backups held by the store, oldest first.
func (s *AllocationService) ListBackups(ctx context.Context) ([]models.BackupInfo, error) {
	backups, ok := s.store.(BackupStore)
	if !ok {
		return []models.BackupInfo{}, nil
	}
	items, err := backups.ListBackups(ctx)
	if err != nil {
		return nil, storageFailure("list backups of", s.store.Name(), err)
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Timestamp < items[j].Timestamp })
	return items, nil
}

// Restore replaces the stored set with the contents of a backup. The current set
// is itself backed up first.
func (s *AllocationService) Restore(ctx context.Context, name string) (*models.PersistSummary, error) {
	backups, ok := s.store.(BackupStore)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "allocation store does not support backups")
	}
	restored, err := backups.RestoreBackup(ctx, name)
	if err != nil {
		return nil, storageFailure("restore", s.store.Name(), err)
	}
	summary, err := s.Persist(ctx, restored, models.PersistModeReplace)
	if err != nil {
		return nil, err
	}
	s.logger.Info("allocation backup restored", zap.String("store", s.store.Name()), zap.String("backup", name))
	return summary, nil
}

// write applies mutate to the stored set under the store lock, rejects new double
// bookings of the changed entry and persists the result in replace mode.
func (s *AllocationService) write(ctx context.Context, op string, mutate func([]models.Allocation) ([]models.Allocation, *models.Allocation, error)) (*models.Allocation, error) {
	ref, err := s.reference(ctx)
	if err != nil {
		return nil, err
	}
	var result *models.Allocation
	_, err = s.persistence.Mutate(ctx, s.store, ref, func(all []models.Allocation) ([]models.Allocation, error) {
		next, changed, err := mutate(all)
		if err != nil {
			return nil, err
		}
		if changed == nil {
			return next, nil
		}
		if idx := indexOf(next, changed.ID); idx >= 0 {
			if day, ok := ref.ResolveDay(next[idx]); ok {
				next[idx].Day = day
			}
			changed = &next[idx]
		}
		if changed.Active() {
			report := s.detector.Detect([]models.Allocation{*changed}, next, ref)
			if !report.Empty() {
				conflict := &models.AllocationConflictError{Message: "allocation conflicts with existing bookings", Report: report}
				return nil, appErrors.Wrap(conflict, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, conflict.Message)
			}
		}
		copied := *changed
		result = &copied
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("allocation written", zap.String("op", op), zap.String("store", s.store.Name()))
	return result, nil
}

func (s *AllocationService) snapshot(ctx context.Context) ([]models.Allocation, *ReferenceData, error) {
	ref, err := s.reference(ctx)
	if err != nil {
		return nil, nil, err
	}
	all, err := s.load(ctx)
	if err != nil {
		return nil, nil, err
	}
	return all, ref, nil
}

func (s *AllocationService) load(ctx context.Context) ([]models.Allocation, error) {
	all, err := s.store.Load(ctx)
	if err != nil {
		return nil, storageFailure("load", s.store.Name(), err)
	}
	return all, nil
}

func (s *AllocationService) reference(ctx context.Context) (*ReferenceData, error) {
	if s.references == nil {
		return EmptyReferenceData(), nil
	}
	return s.references.Load(ctx)
}

func allocationFromRequest(id string, req AllocationRequest) models.Allocation {
	return models.Allocation{
		ID:         id,
		SubjectID:  strings.TrimSpace(req.SubjectID),
		TeacherID:  req.TeacherID,
		TimeSlotID: strings.TrimSpace(req.TimeSlotID),
		Day:        strings.TrimSpace(req.Day),
		DayID:      req.DayID,
		Room:       req.Room,
		RoomID:     req.RoomID,
		SemesterID: strings.TrimSpace(req.SemesterID),
		IsActive:   req.IsActive,
	}
}

func matchesFilter(item models.Allocation, filter models.AllocationFilter) bool {
	if filter.SemesterID != "" && item.SemesterID != filter.SemesterID {
		return false
	}
	if filter.TeacherID != "" && item.TeacherKey() != filter.TeacherID {
		return false
	}
	if filter.TimeSlotID != "" && item.TimeSlotID != filter.TimeSlotID {
		return false
	}
	if filter.Day != "" && !strings.EqualFold(item.Day, filter.Day) {
		return false
	}
	if filter.Room != "" && item.RoomKey() != strings.ToLower(strings.TrimSpace(filter.Room)) {
		return false
	}
	if filter.ActiveOnly && !item.Active() {
		return false
	}
	return true
}

func indexOf(all []models.Allocation, id string) int {
	for i := range all {
		if all[i].ID == id {
			return i
		}
	}
	return -1
}
