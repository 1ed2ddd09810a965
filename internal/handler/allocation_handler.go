package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-timetable-api/internal/dto"
	"github.com/noah-isme/college-timetable-api/internal/models"
	"github.com/noah-isme/college-timetable-api/internal/service"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
	"github.com/noah-isme/college-timetable-api/pkg/response"
)

type allocationService interface {
	StoreName() string
	List(ctx context.Context, filter models.AllocationFilter) ([]models.Allocation, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Allocation, error)
	Create(ctx context.Context, req service.AllocationRequest) (*models.Allocation, error)
	Update(ctx context.Context, id string, req service.AllocationRequest) (*models.Allocation, error)
	Move(ctx context.Context, id string, req service.MoveAllocationRequest) (*models.Allocation, error)
	SetActive(ctx context.Context, id string, active bool) (*models.Allocation, error)
	Delete(ctx context.Context, id string) error
	Persist(ctx context.Context, incoming []models.Allocation, mode models.PersistMode) (*models.PersistSummary, error)
	CheckConflicts(ctx context.Context, entries []models.Allocation) (models.ConflictReport, error)
	CheckGroups(ctx context.Context, groups [][]models.Allocation) ([]models.GroupConflicts, error)
	ListBackups(ctx context.Context) ([]models.BackupInfo, error)
	Restore(ctx context.Context, name string) (*models.PersistSummary, error)
}

// AllocationHandler manages allocation endpoints.
type AllocationHandler struct {
	service allocationService
}

// NewAllocationHandler constructs handler.
func NewAllocationHandler(svc allocationService) *AllocationHandler {
	return &AllocationHandler{service: svc}
}

// List godoc
// @Summary List allocations
// @Tags Allocations
// @Produce json
// @Param semesterId query string false "Filter by semester"
// @Param teacherId query string false "Filter by teacher"
// @Param timeSlotId query string false "Filter by time slot"
// @Param day query string false "Filter by day"
// @Param room query string false "Filter by room"
// @Param active query bool false "Only active entries"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /allocations [get]
func (h *AllocationHandler) List(c *gin.Context) {
	var filter models.AllocationFilter
	filter.SemesterID = c.Query("semesterId")
	filter.TeacherID = c.Query("teacherId")
	filter.TimeSlotID = c.Query("timeSlotId")
	filter.Day = c.Query("day")
	filter.Room = c.Query("room")
	filter.ActiveOnly, _ = strconv.ParseBool(c.Query("active"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if limit, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = limit
	}

	items, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get allocation
// @Tags Allocations
// @Produce json
// @Param id path string true "Allocation ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /allocations/{id} [get]
func (h *AllocationHandler) Get(c *gin.Context) {
	item, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Create allocation
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body service.AllocationRequest true "Allocation payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /allocations [post]
func (h *AllocationHandler) Create(c *gin.Context) {
	var req service.AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid allocation payload"))
		return
	}
	item, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update allocation
// @Tags Allocations
// @Accept json
// @Produce json
// @Param id path string true "Allocation ID"
// @Param payload body service.AllocationRequest true "Allocation payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /allocations/{id} [put]
func (h *AllocationHandler) Update(c *gin.Context) {
	var req service.AllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid allocation payload"))
		return
	}
	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Move godoc
// @Summary Reassign allocation time slot
// @Tags Allocations
// @Accept json
// @Produce json
// @Param id path string true "Allocation ID"
// @Param payload body service.MoveAllocationRequest true "Target slot"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /allocations/{id}/slot [patch]
func (h *AllocationHandler) Move(c *gin.Context) {
	var req service.MoveAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid move payload"))
		return
	}
	item, err := h.service.Move(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// SetActive godoc
// @Summary Toggle allocation
// @Tags Allocations
// @Accept json
// @Produce json
// @Param id path string true "Allocation ID"
// @Param payload body dto.SetActiveRequest true "Active flag"
// @Success 200 {object} response.Envelope
// @Router /allocations/{id}/active [patch]
func (h *AllocationHandler) SetActive(c *gin.Context) {
	var req dto.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "isActive is required"))
		return
	}
	item, err := h.service.SetActive(c.Request.Context(), c.Param("id"), *req.IsActive)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete allocation
// @Tags Allocations
// @Param id path string true "Allocation ID"
// @Success 204
// @Router /allocations/{id} [delete]
func (h *AllocationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Persist godoc
// @Summary Persist an allocation batch
// @Description Merges (default) or replaces the stored set. The previous set is backed up first.
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body dto.PersistAllocationsRequest true "Batch"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /allocations/persist [post]
func (h *AllocationHandler) Persist(c *gin.Context) {
	var req dto.PersistAllocationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid persist payload"))
		return
	}
	if req.Mode == "" {
		req.Mode = models.PersistModeMerge
	}
	summary, err := h.service.Persist(c.Request.Context(), req.Allocations, req.Mode)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"store": h.service.StoreName()})
}

// CheckConflicts godoc
// @Summary Detect teacher and room double bookings
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param payload body dto.ConflictCheckRequest true "Entries to check"
// @Success 200 {object} response.Envelope
// @Router /allocations/conflicts [post]
func (h *AllocationHandler) CheckConflicts(c *gin.Context) {
	var req dto.ConflictCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid conflict payload"))
		return
	}
	report, err := h.service.CheckConflicts(c.Request.Context(), req.Entries)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil, map[string]interface{}{"conflictFree": report.Empty()})
}

// CheckGroups godoc
// @Summary Detect conflicts for recurring groups
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param payload body dto.GroupConflictCheckRequest true "Groups to check"
// @Success 200 {object} response.Envelope
// @Router /allocations/conflicts/groups [post]
func (h *AllocationHandler) CheckGroups(c *gin.Context) {
	var req dto.GroupConflictCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group payload"))
		return
	}
	results, err := h.service.CheckGroups(c.Request.Context(), req.Groups)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// ListBackups godoc
// @Summary List store backups
// @Tags Backups
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /allocations/backups [get]
func (h *AllocationHandler) ListBackups(c *gin.Context) {
	backups, err := h.service.ListBackups(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.BackupListResponse{Store: h.service.StoreName(), Backups: backups}, nil)
}

// Restore godoc
// @Summary Restore a store backup
// @Tags Backups
// @Accept json
// @Produce json
// @Param payload body dto.RestoreBackupRequest true "Backup name"
// @Success 200 {object} response.Envelope
// @Router /allocations/backups/restore [post]
func (h *AllocationHandler) Restore(c *gin.Context) {
	var req dto.RestoreBackupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "backup name is required"))
		return
	}
	summary, err := h.service.Restore(c.Request.Context(), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
