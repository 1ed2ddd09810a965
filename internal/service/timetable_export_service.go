package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/models"
	appErrors "github.com/noah-isme/college-timetable-api/pkg/errors"
	"github.com/noah-isme/college-timetable-api/pkg/export"
	"github.com/noah-isme/college-timetable-api/pkg/storage"
)

type sortedAllocationSource interface {
	Sorted(ctx context.Context) ([]models.Allocation, *ReferenceData, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// TimetableExportRequest narrows the exported allocations.
type TimetableExportRequest struct {
	SemesterID string `json:"semesterId"`
	Title      string `json:"title"`
	ActiveOnly bool   `json:"activeOnly"`
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	ID           string    `json:"id"`
	RelativePath string    `json:"-"`
	Token        string    `json:"token"`
	URL          string    `json:"url"`
	Rows         int       `json:"rows"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

var timetableHeaders = []string{"Department", "Day", "Period", "Subject", "Teacher", "Room", "Semester"}

// TimetableExportService renders the sorted allocation set as a PDF timetable and
// hands out signed download links.
type TimetableExportService struct {
	source  sortedAllocationSource
	storage fileStorage
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
	now     func() time.Time
}

// NewTimetableExportService constructs a TimetableExportService.
func NewTimetableExportService(source sortedAllocationSource, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, pdf pdfRenderer) *TimetableExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &TimetableExportService{
		source:  source,
		storage: files,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Generate renders the timetable, stores it and returns a signed download link.
func (s *TimetableExportService) Generate(ctx context.Context, req TimetableExportRequest) (*ExportResult, error) {
	allocations, ref, err := s.source.Sorted(ctx)
	if err != nil {
		return nil, err
	}
	dataset := BuildTimetableDataset(allocations, ref, req)
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Timetable"
		if req.SemesterID != "" {
			if sem, ok := ref.Semester(req.SemesterID); ok {
				title = "Timetable - " + sem.Name
			}
		}
	}

	payload, err := s.pdf.Render(dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}

	id := uuid.NewString()
	relPath, err := s.storage.Save(s.buildFilename(req), payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to store timetable export")
	}
	token, expiresAt, err := s.signer.Sign(id, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("timetable exported", zap.String("export_id", id), zap.String("path", relPath), zap.Int("rows", len(dataset.Rows)))
	return &ExportResult{
		ID:           id,
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/exports/%s", prefix, token),
		Rows:         len(dataset.Rows),
		ExpiresAt:    expiresAt,
	}, nil
}

// Resolve validates a download token and returns the stored file it points to.
func (s *TimetableExportService) Resolve(token string) (storage.SignedFile, error) {
	file, err := s.signer.Verify(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return storage.SignedFile{}, appErrors.Wrap(err, "EXPORT_EXPIRED", 410, "export link expired")
		}
		return storage.SignedFile{}, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	return file, nil
}

// Open returns a handle to the stored file.
func (s *TimetableExportService) Open(relPath string) (*os.File, error) {
	f, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export not found")
	}
	return f, nil
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *TimetableExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *TimetableExportService) buildFilename(req TimetableExportRequest) string {
	timestamp := s.now().UTC().Format("20060102_150405.000")
	return fmt.Sprintf("timetable_%s_%s.pdf", sanitizeFilename(req.SemesterID), timestamp)
}

// BuildTimetableDataset turns sorted allocations into export rows grouped by
// department. Unresolved references fall back to their ids.
func BuildTimetableDataset(allocations []models.Allocation, ref *ReferenceData, req TimetableExportRequest) export.Dataset {
	if ref == nil {
		ref = EmptyReferenceData()
	}
	dataset := export.Dataset{Headers: timetableHeaders, Group: "Department", Rows: []map[string]string{}}
	for _, item := range allocations {
		if req.SemesterID != "" && item.SemesterID != req.SemesterID {
			continue
		}
		if req.ActiveOnly && !item.Active() {
			continue
		}
		dataset.Rows = append(dataset.Rows, timetableRow(item, ref))
	}
	return dataset
}

func timetableRow(item models.Allocation, ref *ReferenceData) map[string]string {
	department := LabelUnknown
	if dept, ok := ref.DepartmentForSubject(item.SubjectID); ok {
		department = dept.Name
	}
	day, _ := ref.ResolveDay(item)
	period := item.TimeSlotID
	if p, ok := ref.Period(item.TimeSlotID); ok {
		period = strconv.Itoa(p)
	}
	subject := item.SubjectID
	if sub, ok := ref.Subject(item.SubjectID); ok {
		subject = sub.Name
	}
	teacher := item.TeacherKey()
	if t, ok := ref.Teacher(teacher); ok {
		teacher = t.Name
	} else if teacher == "" {
		teacher = LabelUnassigned
	}
	room, _ := ref.RoomLabel(item)
	if room == "" {
		room = LabelUnassigned
	}
	semester := item.SemesterID
	if sem, ok := ref.Semester(item.SemesterID); ok {
		semester = sem.Name
	}
	if !item.Active() {
		subject += " (inactive)"
	}
	return map[string]string{
		"Department": department,
		"Day":        day,
		"Period":     period,
		"Subject":    subject,
		"Teacher":    teacher,
		"Room":       room,
		"Semester":   semester,
	}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "all"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
