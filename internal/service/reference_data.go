package service

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// Fallback labels used when a reference cannot be resolved.
const (
	LabelUnknown              = "Unknown"
	LabelUnassigned           = "Unassigned"
	SentinelUnknownDepartment = "ZZ_Unknown"
	SentinelUnassignedRoom    = "ZZ_Unassigned"
)

// ReferenceData holds by-ID lookup maps for every entity kind. It is read-only
// once built and safe for concurrent readers.
type ReferenceData struct {
	departments map[string]models.Department
	teachers    map[string]models.Teacher
	subjects    map[string]models.Subject
	rooms       map[string]models.Room
	roomNames   map[string]string
	timeSlots   map[string]models.TimeSlot
	days        map[string]models.Day
	semesters   map[string]models.Semester
	skipped     int
}

// ReferenceLoader validates raw entity records and indexes them by id.
type ReferenceLoader struct {
	validator *validator.Validate
	logger    *zap.Logger
}

// NewReferenceLoader constructs a loader.
func NewReferenceLoader(validate *validator.Validate, logger *zap.Logger) *ReferenceLoader {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReferenceLoader{validator: validate, logger: logger}
}

// Load indexes the set. Duplicate ids overwrite earlier records; invalid records
// are dropped with a warning.
func (l *ReferenceLoader) Load(set models.ReferenceSet) *ReferenceData {
	ref := &ReferenceData{
		departments: make(map[string]models.Department, len(set.Departments)),
		teachers:    make(map[string]models.Teacher, len(set.Teachers)),
		subjects:    make(map[string]models.Subject, len(set.Subjects)),
		rooms:       make(map[string]models.Room, len(set.Rooms)),
		roomNames:   make(map[string]string, len(set.Rooms)),
		timeSlots:   make(map[string]models.TimeSlot, len(set.TimeSlots)),
		days:        make(map[string]models.Day, len(set.Days)),
		semesters:   make(map[string]models.Semester, len(set.Semesters)),
	}

	for _, item := range set.Departments {
		if l.accept("department", item.ID, item) {
			ref.departments[item.ID] = item
		} else {
			ref.skipped++
		}
	}
	for _, item := range set.Teachers {
		if l.accept("teacher", item.ID, item) {
			ref.teachers[item.ID] = item
		} else {
			ref.skipped++
		}
	}
	for _, item := range set.Subjects {
		if l.accept("subject", item.ID, item) {
			ref.subjects[item.ID] = item
		} else {
			ref.skipped++
		}
	}
	for _, item := range set.Rooms {
		if l.accept("room", item.ID, item) {
			ref.rooms[item.ID] = item
			ref.roomNames[strings.ToLower(strings.TrimSpace(item.Name))] = item.ID
		} else {
			ref.skipped++
		}
	}
	for _, item := range set.TimeSlots {
		if l.accept("time_slot", item.ID, item) {
			ref.timeSlots[item.ID] = item
		} else {
			ref.skipped++
		}
	}
	for _, item := range set.Days {
		if l.accept("day", item.ID, item) {
			ref.days[item.ID] = item
		} else {
			ref.skipped++
		}
	}
	for _, item := range set.Semesters {
		if l.accept("semester", item.ID, item) {
			ref.semesters[item.ID] = item
		} else {
			ref.skipped++
		}
	}

	l.logger.Debug("reference data loaded",
		zap.Int("departments", len(ref.departments)),
		zap.Int("teachers", len(ref.teachers)),
		zap.Int("subjects", len(ref.subjects)),
		zap.Int("rooms", len(ref.rooms)),
		zap.Int("time_slots", len(ref.timeSlots)),
		zap.Int("days", len(ref.days)),
		zap.Int("semesters", len(ref.semesters)),
		zap.Int("skipped", ref.skipped),
	)
	return ref
}

func (l *ReferenceLoader) accept(kind, id string, record interface{}) bool {
	if err := l.validator.Struct(record); err != nil {
		l.logger.Warn("skipping invalid reference record", zap.String("kind", kind), zap.String("id", id), zap.Error(err))
		return false
	}
	return true
}

// EmptyReferenceData returns lookups that miss for every key.
func EmptyReferenceData() *ReferenceData {
	return NewReferenceLoader(nil, nil).Load(models.ReferenceSet{})
}

// Skipped reports how many input records failed validation.
func (r *ReferenceData) Skipped() int {
	if r == nil {
		return 0
	}
	return r.skipped
}

func (r *ReferenceData) Department(id string) (models.Department, bool) {
	if r == nil {
		return models.Department{}, false
	}
	v, ok := r.departments[id]
	return v, ok
}

func (r *ReferenceData) Teacher(id string) (models.Teacher, bool) {
	if r == nil {
		return models.Teacher{}, false
	}
	v, ok := r.teachers[id]
	return v, ok
}

func (r *ReferenceData) Subject(id string) (models.Subject, bool) {
	if r == nil {
		return models.Subject{}, false
	}
	v, ok := r.subjects[id]
	return v, ok
}

func (r *ReferenceData) Room(id string) (models.Room, bool) {
	if r == nil {
		return models.Room{}, false
	}
	v, ok := r.rooms[id]
	return v, ok
}

func (r *ReferenceData) TimeSlot(id string) (models.TimeSlot, bool) {
	if r == nil {
		return models.TimeSlot{}, false
	}
	v, ok := r.timeSlots[id]
	return v, ok
}

func (r *ReferenceData) Day(id string) (models.Day, bool) {
	if r == nil {
		return models.Day{}, false
	}
	v, ok := r.days[id]
	return v, ok
}

func (r *ReferenceData) Semester(id string) (models.Semester, bool) {
	if r == nil {
		return models.Semester{}, false
	}
	v, ok := r.semesters[id]
	return v, ok
}

// DepartmentForSubject joins subjectId -> Subject.departmentId -> Department.
func (r *ReferenceData) DepartmentForSubject(subjectID string) (models.Department, bool) {
	subject, ok := r.Subject(subjectID)
	if !ok || subject.DepartmentID == nil {
		return models.Department{}, false
	}
	return r.Department(*subject.DepartmentID)
}

// Period joins timeSlotId -> TimeSlot.period.
func (r *ReferenceData) Period(timeSlotID string) (int, bool) {
	slot, ok := r.TimeSlot(timeSlotID)
	if !ok {
		return 0, false
	}
	return slot.Period, true
}

// RoomLabel returns the display name of the allocation's room. A roomId that does
// not resolve falls back to the raw id; a free-text room that happens to be a room
// id is resolved, otherwise used as-is.
func (r *ReferenceData) RoomLabel(a models.Allocation) (string, bool) {
	if a.RoomID != nil && strings.TrimSpace(*a.RoomID) != "" {
		id := strings.TrimSpace(*a.RoomID)
		if room, ok := r.Room(id); ok {
			return room.Name, true
		}
		return id, false
	}
	if a.Room != nil && strings.TrimSpace(*a.Room) != "" {
		label := strings.TrimSpace(*a.Room)
		if room, ok := r.Room(label); ok {
			return room.Name, true
		}
		return label, true
	}
	return "", false
}

// RoomKey identifies the booked room for conflict checks. An entry naming a Room by
// id and one naming it by display name share a key; rooms that resolve to no entity
// compare by their case-folded text.
func (r *ReferenceData) RoomKey(a models.Allocation) string {
	raw := a.RoomKey()
	if raw == "" || r == nil {
		return raw
	}
	value := ""
	if a.RoomID != nil && strings.TrimSpace(*a.RoomID) != "" {
		value = strings.TrimSpace(*a.RoomID)
	} else if a.Room != nil {
		value = strings.TrimSpace(*a.Room)
	}
	if room, ok := r.rooms[value]; ok {
		return "room:" + room.ID
	}
	if id, ok := r.roomNames[strings.ToLower(value)]; ok {
		return "room:" + id
	}
	return raw
}

// ResolveDay returns the canonical weekday for an allocation, consulting the day
// entity set when only dayId is present.
func (r *ReferenceData) ResolveDay(a models.Allocation) (string, bool) {
	if strings.TrimSpace(a.Day) != "" {
		return canonicalDay(a.Day)
	}
	if a.DayID == nil {
		return "", false
	}
	if day, ok := r.Day(*a.DayID); ok {
		return canonicalDay(day.Name)
	}
	return canonicalDay(*a.DayID)
}
