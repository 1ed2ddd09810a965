package models

import "strings"

// Allocation is a single timetable entry: a subject taught by a teacher in a room
// at a time slot on a day for a semester.
type Allocation struct {
	ID         string  `db:"id" json:"id"`
	SubjectID  string  `db:"subject_id" json:"subjectId"`
	TeacherID  *string `db:"teacher_id" json:"teacherId"`
	TimeSlotID string  `db:"time_slot_id" json:"timeSlotId"`
	Day        string  `db:"day" json:"day"`
	DayID      *string `db:"day_id" json:"dayId,omitempty"`
	Room       *string `db:"room" json:"room"`
	RoomID     *string `db:"room_id" json:"roomId,omitempty"`
	SemesterID string  `db:"semester_id" json:"semesterId"`
	IsActive   *bool   `db:"is_active" json:"isActive,omitempty"`
}

// Active reports whether the entry takes part in scheduling. Absent means active.
func (a Allocation) Active() bool {
	return a.IsActive == nil || *a.IsActive
}

// TeacherKey returns the assigned teacher id or "" when unassigned.
func (a Allocation) TeacherKey() string {
	if a.TeacherID == nil {
		return ""
	}
	return strings.TrimSpace(*a.TeacherID)
}

// RoomKey is the case-folded room text, preferring roomId over the free-text room.
// Conflict checks resolve it against reference rooms first.
func (a Allocation) RoomKey() string {
	if a.RoomID != nil && strings.TrimSpace(*a.RoomID) != "" {
		return strings.ToLower(strings.TrimSpace(*a.RoomID))
	}
	if a.Room != nil {
		return strings.ToLower(strings.TrimSpace(*a.Room))
	}
	return ""
}

// AllocationFilter narrows allocation listings.
type AllocationFilter struct {
	SemesterID string
	TeacherID  string
	TimeSlotID string
	Day        string
	Room       string
	ActiveOnly bool
	Page       int
	PageSize   int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// StringPtr is a small helper for optional string fields.
func StringPtr(v string) *string {
	return &v
}

// BoolPtr is a small helper for optional bool fields.
func BoolPtr(v bool) *bool {
	return &v
}
