package models

import "fmt"

// ConflictKind distinguishes the resource that is double-booked.
type ConflictKind string

const (
	ConflictKindTeacher ConflictKind = "TEACHER"
	ConflictKindRoom    ConflictKind = "ROOM"
)

// ConflictEntry is an allocation with its references resolved to display names.
type ConflictEntry struct {
	AllocationID   string `json:"allocationId"`
	SubjectID      string `json:"subjectId"`
	SubjectName    string `json:"subjectName"`
	TeacherID      string `json:"teacherId,omitempty"`
	TeacherName    string `json:"teacherName"`
	Room           string `json:"room"`
	TimeSlotID     string `json:"timeSlotId"`
	Period         int    `json:"period"`
	Day            string `json:"day"`
	DepartmentName string `json:"departmentName"`
	SemesterID     string `json:"semesterId"`
	SemesterName   string `json:"semesterName"`
}

// Conflict groups every entry sharing one resource at one time slot on one day.
type Conflict struct {
	Kind       ConflictKind    `json:"kind"`
	Resource   string          `json:"resource"`
	TimeSlotID string          `json:"timeSlotId"`
	Day        string          `json:"day"`
	EntryIDs   []string        `json:"entryIds"`
	Entries    []ConflictEntry `json:"entries"`
}

// ConflictReport is the result of checking a set of allocations against a universe.
type ConflictReport struct {
	TeacherConflicts []Conflict `json:"teacherConflicts"`
	RoomConflicts    []Conflict `json:"roomConflicts"`
}

// Empty reports whether no conflict of either kind was found.
func (r ConflictReport) Empty() bool {
	return len(r.TeacherConflicts) == 0 && len(r.RoomConflicts) == 0
}

// GroupConflicts lists the entries outside a group that collide with it.
type GroupConflicts struct {
	TeacherConflicts []ConflictEntry `json:"teacherConflicts"`
	RoomConflicts    []ConflictEntry `json:"roomConflicts"`
}

// Empty reports whether the group is conflict-free.
func (g GroupConflicts) Empty() bool {
	return len(g.TeacherConflicts) == 0 && len(g.RoomConflicts) == 0
}

// AllocationConflictError is returned when a write would double-book a teacher or room.
type AllocationConflictError struct {
	Message string         `json:"message"`
	Report  ConflictReport `json:"report"`
}

// Error implements the error interface for conflict errors.
func (e *AllocationConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s: %d teacher, %d room", e.Message, len(e.Report.TeacherConflicts), len(e.Report.RoomConflicts))
}
