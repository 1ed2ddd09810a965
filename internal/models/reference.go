package models

// Department groups subjects and teachers under an academic unit.
type Department struct {
	ID   string `db:"id" json:"id" validate:"required"`
	Name string `db:"name" json:"name" validate:"required"`
	Code string `db:"code" json:"code,omitempty"`
}

// Teacher represents an instructor who can be allocated to time slots.
type Teacher struct {
	ID           string  `db:"id" json:"id" validate:"required"`
	Name         string  `db:"name" json:"name" validate:"required"`
	Designation  string  `db:"designation" json:"designation,omitempty"`
	Email        string  `db:"email" json:"email,omitempty"`
	DepartmentID *string `db:"department_id" json:"departmentId,omitempty"`
}

// Subject is a course offered by a department.
type Subject struct {
	ID           string  `db:"id" json:"id" validate:"required"`
	Name         string  `db:"name" json:"name" validate:"required"`
	Code         string  `db:"code" json:"code,omitempty"`
	CreditHours  float64 `db:"credit_hours" json:"creditHours,omitempty"`
	DepartmentID *string `db:"department_id" json:"departmentId,omitempty"`
	SemesterID   *string `db:"semester_id" json:"semesterId,omitempty"`
}

// Room is a bookable teaching space.
type Room struct {
	ID       string `db:"id" json:"id" validate:"required"`
	Name     string `db:"name" json:"name" validate:"required"`
	Capacity int    `db:"capacity" json:"capacity,omitempty" validate:"min=0"`
	Type     string `db:"type" json:"type,omitempty"`
}

// TimeSlot is a numbered teaching period within a day.
type TimeSlot struct {
	ID        string `db:"id" json:"id" validate:"required"`
	Name      string `db:"name" json:"name,omitempty"`
	Period    int    `db:"period" json:"period" validate:"min=0"`
	StartTime string `db:"start_time" json:"startTime,omitempty"`
	EndTime   string `db:"end_time" json:"endTime,omitempty"`
}

// Day names a teaching day; Allocation.DayID points here.
type Day struct {
	ID    string `db:"id" json:"id" validate:"required"`
	Name  string `db:"name" json:"name" validate:"required"`
	Order int    `db:"day_order" json:"order,omitempty"`
}

// Semester scopes allocations to an academic period.
type Semester struct {
	ID           string  `db:"id" json:"id" validate:"required"`
	Name         string  `db:"name" json:"name" validate:"required"`
	Number       int     `db:"number" json:"number,omitempty"`
	DepartmentID *string `db:"department_id" json:"departmentId,omitempty"`
	IsActive     bool    `db:"is_active" json:"isActive"`
}

// ReferenceSet bundles raw entity records as read from a database or JSON directory.
type ReferenceSet struct {
	Departments []Department `json:"departments"`
	Teachers    []Teacher    `json:"teachers"`
	Subjects    []Subject    `json:"subjects"`
	Rooms       []Room       `json:"rooms"`
	TimeSlots   []TimeSlot   `json:"timeSlots"`
	Days        []Day        `json:"days"`
	Semesters   []Semester   `json:"semesters"`
}
