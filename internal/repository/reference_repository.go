package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// ReferenceRepository reads the reference entity tables in one pass.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository creates a new reference repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

const (
	selectDepartments = `SELECT id, name, COALESCE(code, '') AS code FROM departments ORDER BY name ASC`
	selectTeachers    = `SELECT id, name, COALESCE(designation, '') AS designation, COALESCE(email, '') AS email, department_id FROM teachers ORDER BY name ASC`
	selectSubjects    = `SELECT id, name, COALESCE(code, '') AS code, COALESCE(credit_hours, 0) AS credit_hours, department_id, semester_id FROM subjects ORDER BY name ASC`
	selectRooms       = `SELECT id, name, COALESCE(capacity, 0) AS capacity, COALESCE(type, '') AS type FROM rooms ORDER BY name ASC`
	selectTimeSlots   = `SELECT id, COALESCE(name, '') AS name, period, COALESCE(start_time, '') AS start_time, COALESCE(end_time, '') AS end_time FROM time_slots ORDER BY period ASC`
	selectDays        = `SELECT id, name, COALESCE(day_order, 0) AS day_order FROM days ORDER BY day_order ASC`
	selectSemesters   = `SELECT id, name, COALESCE(number, 0) AS number, department_id, is_active FROM semesters ORDER BY number ASC`
)

// Load returns every reference entity.
func (r *ReferenceRepository) Load(ctx context.Context) (models.ReferenceSet, error) {
	var set models.ReferenceSet
	steps := []struct {
		name  string
		query string
		dest  interface{}
	}{
		{"departments", selectDepartments, &set.Departments},
		{"teachers", selectTeachers, &set.Teachers},
		{"subjects", selectSubjects, &set.Subjects},
		{"rooms", selectRooms, &set.Rooms},
		{"time slots", selectTimeSlots, &set.TimeSlots},
		{"days", selectDays, &set.Days},
		{"semesters", selectSemesters, &set.Semesters},
	}
	for _, step := range steps {
		if err := r.db.SelectContext(ctx, step.dest, step.query); err != nil {
			return models.ReferenceSet{}, fmt.Errorf("list %s: %w", step.name, err)
		}
	}
	return set, nil
}
