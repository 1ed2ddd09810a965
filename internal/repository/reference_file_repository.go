package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// ReferenceFileRepository reads reference entities from JSON arrays in a
// directory (departments.json, teachers.json, ...). Missing files are empty sets.
type ReferenceFileRepository struct {
	dir string
}

// NewReferenceFileRepository binds the repository to a data directory.
func NewReferenceFileRepository(dir string) *ReferenceFileRepository {
	return &ReferenceFileRepository{dir: dir}
}

// Load reads every entity file.
func (r *ReferenceFileRepository) Load(ctx context.Context) (models.ReferenceSet, error) {
	var set models.ReferenceSet
	files := []struct {
		name string
		dest interface{}
	}{
		{"departments.json", &set.Departments},
		{"teachers.json", &set.Teachers},
		{"subjects.json", &set.Subjects},
		{"rooms.json", &set.Rooms},
		{"timeslots.json", &set.TimeSlots},
		{"days.json", &set.Days},
		{"semesters.json", &set.Semesters},
	}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return models.ReferenceSet{}, err
		}
		if err := r.read(file.name, file.dest); err != nil {
			return models.ReferenceSet{}, err
		}
	}
	return set, nil
}

func (r *ReferenceFileRepository) read(name string, dest interface{}) error {
	data, err := os.ReadFile(filepath.Join(r.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
