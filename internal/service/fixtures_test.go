package service

import (
	"github.com/noah-isme/college-timetable-api/internal/models"
)

func sampleReferenceSet() models.ReferenceSet {
	return models.ReferenceSet{
		Departments: []models.Department{
			{ID: "d-chem", Name: "Chemistry"},
			{ID: "d-zoo", Name: "Zoology"},
		},
		Teachers: []models.Teacher{
			{ID: "t1", Name: "Ada Lovelace"},
			{ID: "t2", Name: "Alan Turing"},
			{ID: "t70", Name: "Grace Hopper"},
		},
		Subjects: []models.Subject{
			{ID: "s-chem", Name: "Organic Chemistry", DepartmentID: models.StringPtr("d-chem")},
			{ID: "s-zoo", Name: "Vertebrate Zoology", DepartmentID: models.StringPtr("d-zoo")},
			{ID: "s-a", Name: "SubjectA", DepartmentID: models.StringPtr("d-chem")},
			{ID: "s-b", Name: "SubjectB", DepartmentID: models.StringPtr("d-zoo")},
		},
		Rooms: []models.Room{
			{ID: "r-44", Name: "R-44", Capacity: 40},
			{ID: "r-lab", Name: "Lab 1", Capacity: 20},
		},
		TimeSlots: []models.TimeSlot{
			{ID: "ts1", Name: "09:00", Period: 1},
			{ID: "ts2", Name: "10:00", Period: 2},
			{ID: "ts3", Name: "11:00", Period: 3},
		},
		Days: []models.Day{
			{ID: "day-1", Name: "Monday", Order: 1},
			{ID: "day-2", Name: "Tuesday", Order: 2},
		},
		Semesters: []models.Semester{
			{ID: "sem1", Name: "Semester 1", Number: 1, IsActive: true},
			{ID: "sem3", Name: "Semester 3", Number: 3, IsActive: true},
		},
	}
}

func sampleReference() *ReferenceData {
	return NewReferenceLoader(nil, nil).Load(sampleReferenceSet())
}

func allocation(id, subject, teacher, slot, day, room, semester string) models.Allocation {
	a := models.Allocation{ID: id, SubjectID: subject, TimeSlotID: slot, Day: day, SemesterID: semester}
	if teacher != "" {
		a.TeacherID = models.StringPtr(teacher)
	}
	if room != "" {
		a.Room = models.StringPtr(room)
	}
	return a
}

func allocationIDs(items []models.Allocation) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}
