package service

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// ConflictDetector finds teacher and room double-bookings. It never mutates its
// inputs, so independent checks can run concurrently over one snapshot.
type ConflictDetector struct {
	logger  *zap.Logger
	metrics *MetricsService
}

// NewConflictDetector constructs a detector.
func NewConflictDetector(logger *zap.Logger, metrics *MetricsService) *ConflictDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictDetector{logger: logger, metrics: metrics}
}

// HasConflicts reports whether any entry outside the group collides with it.
func (d *ConflictDetector) HasConflicts(group, universe []models.Allocation, ref *ReferenceData) bool {
	found := false
	d.scanGroup(group, universe, ref, func(models.ConflictKind, models.Allocation) bool {
		found = true
		return false
	})
	return found
}

// DescribeConflicts lists every entry in the universe that collides with the group.
//
// The group is a set of entries for the same subject and teacher recurring over
// several days. Its first entry supplies the teacher, room and time slot; the days
// of all group members form the day set a candidate must fall into.
func (d *ConflictDetector) DescribeConflicts(group, universe []models.Allocation, ref *ReferenceData) models.GroupConflicts {
	result := models.GroupConflicts{
		TeacherConflicts: []models.ConflictEntry{},
		RoomConflicts:    []models.ConflictEntry{},
	}
	res := d.newResolver(ref)
	d.scanGroup(group, universe, ref, func(kind models.ConflictKind, candidate models.Allocation) bool {
		entry := res.entry(candidate)
		if kind == models.ConflictKindTeacher {
			result.TeacherConflicts = append(result.TeacherConflicts, entry)
		} else {
			result.RoomConflicts = append(result.RoomConflicts, entry)
		}
		return true
	})
	d.metrics.ObserveConflicts(len(result.TeacherConflicts), len(result.RoomConflicts))
	return result
}

func (d *ConflictDetector) scanGroup(group, universe []models.Allocation, ref *ReferenceData, visit func(models.ConflictKind, models.Allocation) bool) {
	if len(group) == 0 {
		return
	}
	head := group[0]
	groupIDs := make(map[string]struct{}, len(group))
	currentDays := make(map[string]struct{}, len(group))
	for _, item := range group {
		groupIDs[item.ID] = struct{}{}
		if day := dayKey(item, ref); day != "" {
			currentDays[day] = struct{}{}
		}
	}
	teacher := head.TeacherKey()
	room := ref.RoomKey(head)
	if teacher == "" && room == "" {
		return
	}

	for _, candidate := range universe {
		if _, inGroup := groupIDs[candidate.ID]; inGroup || !candidate.Active() {
			continue
		}
		if candidate.TimeSlotID != head.TimeSlotID {
			continue
		}
		if _, sameDay := currentDays[dayKey(candidate, ref)]; !sameDay {
			continue
		}
		if teacher != "" && candidate.TeacherKey() == teacher {
			if !visit(models.ConflictKindTeacher, candidate) {
				return
			}
		}
		if room != "" && ref.RoomKey(candidate) == room {
			if !visit(models.ConflictKindRoom, candidate) {
				return
			}
		}
	}
}

// Detect reports every teacher or room double-booking that involves at least one
// of entries. Entries are checked against universe; a nil universe checks
// entries against themselves. Semester is not part of the key.
func (d *ConflictDetector) Detect(entries, universe []models.Allocation, ref *ReferenceData) models.ConflictReport {
	report := models.ConflictReport{
		TeacherConflicts: []models.Conflict{},
		RoomConflicts:    []models.Conflict{},
	}
	if len(entries) == 0 {
		return report
	}

	focus := make(map[string]struct{}, len(entries))
	for _, item := range entries {
		focus[item.ID] = struct{}{}
	}
	pool := mergePool(entries, universe)

	teacherBuckets := newBucketIndex()
	roomBuckets := newBucketIndex()
	for i, item := range pool {
		day := dayKey(item, ref)
		if day == "" || item.TimeSlotID == "" {
			continue
		}
		if teacher := item.TeacherKey(); teacher != "" {
			teacherBuckets.add(teacher+"\x00"+item.TimeSlotID+"\x00"+day, i)
		}
		if room := ref.RoomKey(item); room != "" {
			roomBuckets.add(room+"\x00"+item.TimeSlotID+"\x00"+day, i)
		}
	}

	res := d.newResolver(ref)
	report.TeacherConflicts = d.collect(models.ConflictKindTeacher, teacherBuckets, pool, focus, res)
	report.RoomConflicts = d.collect(models.ConflictKindRoom, roomBuckets, pool, focus, res)
	d.metrics.ObserveConflicts(len(report.TeacherConflicts), len(report.RoomConflicts))
	return report
}

// DetectGroups describes conflicts for independent groups in parallel.
func (d *ConflictDetector) DetectGroups(ctx context.Context, groups [][]models.Allocation, universe []models.Allocation, ref *ReferenceData) ([]models.GroupConflicts, error) {
	results := make([]models.GroupConflicts, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range groups {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = d.DescribeConflicts(groups[i], universe, ref)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (d *ConflictDetector) collect(kind models.ConflictKind, buckets *bucketIndex, pool []models.Allocation, focus map[string]struct{}, res *referenceResolver) []models.Conflict {
	conflicts := []models.Conflict{}
	for _, key := range buckets.order {
		members := buckets.members[key]
		if len(members) < 2 || !touchesFocus(members, pool, focus) {
			continue
		}
		first := pool[members[0]]
		conflict := models.Conflict{
			Kind:       kind,
			TimeSlotID: first.TimeSlotID,
			Day:        res.day(first),
			EntryIDs:   make([]string, 0, len(members)),
			Entries:    make([]models.ConflictEntry, 0, len(members)),
		}
		if kind == models.ConflictKindTeacher {
			conflict.Resource = first.TeacherKey()
		} else {
			conflict.Resource = res.room(first)
		}
		for _, idx := range members {
			conflict.EntryIDs = append(conflict.EntryIDs, pool[idx].ID)
			conflict.Entries = append(conflict.Entries, res.entry(pool[idx]))
		}
		conflicts = append(conflicts, conflict)
	}
	return conflicts
}

func touchesFocus(members []int, pool []models.Allocation, focus map[string]struct{}) bool {
	for _, idx := range members {
		if _, ok := focus[pool[idx].ID]; ok {
			return true
		}
	}
	return false
}

// mergePool concatenates entries and universe, keeps the first copy of each id and
// drops inactive records.
func mergePool(entries, universe []models.Allocation) []models.Allocation {
	if universe == nil {
		universe = entries
	}
	seen := make(map[string]struct{}, len(entries)+len(universe))
	pool := make([]models.Allocation, 0, len(entries)+len(universe))
	for _, set := range [][]models.Allocation{entries, universe} {
		for _, item := range set {
			if !item.Active() {
				continue
			}
			if item.ID != "" {
				if _, dup := seen[item.ID]; dup {
					continue
				}
				seen[item.ID] = struct{}{}
			}
			pool = append(pool, item)
		}
	}
	return pool
}

type bucketIndex struct {
	order   []string
	members map[string][]int
}

func newBucketIndex() *bucketIndex {
	return &bucketIndex{members: make(map[string][]int)}
}

func (b *bucketIndex) add(key string, idx int) {
	if _, ok := b.members[key]; !ok {
		b.order = append(b.order, key)
	}
	b.members[key] = append(b.members[key], idx)
}

// dayKey is the comparison form of an allocation's day.
func dayKey(a models.Allocation, ref *ReferenceData) string {
	day, _ := ref.ResolveDay(a)
	return strings.ToLower(day)
}

// referenceResolver turns allocations into display entries and warns once per
// dangling reference.
type referenceResolver struct {
	ref    *ReferenceData
	logger *zap.Logger
	warned map[string]struct{}
}

func (d *ConflictDetector) newResolver(ref *ReferenceData) *referenceResolver {
	return &referenceResolver{ref: ref, logger: d.logger, warned: make(map[string]struct{})}
}

func (r *referenceResolver) miss(kind, id, allocationID string) {
	key := kind + ":" + id
	if _, done := r.warned[key]; done {
		return
	}
	r.warned[key] = struct{}{}
	r.logger.Warn("unresolved reference", zap.String("kind", kind), zap.String("id", id), zap.String("allocation_id", allocationID))
}

func (r *referenceResolver) day(a models.Allocation) string {
	day, ok := r.ref.ResolveDay(a)
	if day == "" {
		r.miss("day", "", a.ID)
		return LabelUnknown
	}
	if !ok {
		r.miss("day", day, a.ID)
	}
	return day
}

func (r *referenceResolver) room(a models.Allocation) string {
	label, ok := r.ref.RoomLabel(a)
	if label == "" {
		return LabelUnassigned
	}
	if !ok {
		r.miss("room", label, a.ID)
	}
	return label
}

func (r *referenceResolver) entry(a models.Allocation) models.ConflictEntry {
	entry := models.ConflictEntry{
		AllocationID:   a.ID,
		SubjectID:      a.SubjectID,
		SubjectName:    LabelUnknown,
		TeacherName:    LabelUnassigned,
		Room:           r.room(a),
		TimeSlotID:     a.TimeSlotID,
		Day:            r.day(a),
		DepartmentName: LabelUnknown,
		SemesterID:     a.SemesterID,
		SemesterName:   LabelUnknown,
	}

	if subject, ok := r.ref.Subject(a.SubjectID); ok {
		entry.SubjectName = subject.Name
	} else {
		r.miss("subject", a.SubjectID, a.ID)
	}

	if teacherID := a.TeacherKey(); teacherID != "" {
		entry.TeacherID = teacherID
		if teacher, ok := r.ref.Teacher(teacherID); ok {
			entry.TeacherName = teacher.Name
		} else {
			entry.TeacherName = LabelUnknown
			r.miss("teacher", teacherID, a.ID)
		}
	}

	if period, ok := r.ref.Period(a.TimeSlotID); ok {
		entry.Period = period
	} else {
		r.miss("time_slot", a.TimeSlotID, a.ID)
	}

	if dept, ok := r.ref.DepartmentForSubject(a.SubjectID); ok {
		entry.DepartmentName = dept.Name
	}

	if semester, ok := r.ref.Semester(a.SemesterID); ok {
		entry.SemesterName = semester.Name
	} else {
		r.miss("semester", a.SemesterID, a.ID)
	}
	return entry
}
