package service

import (
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// allocationSortKey is the derived (departmentName, room, dayOrder, period) tuple.
// Unresolved components carry a sentinel and a flag that sorts them last.
type allocationSortKey struct {
	department      string
	departmentKnown bool
	room            string
	roomKnown       bool
	dayOrder        int
	period          int
}

// keyedAllocation pairs an allocation with its ephemeral sort key.
type keyedAllocation struct {
	allocation models.Allocation
	key        allocationSortKey
}

// AllocationSorter orders allocation sets deterministically.
type AllocationSorter struct {
	logger *zap.Logger
	mu     sync.Mutex
	coll   *collate.Collator
}

// NewAllocationSorter constructs a sorter using English collation for names.
func NewAllocationSorter(logger *zap.Logger) *AllocationSorter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationSorter{logger: logger, coll: collate.New(language.English)}
}

// Sort returns a new slice ordered by department name, room, day and period.
// Equal keys keep their input order.
func (s *AllocationSorter) Sort(allocations []models.Allocation, ref *ReferenceData) []models.Allocation {
	return s.strip(s.sortKeyed(s.enrich(allocations, ref)))
}

func (s *AllocationSorter) enrich(allocations []models.Allocation, ref *ReferenceData) []keyedAllocation {
	warned := make(map[string]struct{})
	warn := func(kind, id, allocationID string) {
		if _, done := warned[kind+":"+id]; done {
			return
		}
		warned[kind+":"+id] = struct{}{}
		s.logger.Warn("unresolved reference during sort", zap.String("kind", kind), zap.String("id", id), zap.String("allocation_id", allocationID))
	}

	keyed := make([]keyedAllocation, 0, len(allocations))
	for _, item := range allocations {
		key := allocationSortKey{
			department: SentinelUnknownDepartment,
			room:       SentinelUnassignedRoom,
			dayOrder:   unknownOrder,
			period:     unknownOrder,
		}
		if dept, ok := ref.DepartmentForSubject(item.SubjectID); ok {
			key.department = dept.Name
			key.departmentKnown = true
		} else {
			warn("subject_department", item.SubjectID, item.ID)
		}
		if room, _ := ref.RoomLabel(item); room != "" {
			key.room = room
			key.roomKnown = true
		}
		if day, ok := ref.ResolveDay(item); ok {
			key.dayOrder = dayOrder(day)
		}
		if period, ok := ref.Period(item.TimeSlotID); ok {
			key.period = period
		} else {
			warn("time_slot", item.TimeSlotID, item.ID)
		}
		keyed = append(keyed, keyedAllocation{allocation: item, key: key})
	}
	return keyed
}

func (s *AllocationSorter) sortKeyed(keyed []keyedAllocation) []keyedAllocation {
	// collate.Collator keeps internal buffers and is not safe for concurrent use.
	s.mu.Lock()
	defer s.mu.Unlock()
	sort.SliceStable(keyed, func(i, j int) bool {
		return s.less(keyed[i].key, keyed[j].key)
	})
	return keyed
}

func (s *AllocationSorter) less(a, b allocationSortKey) bool {
	if c := s.compareName(a.department, a.departmentKnown, b.department, b.departmentKnown); c != 0 {
		return c < 0
	}
	if c := s.compareName(a.room, a.roomKnown, b.room, b.roomKnown); c != 0 {
		return c < 0
	}
	if a.dayOrder != b.dayOrder {
		return a.dayOrder < b.dayOrder
	}
	return a.period < b.period
}

func (s *AllocationSorter) compareName(a string, aKnown bool, b string, bKnown bool) int {
	switch {
	case aKnown && !bKnown:
		return -1
	case !aKnown && bKnown:
		return 1
	case !aKnown && !bKnown:
		return 0
	}
	return s.coll.CompareString(a, b)
}

func (s *AllocationSorter) strip(keyed []keyedAllocation) []models.Allocation {
	out := make([]models.Allocation, len(keyed))
	for i, item := range keyed {
		out[i] = item.allocation
	}
	return out
}
