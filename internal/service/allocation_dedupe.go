package service

import "github.com/noah-isme/college-timetable-api/internal/models"

// DedupeResult is the merged set and how many later duplicates were removed.
type DedupeResult struct {
	Merged  []models.Allocation `json:"merged"`
	Dropped int                 `json:"droppedCount"`
}

// DedupeAllocations concatenates existing then incoming and keeps the first
// record seen for each id, in first-seen order. Duplicates are resolved, not
// reported as errors.
func DedupeAllocations(existing, incoming []models.Allocation) DedupeResult {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]models.Allocation, 0, len(existing)+len(incoming))
	dropped := 0
	for _, set := range [][]models.Allocation{existing, incoming} {
		for _, item := range set {
			if _, dup := seen[item.ID]; dup {
				dropped++
				continue
			}
			seen[item.ID] = struct{}{}
			merged = append(merged, item)
		}
	}
	return DedupeResult{Merged: merged, Dropped: dropped}
}
