package models

import "time"

// MetricsSnapshot is the JSON summary served next to the Prometheus endpoint.
type MetricsSnapshot struct {
	RequestsTotal    uint64    `json:"requestsTotal"`
	CacheHitRatio    float64   `json:"cacheHitRatio"`
	TeacherConflicts uint64    `json:"teacherConflicts"`
	RoomConflicts    uint64    `json:"roomConflicts"`
	PersistSucceeded uint64    `json:"persistSucceeded"`
	PersistFailed    uint64    `json:"persistFailed"`
	LastPersistTotal int       `json:"lastPersistTotal"`
	Goroutines       int       `json:"goroutines"`
	GeneratedAt      time.Time `json:"generatedAt"`
}
