package repository

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/college-timetable-api/internal/models"
)

// EncodeAllocations renders the set as a JSON array with 2-space indentation and a
// trailing newline. Field order follows the struct, so output is byte-stable.
func EncodeAllocations(allocations []models.Allocation) ([]byte, error) {
	if allocations == nil {
		allocations = []models.Allocation{}
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(allocations); err != nil {
		return nil, fmt.Errorf("encode allocations: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeAllocations parses a stored allocation array. Blank input decodes to an
// empty set.
func DecodeAllocations(data []byte) ([]models.Allocation, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []models.Allocation{}, nil
	}
	var allocations []models.Allocation
	if err := json.Unmarshal(data, &allocations); err != nil {
		return nil, fmt.Errorf("decode allocations: %w", err)
	}
	if allocations == nil {
		allocations = []models.Allocation{}
	}
	return allocations, nil
}
