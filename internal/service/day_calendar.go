package service

import (
	"strconv"
	"strings"
)

const unknownOrder = 99

var weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

var weekdayAliases = func() map[string]string {
	aliases := make(map[string]string, len(weekdays)*3)
	for i, name := range weekdays {
		lower := strings.ToLower(name)
		aliases[lower] = name
		aliases[lower[:3]] = name
		aliases[strconv.Itoa(i+1)] = name
	}
	aliases["tues"] = "Tuesday"
	aliases["wed"] = "Wednesday"
	aliases["thur"] = "Thursday"
	aliases["thurs"] = "Thursday"
	return aliases
}()

// canonicalDay maps "monday", "MON" or "1" to "Monday". Unknown values are
// returned trimmed with ok=false.
func canonicalDay(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if name, ok := weekdayAliases[strings.ToLower(trimmed)]; ok {
		return name, true
	}
	return trimmed, false
}

// dayOrder ranks Monday=1 through Sunday=7; anything else is 99.
func dayOrder(day string) int {
	name, ok := canonicalDay(day)
	if !ok {
		return unknownOrder
	}
	for i, candidate := range weekdays {
		if candidate == name {
			return i + 1
		}
	}
	return unknownOrder
}
