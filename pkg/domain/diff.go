package domain

import (
	"reflect"
	"sort"
)

// PayloadDiff represents the changes between two payloads.
// It is designed to be serialized to JSON for partial updates on an observer.
type PayloadDiff struct {
	// Changed contains added or modified keys with their new value.
	Changed map[string]any `json:"changed,omitempty"`

	// Removed lists keys present before and absent after.
	Removed []string `json:"removed,omitempty"`
}

// Empty reports whether the diff carries no change.
func (d *PayloadDiff) Empty() bool {
	return d == nil || (len(d.Changed) == 0 && len(d.Removed) == 0)
}

// Diff calculates the difference between before and after.
// It returns nil when nothing changed.
func Diff(before, after Payload) *PayloadDiff {
	diff := &PayloadDiff{}

	for k, v := range after {
		old, exists := before[k]
		if !exists || !reflect.DeepEqual(old, v) {
			if diff.Changed == nil {
				diff.Changed = make(map[string]any)
			}
			diff.Changed[k] = v
		}
	}

	for k := range before {
		if _, exists := after[k]; !exists {
			diff.Removed = append(diff.Removed, k)
		}
	}
	sort.Strings(diff.Removed)

	if diff.Empty() {
		return nil
	}
	return diff
}
