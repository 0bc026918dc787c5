package domain

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestDiff(t *testing.T) {
	tests := []struct {
		name     string
		before   Payload
		after    Payload
		wantDiff *PayloadDiff // nil means we expect no diff
	}{
		{
			name:   "Initial Payload (Before is Nil)",
			before: nil,
			after:  Payload{"a": 1},
			wantDiff: &PayloadDiff{
				Changed: map[string]any{"a": 1},
			},
		},
		{
			name:     "No Changes",
			before:   Payload{"a": 1, "b": []int{1, 2}},
			after:    Payload{"a": 1, "b": []int{1, 2}},
			wantDiff: nil,
		},
		{
			name:   "Modified and Added",
			before: Payload{"a": 1},
			after:  Payload{"a": 2, "c": "new"},
			wantDiff: &PayloadDiff{
				Changed: map[string]any{"a": 2, "c": "new"},
			},
		},
		{
			name:   "Removed keys are sorted",
			before: Payload{"z": 1, "b": 2, "keep": true},
			after:  Payload{"keep": true},
			wantDiff: &PayloadDiff{
				Removed: []string{"b", "z"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.before, tt.after)
			if !reflect.DeepEqual(got, tt.wantDiff) {
				gotJSON, _ := json.Marshal(got)
				wantJSON, _ := json.Marshal(tt.wantDiff)
				t.Errorf("Diff() = %s, want %s", gotJSON, wantJSON)
			}
		})
	}
}

func TestPayload_MergeDoesNotMutate(t *testing.T) {
	base := Payload{"a": 1}
	merged := base.Merge(Payload{"b": 2})

	if _, ok := base["b"]; ok {
		t.Fatal("Merge mutated the receiver")
	}
	if merged["a"] != 1 || merged["b"] != 2 {
		t.Fatalf("unexpected merge result: %v", merged)
	}
}
