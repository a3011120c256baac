package availability

import (
	"encoding/json"
	"fmt"

	"github.com/hackgods/clinic-scheduling-core/internal/scheduling"
)

// ConditionTable maps a patient's stated condition to the specialties that
// treat it. Keys are matched case-insensitively.
type ConditionTable struct {
	entries map[string][]string
}

func NewConditionTable(entries map[string][]string) *ConditionTable {
	t := &ConditionTable{entries: make(map[string][]string, len(entries))}
	for cond, specs := range entries {
		key := scheduling.NormalizeTag(cond)
		if key == "" || len(specs) == 0 {
			continue
		}
		t.entries[key] = append([]string(nil), specs...)
	}
	return t
}

// DefaultConditionTable is the built-in mapping used when none is configured.
func DefaultConditionTable() *ConditionTable {
	return NewConditionTable(map[string][]string{
		"regular checkup":     {"General Medicine", "Cardiology"},
		"checkup":             {"General Medicine"},
		"follow-up":           {"General Medicine"},
		"chest pain":          {"Cardiology"},
		"palpitations":        {"Cardiology"},
		"high blood pressure": {"Cardiology", "General Medicine"},
		"headache":            {"Neurology", "General Medicine"},
		"migraine":            {"Neurology"},
		"seizure":             {"Neurology"},
		"fever":               {"General Medicine", "Pediatrics"},
		"vaccination":         {"Pediatrics", "General Medicine"},
		"fracture":            {"Orthopedics"},
		"joint pain":          {"Orthopedics"},
		"back pain":           {"Orthopedics", "General Medicine"},
		"sports injury":       {"Orthopedics"},
	})
}

// ParseConditionTable reads a JSON object of condition to specialty list,
// e.g. {"chest pain": ["Cardiology"]}.
func ParseConditionTable(data []byte) (*ConditionTable, error) {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse condition table: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("parse condition table: no entries")
	}
	return NewConditionTable(raw), nil
}

// Lookup returns the specialties for condition, if the table knows it.
func (t *ConditionTable) Lookup(condition string) ([]string, bool) {
	specs, ok := t.entries[scheduling.NormalizeTag(condition)]
	if !ok {
		return nil, false
	}
	return append([]string(nil), specs...), true
}

func (t *ConditionTable) Len() int {
	return len(t.entries)
}

// Resolve turns the caller's need into a specialty tag set. A known specialty
// is used as is, a known condition is mapped through the table, and anything
// else is taken literally as a specialty.
func (t *ConditionTable) Resolve(need string, known map[string]struct{}) map[string]struct{} {
	key := scheduling.NormalizeTag(need)
	out := make(map[string]struct{})
	if _, ok := known[key]; ok {
		out[key] = struct{}{}
		return out
	}
	if specs, ok := t.Lookup(key); ok {
		for _, s := range specs {
			out[scheduling.NormalizeTag(s)] = struct{}{}
		}
		return out
	}
	out[key] = struct{}{}
	return out
}
