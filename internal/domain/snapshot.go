package domain

import (
	"time"
)

// Snapshot is a fact table captured at a point in time
type Snapshot struct {
	ID       string    `json:"id"`
	TakenAt  time.Time `json:"taken_at"`
	Hostname string    `json:"hostname"`
	Facts    *FactSet  `json:"facts"`
}

// SnapshotInfo summarizes a stored snapshot without its facts
type SnapshotInfo struct {
	ID        string    `json:"id"`
	TakenAt   time.Time `json:"taken_at"`
	Hostname  string    `json:"hostname"`
	FactCount int       `json:"fact_count"`
}

// ChangeType classifies a difference between two fact tables
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
	ChangeChanged ChangeType = "changed"
)

// Change describes one fact that differs between two fact tables
type Change struct {
	Name   string     `json:"name"`
	Type   ChangeType `json:"type"`
	Before Value      `json:"before,omitempty"`
	After  Value      `json:"after,omitempty"`
}

// Diff compares two fact tables. Changes are listed in the order facts
// appear in before, followed by facts only present in after.
func Diff(before, after *FactSet) []Change {
	var changes []Change

	before.Range(func(name string, bv Value) bool {
		av, ok := after.Get(name)
		switch {
		case !ok:
			changes = append(changes, Change{Name: name, Type: ChangeRemoved, Before: bv})
		case !Equal(bv, av):
			changes = append(changes, Change{Name: name, Type: ChangeChanged, Before: bv, After: av})
		}
		return true
	})

	after.Range(func(name string, av Value) bool {
		if _, ok := before.Get(name); !ok {
			changes = append(changes, Change{Name: name, Type: ChangeAdded, After: av})
		}
		return true
	})

	return changes
}
