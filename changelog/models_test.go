package changelog

import (
	"testing"
	"time"

	"github.com/xraph/placement/id"
)

func TestSort(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &Change{ID: id.NewChangeID(), Timestamp: t0.Add(time.Second), Sequence: 1}
	b := &Change{ID: id.NewChangeID(), Timestamp: t0, Sequence: 3}
	c := &Change{ID: id.NewChangeID(), Timestamp: t0, Sequence: 2}

	changes := []*Change{a, b, c}
	Sort(changes)

	want := []*Change{c, b, a}
	for i := range want {
		if changes[i] != want[i] {
			t.Fatalf("position %d: got sequence %d at %v", i, changes[i].Sequence, changes[i].Timestamp)
		}
	}
}
