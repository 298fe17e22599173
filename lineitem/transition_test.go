package lineitem

import (
	"slices"
	"testing"
)

func TestNext(t *testing.T) {
	tests := []struct {
		from   Status
		action Action
		want   Status
		ok     bool
	}{
		{StatusDraft, ActionSubmit, StatusPendingSelection, true},
		{StatusPendingSelection, ActionAssign, StatusSelected, true},
		{StatusSelected, ActionAssign, StatusSelected, true},
		{StatusSelected, ActionApprove, StatusApproved, true},
		{StatusApproved, ActionAccept, StatusInProgress, true},
		{StatusInProgress, ActionDeliver, StatusDelivered, true},
		{StatusDelivered, ActionComplete, StatusCompleted, true},
		{StatusCompleted, ActionRefund, StatusRefunded, true},
		{StatusCompleted, ActionDispute, StatusDisputed, true},
		{StatusApproved, ActionCancel, StatusCancelled, true},
		{StatusDraft, ActionCancel, StatusCancelled, true},

		{StatusCompleted, ActionApprove, "", false},
		{StatusCompleted, ActionCancel, "", false},
		{StatusCancelled, ActionCancel, "", false},
		{StatusDraft, ActionApprove, "", false},
		{StatusApproved, ActionAssign, "", false},
		{StatusRefunded, ActionDispute, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.action), func(t *testing.T) {
			got, ok := Next(tt.from, tt.action)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Next: got (%q, %v), want (%q, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestAllowed(t *testing.T) {
	got := Allowed(StatusSelected)
	want := []Action{ActionAssign, ActionApprove, ActionCancel}
	if !slices.Equal(got, want) {
		t.Errorf("Allowed(selected): got %v, want %v", got, want)
	}

	if got := Allowed(StatusRefunded); len(got) != 0 {
		t.Errorf("Allowed(refunded): got %v, want none", got)
	}
}

func TestActionValid(t *testing.T) {
	for _, a := range []Action{ActionSubmit, ActionCancel, ActionDispute} {
		if !a.Valid() {
			t.Errorf("%s should be valid", a)
		}
	}
	if Action("publish").Valid() {
		t.Error("unknown action reported valid")
	}
}
