package lineitem

// Action names a line-item transition.
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionAssign   Action = "assign"
	ActionApprove  Action = "approve"
	ActionAccept   Action = "accept"
	ActionDeliver  Action = "deliver"
	ActionComplete Action = "complete"
	ActionCancel   Action = "cancel"
	ActionRefund   Action = "refund"
	ActionDispute  Action = "dispute"
)

type edge struct {
	from Status
	to   Status
}

var transitions = map[Action][]edge{
	ActionSubmit:   {{StatusDraft, StatusPendingSelection}},
	ActionAssign:   {{StatusPendingSelection, StatusSelected}, {StatusSelected, StatusSelected}},
	ActionApprove:  {{StatusSelected, StatusApproved}},
	ActionAccept:   {{StatusApproved, StatusInProgress}},
	ActionDeliver:  {{StatusInProgress, StatusDelivered}},
	ActionComplete: {{StatusDelivered, StatusCompleted}},
	ActionRefund:   {{StatusCompleted, StatusRefunded}},
	ActionDispute:  {{StatusCompleted, StatusDisputed}},
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	if a == ActionCancel {
		return true
	}
	_, ok := transitions[a]
	return ok
}

// Next returns the status reached by applying a to from. The boolean is
// false when the transition is not allowed.
func Next(from Status, a Action) (Status, bool) {
	if a == ActionCancel {
		if from.IsTerminal() {
			return "", false
		}
		return StatusCancelled, true
	}
	for _, e := range transitions[a] {
		if e.from == from {
			return e.to, true
		}
	}
	return "", false
}

// Allowed lists the actions that may be applied in status s.
func Allowed(s Status) []Action {
	order := []Action{
		ActionSubmit, ActionAssign, ActionApprove, ActionAccept, ActionDeliver,
		ActionComplete, ActionCancel, ActionRefund, ActionDispute,
	}
	var out []Action
	for _, a := range order {
		if _, ok := Next(s, a); ok {
			out = append(out, a)
		}
	}
	return out
}
