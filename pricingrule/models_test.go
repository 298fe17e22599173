package pricingrule

import (
	"testing"
	"time"

	"github.com/xraph/placement/types"
)

func TestConditionsMatch(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	tests := []struct {
		name string
		cond Conditions
		ctx  Context
		want bool
	}{
		{"empty matches", Conditions{}, Context{Quantity: 1}, true},
		{"below min quantity", Conditions{MinQuantity: 5}, Context{Quantity: 2}, false},
		{"at min quantity", Conditions{MinQuantity: 5}, Context{Quantity: 5}, true},
		{"above max quantity", Conditions{MaxQuantity: 3}, Context{Quantity: 4}, false},
		{"order value too low", Conditions{MinOrderValue: 1000}, Context{OrderValue: 999}, false},
		{"client listed", Conditions{ClientIDs: []string{"a", "b"}}, Context{ClientID: "b"}, true},
		{"client not listed", Conditions{ClientIDs: []string{"a"}}, Context{ClientID: "c"}, false},
		{"inside window", Conditions{ValidFrom: &before, ValidUntil: &after}, Context{At: now}, true},
		{"not yet valid", Conditions{ValidFrom: &after}, Context{At: now}, false},
		{"expired", Conditions{ValidUntil: &before}, Context{At: now}, false},
		{"window without instant", Conditions{ValidFrom: &before}, Context{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cond.Match(tt.ctx); got != tt.want {
				t.Errorf("Match: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSigned(t *testing.T) {
	d := &Rule{Type: TypeDiscount, Actions: Actions{Percent: types.Percent(10), Amount: 50}}
	pct, amt := d.Signed()
	if pct != -types.Percent(10) || amt != -50 {
		t.Errorf("discount: got (%v, %d)", pct, amt)
	}

	s := &Rule{Type: TypeSurcharge, Actions: Actions{Percent: types.Percent(10), Amount: 50}}
	pct, amt = s.Signed()
	if pct != types.Percent(10) || amt != 50 {
		t.Errorf("surcharge: got (%v, %d)", pct, amt)
	}
}
