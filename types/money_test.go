package types

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name     string
		money    Money
		amount   int64
		currency string
		display  string
	}{
		{"USD", USD(4900), 4900, "usd", "$49.00"},
		{"EUR", EUR(19900), 19900, "eur", "€199.00"},
		{"GBP", GBP(9900), 9900, "gbp", "£99.00"},
		{"New lowercases", New(1500, "USD"), 1500, "usd", "$15.00"},
		{"Zero EUR", Zero("EUR"), 0, "eur", "€0.00"},
		{"Opaque tag", New(700, "xts"), 700, "xts", "XTS 7.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.money.Amount, tt.amount)
			}
			if tt.money.Currency != tt.currency {
				t.Errorf("Currency: got %s, want %s", tt.money.Currency, tt.currency)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestApplyRate(t *testing.T) {
	tests := []struct {
		name  string
		base  Money
		delta BasisPoints
		want  int64
	}{
		{"ten percent discount", USD(50000), -Percent(10), 45000},
		{"five percent discount on running price", USD(45000), -Percent(5), 42750},
		{"surcharge", USD(1200), Percent(25), 1500},
		{"rounds half up", USD(5), -Percent(50), 3},
		{"rounds down below half", USD(333), -Percent(10), 300},
		{"fractional percent", USD(10000), -BasisPoints(950), 9050},
		{"full discount", USD(1000), -Percent(100), 0},
		{"over discount floors at zero", USD(1000), -Percent(150), 0},
		{"zero base", USD(0), Percent(10), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.base.ApplyRate(tt.delta)
			if err != nil {
				t.Fatalf("ApplyRate: %v", err)
			}
			if got.Amount != tt.want {
				t.Errorf("ApplyRate: got %d, want %d", got.Amount, tt.want)
			}
			if got.Currency != tt.base.Currency {
				t.Errorf("currency changed: got %s, want %s", got.Currency, tt.base.Currency)
			}
		})
	}
}

func TestApplyRateOverflow(t *testing.T) {
	_, err := USD(math.MaxInt64 / 2).ApplyRate(Percent(10))
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
}

func TestAddDelta(t *testing.T) {
	tests := []struct {
		name  string
		base  Money
		delta int64
		want  int64
	}{
		{"add", USD(1000), 250, 1250},
		{"subtract", USD(1000), -250, 750},
		{"floors at zero", USD(100), -250, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.base.AddDelta(tt.delta)
			if err != nil {
				t.Fatalf("AddDelta: %v", err)
			}
			if got.Amount != tt.want {
				t.Errorf("AddDelta: got %d, want %d", got.Amount, tt.want)
			}
		})
	}

	if _, err := USD(math.MaxInt64).AddDelta(1); !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestMoneyCurrencyMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for currency mismatch")
		}
	}()

	_ = USD(100).Add(EUR(100))
}

func TestMoneyComparison(t *testing.T) {
	tests := []struct {
		name    string
		a, b    Money
		less    bool
		greater bool
		equal   bool
	}{
		{"Equal", USD(100), USD(100), false, false, true},
		{"Less", USD(50), USD(100), true, false, false},
		{"Greater", USD(200), USD(100), false, true, false},
		{"Zero equal", USD(0), Zero("usd"), false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.LessThan(tt.b); got != tt.less {
				t.Errorf("LessThan: got %v, want %v", got, tt.less)
			}
			if got := tt.a.GreaterThan(tt.b); got != tt.greater {
				t.Errorf("GreaterThan: got %v, want %v", got, tt.greater)
			}
			if got := tt.a.Equal(tt.b); got != tt.equal {
				t.Errorf("Equal: got %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestEqualPtr(t *testing.T) {
	tests := []struct {
		name string
		a, b *Money
		want bool
	}{
		{"both nil", nil, nil, true},
		{"one nil", USD(1).Ptr(), nil, false},
		{"equal", USD(1).Ptr(), USD(1).Ptr(), true},
		{"different currency", USD(1).Ptr(), EUR(1).Ptr(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EqualPtr(tt.a, tt.b); got != tt.want {
				t.Errorf("EqualPtr: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMoneyFormatMajor(t *testing.T) {
	tests := []struct {
		money    Money
		expected string
	}{
		{USD(4900), "49.00"},
		{USD(1), "0.01"},
		{USD(-4900), "-49.00"},
		{New(100, "jpy"), "100"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.money.FormatMajor(); got != tt.expected {
				t.Errorf("FormatMajor: got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(USD(4900))
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	expected := `{"amount":4900,"currency":"usd","display":"$49.00"}`
	if string(data) != expected {
		t.Errorf("JSON: got %s, want %s", string(data), expected)
	}
}

func TestBasisPointsString(t *testing.T) {
	tests := []struct {
		rate BasisPoints
		want string
	}{
		{Percent(10), "10%"},
		{BasisPoints(950), "9.5%"},
		{BasisPoints(1234), "12.34%"},
		{-Percent(5), "-5%"},
		{BasisPoints(-50), "-0.5%"},
		{BasisPoints(-7), "-0.07%"},
		{BasisPoints(-1250), "-12.5%"},
		{BasisPoints(0), "0%"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.rate.String(); got != tt.want {
				t.Errorf("String: got %s, want %s", got, tt.want)
			}
		})
	}
}

func BenchmarkApplyRate(b *testing.B) {
	m := USD(50000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.ApplyRate(-Percent(10))
	}
}
