package money

import "testing"

func TestArithmetic(t *testing.T) {
	a := FromDollars(120)
	b := FromCents(2550)

	if got := a.Add(b).Cents; got != 14550 {
		t.Errorf("Add = %d cents, want 14550", got)
	}
	if got := a.Sub(b).Cents; got != 9450 {
		t.Errorf("Sub = %d cents, want 9450", got)
	}
	if got := a.Multiply(4).Cents; got != 48000 {
		t.Errorf("Multiply(4) = %d cents, want 48000", got)
	}
	if !Zero().IsZero() {
		t.Error("Zero().IsZero() = false")
	}
}

func TestPercent(t *testing.T) {
	cases := []struct {
		name  string
		cents int64
		pct   int
		want  int64
	}{
		{"half of even amount", 100000, 50, 50000},
		{"half of odd cent rounds up", 101, 50, 51},
		{"full amount", 100000, 100, 100000},
		{"zero percent", 100000, 0, 0},
		{"negative percent clamps to zero", 100000, -10, 0},
		{"over 100 clamps to full", 100000, 150, 100000},
		{"rounding half up", 5, 50, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FromCents(tc.cents).Percent(tc.pct).Cents; got != tc.want {
				t.Errorf("FromCents(%d).Percent(%d) = %d, want %d", tc.cents, tc.pct, got, tc.want)
			}
		})
	}
}

func TestString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{100000, "1000.00"},
		{10000, "100.00"},
		{51, "0.51"},
		{0, "0.00"},
		{-2550, "-25.50"},
	}
	for _, tc := range cases {
		if got := FromCents(tc.cents).String(); got != tc.want {
			t.Errorf("FromCents(%d).String() = %q, want %q", tc.cents, got, tc.want)
		}
	}
}
