package money

import "testing"

func TestFromRupees(t *testing.T) {
	cases := []struct {
		in      string
		want    Paise
		wantErr bool
	}{
		{"1500", 150000, false},
		{"1500.50", 150050, false},
		{"0.01", 1, false},
		{"0", 0, false},
		{"-25.75", -2575, false},
		{"1500.505", 0, true}, // sub-paise precision
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, c := range cases {
		got, err := FromRupees(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("FromRupees(%q): expected error, got %d", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("FromRupees(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("FromRupees(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestString(t *testing.T) {
	if s := Paise(150000).String(); s != "1500.00" {
		t.Errorf("String() = %q, want 1500.00", s)
	}
	if s := Paise(-2575).String(); s != "-25.75" {
		t.Errorf("String() = %q, want -25.75", s)
	}
}

func TestMulDivBpsRoundHalfUp(t *testing.T) {
	cases := []struct {
		amount Paise
		bps    int64
		want   Paise
	}{
		{100000, 200, 2000},  // 2% MDR on 1000.00
		{2000, 1800, 360},    // 18% GST on 20.00
		{25, 200, 1},         // 0.5 rounds up
		{24, 200, 0},         // 0.48 rounds down
		{75, 100, 1},         // 0.75 rounds up
		{-25, 200, 0},        // -0.5 half-up rounds toward zero
		{-26, 200, -1},       // -0.52 rounds to -1
		{0, 200, 0},
	}
	for _, c := range cases {
		if got := c.amount.MulDivBps(c.bps); got != c.want {
			t.Errorf("Paise(%d).MulDivBps(%d) = %d, want %d", c.amount, c.bps, got, c.want)
		}
	}
}

func TestMulDivPct(t *testing.T) {
	if got := Paise(97640).MulDivPct(5); got != 4882 {
		t.Errorf("5%% of 97640 = %d, want 4882", got)
	}
	if got := Paise(100).MulDivPct(0); got != 0 {
		t.Errorf("0%% = %d, want 0", got)
	}
}

func TestWithinBps(t *testing.T) {
	// 999 paise off 100000 is under 1%.
	if !Paise(100000).WithinBps(100999, 100) {
		t.Error("0.999% deviation should be within 100 bps")
	}
	// Exactly 1% is out of the tight band.
	if Paise(100000).WithinBps(101000, 100) {
		t.Error("exactly 1% deviation must not be within 100 bps")
	}
	// Exactly 5% is out of the loose band (scenario: 210000 vs 200000).
	if Paise(200000).WithinBps(210000, 500) {
		t.Error("exactly 5% deviation must not be within 500 bps")
	}
	if !Paise(200000).WithinBps(209999, 500) {
		t.Error("just under 5% should be within 500 bps")
	}
	// Zero base can never satisfy a percentage comparison.
	if Paise(0).WithinBps(1, 10000) {
		t.Error("zero base must fail the percentage comparison")
	}
}

func TestAbs(t *testing.T) {
	if Paise(-5).Abs() != 5 || Paise(5).Abs() != 5 {
		t.Error("Abs broken")
	}
}
