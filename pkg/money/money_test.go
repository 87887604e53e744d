package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestRoundHalfAwayFromZero(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"0.005", "0.01"},
		{"-0.005", "-0.01"},
		{"0.648", "0.65"},
		{"1.2345", "1.23"},
		{"2.675", "2.68"},
		{"9", "9"},
	}
	for _, tc := range cases {
		got := Round(MustParse(tc.in))
		if !got.Equal(MustParse(tc.want)) {
			t.Fatalf("Round(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestRoundIsIdempotent(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"0.125", "3.14159", "-7.005", "100", "0.0049"} {
		once := Round(MustParse(raw))
		twice := Round(once)
		if !once.Equal(twice) {
			t.Fatalf("round not idempotent for %s: %s vs %s", raw, once, twice)
		}
	}
}

func TestRoundToPrecision(t *testing.T) {
	t.Parallel()

	if got := RoundTo(MustParse("1.23456"), 3); !got.Equal(MustParse("1.235")) {
		t.Fatalf("unexpected value %s", got)
	}
	if got := RoundTo(MustParse("1.5"), 0); !got.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected value %s", got)
	}
}

func TestFormat(t *testing.T) {
	t.Parallel()

	if got := FormatUSD(MustParse("9.7")); got != "$9.70" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := Format(decimal.NewFromInt(3), "€"); got != "€3.00" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := FormatTaxRate(MustParse("0.08")); got != "8.00%" {
		t.Fatalf("unexpected tax rate %q", got)
	}
}

func TestMinMaxSum(t *testing.T) {
	t.Parallel()

	a, b := MustParse("1.10"), MustParse("2.20")
	if !Max(a, b).Equal(b) || !Min(a, b).Equal(a) {
		t.Fatalf("min/max mismatch")
	}
	if got := Sum(a, b, MustParse("0.70")); !got.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("unexpected sum %s", got)
	}
	if !Sum().Equal(Zero) {
		t.Fatalf("empty sum should be zero")
	}
}
