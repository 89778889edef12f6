package contracts

import (
	"math/big"
	"testing"
)

func wei(tokens int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(tokens),
		new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestParseUnits_Whole(t *testing.T) {
	got, err := ParseUnits("500")
	if err != nil {
		t.Fatalf("ParseUnits: %v", err)
	}
	if got.Cmp(wei(500)) != 0 {
		t.Errorf("ParseUnits(500) = %s, want %s", got, wei(500))
	}
}

func TestParseUnits_Fractional(t *testing.T) {
	got, err := ParseUnits("1.5")
	if err != nil {
		t.Fatalf("ParseUnits: %v", err)
	}
	want, _ := new(big.Int).SetString("1500000000000000000", 10)
	if got.Cmp(want) != 0 {
		t.Errorf("ParseUnits(1.5) = %s, want %s", got, want)
	}
}

func TestParseUnits_TruncatesBeyond18Decimals(t *testing.T) {
	got, err := ParseUnits("0.1234567890123456789999")
	if err != nil {
		t.Fatalf("ParseUnits: %v", err)
	}
	want, _ := new(big.Int).SetString("123456789012345678", 10)
	if got.Cmp(want) != 0 {
		t.Errorf("ParseUnits = %s, want %s", got, want)
	}
}

func TestParseUnits_Invalid(t *testing.T) {
	for _, input := range []string{"", "abc", "1.2.3", "-5", "-0.5", "-0", "1.-2", "5.", "."} {
		if _, err := ParseUnits(input); err == nil {
			t.Errorf("ParseUnits(%q) should fail", input)
		}
	}
}

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		in   *big.Int
		want string
	}{
		{nil, "0"},
		{big.NewInt(0), "0"},
		{wei(1000), "1000"},
		{new(big.Int).Add(wei(2), big.NewInt(5e17)), "2.5"},
	}
	for _, c := range cases {
		if got := FormatUnits(c.in); got != c.want {
			t.Errorf("FormatUnits(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatUnitsRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "1", "1000", "2.5", "0.000001"} {
		parsed, err := ParseUnits(s)
		if err != nil {
			t.Fatalf("ParseUnits(%q): %v", s, err)
		}
		if got := FormatUnits(parsed); got != s {
			t.Errorf("Round trip %q -> %q", s, got)
		}
	}
}

func TestFormatUnitsFixed(t *testing.T) {
	if got := FormatUnitsFixed(wei(1000), 2); got != "1000.00" {
		t.Errorf("FormatUnitsFixed = %q, want 1000.00", got)
	}
	if got := FormatUnitsFixed(nil, 6); got != "0.000000" {
		t.Errorf("FormatUnitsFixed(nil) = %q, want 0.000000", got)
	}
}
