package core

import "testing"

func TestMoneyFromFloat(t *testing.T) {
	cases := []struct {
		in  float64
		out int64
	}{
		{50.00, 5000},
		{-50.00, -5000},
		{85.50, 8550},
		{0.005, 1},  // half-up
		{-0.005, -1},
		{0, 0},
		{3000.00, 300000},
	}
	for _, tc := range cases {
		if got := MoneyFromFloat(tc.in); got.Cents != tc.out {
			t.Fatalf("%v: expected %d cents, got %d", tc.in, tc.out, got.Cents)
		}
	}
}

func TestMoneyString(t *testing.T) {
	if got := (Money{Cents: -5000}).String(); got != "-50.00" {
		t.Fatalf("got %q", got)
	}
	if got := (Money{Cents: 8550}).String(); got != "85.50" {
		t.Fatalf("got %q", got)
	}
	if got := (Money{Cents: 7}).String(); got != "0.07" {
		t.Fatalf("got %q", got)
	}
}

func TestMoneyNegAbs(t *testing.T) {
	m := Money{Cents: 5000}
	if m.Neg().Cents != -5000 {
		t.Fatal("Neg should flip sign")
	}
	if m.Neg().Abs().Cents != 5000 {
		t.Fatal("Abs should drop sign")
	}
}
