package fmath

import (
	"testing"
	"time"
)

func TestApproxEqual(t *testing.T) {
	cases := []struct {
		name string
		a, b float64
		want bool
	}{
		{"identical", 1.5, 1.5, true},
		{"both zero", 0, 0, true},
		{"tiny relative difference", 1.0, 1.0 + 1e-17, true},
		{"clearly different", 1.0, 1.1, false},
		{"opposite signs", 1e-20, -1e-20, false},
		{"zero vs nonzero", 0, 1e-9, false},
	}

	for _, tc := range cases {
		if got := ApproxEqual(tc.a, tc.b); got != tc.want {
			t.Errorf("%s: ApproxEqual(%v, %v) = %v, want %v", tc.name, tc.a, tc.b, got, tc.want)
		}
	}
}

func TestApproxZero(t *testing.T) {
	if !ApproxZero(0) {
		t.Error("ApproxZero(0) = false, want true")
	}
	if !ApproxZero(1e-17) {
		t.Error("ApproxZero(1e-17) = false, want true")
	}
	if ApproxZero(0.001) {
		t.Error("ApproxZero(0.001) = true, want false")
	}
	if ApproxZero(-0.001) {
		t.Error("ApproxZero(-0.001) = true, want false")
	}
}

func TestYearFraction(t *testing.T) {
	oneYear := time.Duration(364.25 * 24 * float64(time.Hour))
	if got := YearFraction(oneYear); got != 1.0 {
		t.Errorf("YearFraction(364.25 days) = %v, want 1.0", got)
	}

	if got := YearFraction(0); got != 0 {
		t.Errorf("YearFraction(0) = %v, want 0", got)
	}

	halfYear := time.Duration(364.25 * 12 * float64(time.Hour))
	if got := YearFraction(halfYear); got != 0.5 {
		t.Errorf("YearFraction(half year) = %v, want 0.5", got)
	}
}
