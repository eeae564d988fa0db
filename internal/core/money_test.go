package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1234.5", "1234.5", true},
		{"1.234,56", "1234.56", true},
		{"R$ 1.234,56", "1234.56", true},
		{"-10", "-10", true},
		{"R$ -12,30", "-12.3", true},
		{"0", "0", true},
		{" 2.50 ", "2.5", true},
		{"1,234.50", "1234.5", true},
		{"R$ 12,345,678.9", "12345678.9", true},
		{"1,5", "1.5", true},
		{"abc", "", false},
		{"", "", false},
		{"R$", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFormatBRL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1234.5", "R$ 1.234,50"},
		{"0", "R$ 0,00"},
		{"12", "R$ 12,00"},
		{"999.999", "R$ 1.000,00"},
		{"1234567.891", "R$ 1.234.567,89"},
		{"-1234.5", "R$ -1.234,50"},
		{"100", "R$ 100,00"},
	}
	for _, tc := range cases {
		if got := FormatBRL(decimal.RequireFromString(tc.in)); got != tc.want {
			t.Fatalf("FormatBRL(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
