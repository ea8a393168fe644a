package util

import (
	"errors"
	"testing"
)

func TestParseAchievement(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{name: "thousands separator", input: "1,234.50", want: 1234.5},
		{name: "placeholder", input: "-", want: 0},
		{name: "empty", input: "", want: 0},
		{name: "padded", input: "  87.25 ", want: 87.25},
		{name: "negative", input: "-12,000", want: -12000},
		{name: "accounting negative", input: "(3,500)", want: -3500},
		{name: "percent", input: "95.5%", want: 95.5},
		{name: "nbsp", input: "1\u00A0000", want: 1000},
		{name: "garbage", input: "abc", want: 0, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseAchievement(tc.input)
			if tc.wantErr {
				if !errors.Is(err, ErrNotNumeric) {
					t.Fatalf("expected ErrNotNumeric, got %v", err)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestIsBlank(t *testing.T) {
	for _, in := range []string{"", " ", "-", " - "} {
		if !IsBlank(in) {
			t.Fatalf("%q should be blank", in)
		}
	}
	if IsBlank("0") {
		t.Fatal("0 is a value")
	}
}
