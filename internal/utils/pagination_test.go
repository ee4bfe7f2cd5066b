package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		in   string
		def  int
		want int
	}{
		{"42", 0, 42},
		{"", 10, 10},
		{"x", 5, 5},
		{"-3", 0, -3},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.in, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d, want %d", tc.in, tc.def, got, tc.want)
		}
	}
}

func TestClampPage(t *testing.T) {
	cases := []struct {
		offset, limit         int
		wantOffset, wantLimit int
	}{
		{0, 20, 0, 20},
		{-5, 20, 0, 20},
		{3, 0, 3, 20},
		{3, -1, 3, 20},
		{0, 500, 0, 100},
	}
	for _, tc := range cases {
		off, lim := ClampPage(tc.offset, tc.limit, 20, 100)
		if off != tc.wantOffset || lim != tc.wantLimit {
			t.Fatalf("ClampPage(%d, %d) = (%d, %d), want (%d, %d)",
				tc.offset, tc.limit, off, lim, tc.wantOffset, tc.wantLimit)
		}
	}
}
