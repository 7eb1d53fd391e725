package logging

import "testing"

func TestFormatSubject(t *testing.T) {
	cases := []struct {
		lane, item, stage string
		want              string
	}{
		{"analysis", "4", "scoring", "Analysis · VOD #4 (scoring)"},
		{"DELIVERY", "9", "", "Delivery · VOD #9"},
		{"", "", "polish", "polish"},
		{" ", " ", " ", ""},
		{"analysis", "", "", "Analysis"},
	}
	for _, tc := range cases {
		if got := FormatSubject(tc.lane, tc.item, tc.stage); got != tc.want {
			t.Fatalf("FormatSubject(%q, %q, %q) = %q, want %q", tc.lane, tc.item, tc.stage, got, tc.want)
		}
	}
}
