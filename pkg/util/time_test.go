package util

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00.000"},
		{90 * time.Second, "00:01:30.000"},
		{3725*time.Second + 500*time.Millisecond, "01:02:05.500"},
	}

	for _, c := range cases {
		if got := FormatDuration(c.in); got != c.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"45.5", 45*time.Second + 500*time.Millisecond},
		{"01:30", 90 * time.Second},
		{"01:02:05.5", 3725*time.Second + 500*time.Millisecond},
	}

	for _, c := range cases {
		got, err := ParseTimestamp(c.in)
		if err != nil {
			t.Fatalf("ParseTimestamp(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("ParseTimestamp(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, err := ParseTimestamp("1:2:3:4"); err == nil {
		t.Error("expected error for malformed timestamp")
	}
}

func TestParseFrameRate(t *testing.T) {
	if got := ParseFrameRate("30/1"); got != 30 {
		t.Errorf("ParseFrameRate(30/1) = %f, want 30", got)
	}
	if got := ParseFrameRate("30000/1001"); got < 29.9 || got > 30.0 {
		t.Errorf("ParseFrameRate(30000/1001) = %f, want ~29.97", got)
	}
	if got := ParseFrameRate("bogus"); got != 0 {
		t.Errorf("ParseFrameRate(bogus) = %f, want 0", got)
	}
}
