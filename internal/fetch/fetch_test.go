package fetch

import (
	"testing"
)

func TestValidateURL(t *testing.T) {
	valid := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://youtube.com/watch?v=dQw4w9WgXcQ",
		"http://youtu.be/dQw4w9WgXcQ",
		"youtu.be/dQw4w9WgXcQ",
		"https://www.youtube.com/shorts/dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
	}
	for _, u := range valid {
		if !ValidateURL(u) {
			t.Errorf("ValidateURL(%q) = false, want true", u)
		}
	}

	invalid := []string{
		"",
		"https://example.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/watch?v=short",
		"not a url",
	}
	for _, u := range invalid {
		if ValidateURL(u) {
			t.Errorf("ValidateURL(%q) = true, want false", u)
		}
	}
}

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/Abc-123_xyz", "Abc-123_xyz"},
		{"https://www.youtube.com/shorts/Abc-123_xyz", "Abc-123_xyz"},
		{"https://www.youtube.com/watch?list=PL123&v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://example.com/watch?v=dQw4w9WgXcQ", ""},
		{"", ""},
	}

	for _, c := range cases {
		if got := ExtractVideoID(c.url); got != c.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", c.url, got, c.want)
		}
	}
}

func TestParseProgressLine(t *testing.T) {
	frac, ok := parseProgressLine("[download]  42.3% of 10.00MiB at 1.00MiB/s ETA 00:06")
	if !ok {
		t.Fatal("expected progress line to parse")
	}
	if frac < 0.422 || frac > 0.424 {
		t.Errorf("frac = %f, want ~0.423", frac)
	}

	if _, ok := parseProgressLine("[info] something else"); ok {
		t.Error("non-download line should not parse")
	}
	if _, ok := parseProgressLine("[download] Destination: video.mp4"); ok {
		t.Error("destination line should not parse")
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		stderr string
		want   ErrorKind
	}{
		{"ERROR: Private video. Sign in if you've been granted access", ErrPrivate},
		{"ERROR: Video unavailable", ErrUnavailable},
		{"ERROR: The uploader has not made this video available in your country", ErrRegionLocked},
		{"ERROR: This live event will begin soon", ErrLiveStream},
		{"ERROR: something exploded", ErrGeneric},
	}

	for _, c := range cases {
		err := classifyError(c.stderr)
		if err.Kind != c.want {
			t.Errorf("classifyError(%q).Kind = %s, want %s", c.stderr, err.Kind, c.want)
		}
	}
}
