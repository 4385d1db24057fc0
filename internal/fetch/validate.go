package fetch

import (
	"net/url"
	"regexp"
	"strings"
)

// youtubePatterns matches the supported source URL shapes.
var youtubePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/watch\?v=([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/v/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`^(?:https?://)?youtu\.be/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`^(?:https?://)?(?:www\.)?youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
}

// ValidateURL reports whether the URL is a supported video source.
func ValidateURL(raw string) bool {
	if raw == "" {
		return false
	}
	for _, p := range youtubePatterns {
		if p.MatchString(raw) {
			return true
		}
	}
	return false
}

// ExtractVideoID pulls the 11-character video id out of a source URL.
// Returns an empty string when no id can be found.
func ExtractVideoID(raw string) string {
	if raw == "" {
		return ""
	}

	for _, p := range youtubePatterns {
		if m := p.FindStringSubmatch(raw); m != nil {
			return m[1]
		}
	}

	// Fall back to query-string parsing for odd but valid URLs
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := parsed.Hostname()
	if !strings.Contains(host, "youtube.com") && !strings.Contains(host, "youtu.be") {
		return ""
	}
	if v := parsed.Query().Get("v"); len(v) == 11 {
		return v
	}
	return ""
}
