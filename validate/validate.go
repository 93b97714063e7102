// Package validate checks user-supplied sources and themes before the
// pipeline spends time on them.
package validate

import (
	"regexp"
	"strings"
)

const (
	ThemeMinLen = 3
	ThemeMaxLen = 50
)

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`youtube\.com/v/([0-9A-Za-z_-]{11})`),
}

// VideoID extracts the YouTube video ID from a URL.
func VideoID(rawURL string) (string, bool) {
	s := strings.TrimSpace(rawURL)
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(s); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// ValidVideoURL reports whether the string is a recognizable YouTube URL.
func ValidVideoURL(rawURL string) bool {
	_, ok := VideoID(rawURL)
	return ok
}

// SplitURLs splits comma/newline-separated input into trimmed non-empty
// entries, valid or not. Callers validate each entry separately.
func SplitURLs(input string) []string {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == '\n'
	})
	var urls []string
	for _, f := range fields {
		if s := strings.TrimSpace(f); s != "" {
			urls = append(urls, s)
		}
	}
	return urls
}

// ValidTheme reports whether a theme is usable: 3-50 characters after
// trimming, with at least one letter.
func ValidTheme(theme string) bool {
	s := strings.TrimSpace(theme)
	if len(s) < ThemeMinLen || len(s) > ThemeMaxLen {
		return false
	}
	for _, r := range s {
		if ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || r > 127 {
			return true
		}
	}
	return false
}
