package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// CleanURL drops the query string and fragment, then any trailing slash.
// It is the comparison form used to decide whether the page sits on the
// portal's root/login address.
func CleanURL(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimRight(raw, "/")
}

// SameURL reports whether a and b are equal after CleanURL.
func SameURL(a, b string) bool {
	return CleanURL(a) == CleanURL(b)
}

// JoinURL appends path to base, avoiding a doubled slash.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// IsValidURL checks if a string is an absolute http(s) URL
func IsValidURL(str string) bool {
	u, err := url.Parse(str)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// CleanFileName cleans a string to be used as a filename
func CleanFileName(name string) string {
	reg := regexp.MustCompile(`[<>:"/\\|?*]`)
	cleaned := reg.ReplaceAllString(name, "_")

	cleaned = strings.Trim(cleaned, " .")
	if len(cleaned) > 200 {
		cleaned = cleaned[:200]
	}

	return cleaned
}

// FormatBytes renders a byte count for log lines.
func FormatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/float64(1<<10))
	default:
		return fmt.Sprintf("%d bytes", n)
	}
}
