package util

import (
	"errors"
	"path"
	"strings"
	"unicode"
)

// SanitizeFileName removes path separators and rejects traversal patterns.
func SanitizeFileName(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", errors.New("invalid file name")
	}
	s := strings.TrimSpace(name)
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	if s == "" {
		return "", errors.New("invalid file name")
	}
	return s, nil
}

// PathSegment turns a process number into a single storage path segment.
// Separators become "-" so "0001/2024" maps to "0001-2024".
func PathSegment(value string) string {
	s := strings.TrimSpace(value)
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '.', r == '_', r == ':':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	return b.String()
}

// FileExtension returns the lower-cased suffix of name without the dot, or "bin" when there is none.
func FileExtension(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if strings.HasPrefix(base, ".") && strings.Count(base, ".") == 1 {
		return "bin"
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(base), "."))
	for _, r := range ext {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return "bin"
		}
	}
	if ext == "" {
		return "bin"
	}
	return ext
}
