package planner

import (
	"strings"
	"unicode"
)

// NormalizeExtension returns ext with a leading dot. An empty ext falls back
// to fallback, which is normalized the same way. Normalizing an already
// normalized value returns it unchanged.
func NormalizeExtension(ext, fallback string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		ext = strings.TrimSpace(fallback)
	}
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

// SanitizeStem strips path separators and surrounding noise from a model
// supplied stem so the result always names a file inside the source
// directory. A stem without any letter or digit is returned as "".
func SanitizeStem(stem string) string {
	stem = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\':
			return '-'
		case 0:
			return -1
		}
		return r
	}, stem)
	stem = strings.Trim(stem, " \t-.")
	if strings.IndexFunc(stem, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) < 0 {
		return ""
	}
	return stem
}
