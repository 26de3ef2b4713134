package scraping

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

var slugRuns = regexp.MustCompile(`[\s_-]+`)

const (
	maxFilenameRunes = 120
	untitled         = "sem_titulo"
)

// Slug turns a search query into a filename fragment:
// "Chuva em São Cristóvão!" becomes "chuva_em_são_cristóvão".
func Slug(s string) string {
	kept := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '_' || r == '-' {
			return r
		}
		return -1
	}, s)
	v := strings.ToLower(strings.TrimSpace(kept))
	return slugRuns.ReplaceAllString(v, "_")
}

// SanitizeFilename keeps letters, digits and " ._-–—()", replacing anything
// else with "_". Names longer than 120 runes are cut.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(" ._-–—()", r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	safe := strings.TrimSpace(b.String())
	if r := []rune(safe); len(r) > maxFilenameRunes {
		safe = strings.TrimRight(string(r[:maxFilenameRunes]), "_ .-")
	}
	if safe == "" {
		return untitled
	}
	return safe
}

// validFilename rejects anything that could leave the data directory.
func validFilename(name string) bool {
	return name != "" && name != "." &&
		!strings.ContainsAny(name, `/\`) &&
		!strings.Contains(name, "..") &&
		filepath.Base(name) == name
}
