package hierarchy

import (
	"fmt"
	"strings"
	"unicode"
)

// maxSlugRunes bounds generated slugs so node file names stay readable.
const maxSlugRunes = 48

// Slugify lowercases a title and collapses every run of non-alphanumeric
// characters into a single hyphen.
func Slugify(title string) string {
	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	slug := b.String()
	if runes := []rune(slug); len(runes) > maxSlugRunes {
		slug = strings.TrimRight(string(runes[:maxSlugRunes]), "-")
	}
	if slug == "" {
		slug = "plan"
	}
	return slug
}

// GenerateUniqueSlug slugifies title and, when the result is already
// taken, appends -2, -3, and so on until a free slug is found.
func GenerateUniqueSlug(title string, existing []string) string {
	taken := make(map[string]bool, len(existing))
	for _, s := range existing {
		taken[s] = true
	}

	base := Slugify(title)
	if !taken[base] {
		return base
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if !taken[candidate] {
			return candidate
		}
	}
}
