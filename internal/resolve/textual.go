package resolve

import (
	"regexp"
	"strings"

	"github.com/cairnhq/cairn/pkg/models"
)

// dependencyPhrases are the indicator phrases that signal an ordering
// constraint in free text. Matching is case-insensitive.
var dependencyPhrases = []string{
	"depends on",
	"depends upon",
	"blocked by",
	"blocks on",
	"waiting on",
	"waiting for",
	"after",
	"requires",
	"needs",
}

// phraseWindowBytes bounds how far past an indicator phrase the scanner
// looks for a reference.
const phraseWindowBytes = 80

var issueRefPattern = regexp.MustCompile(`#(\d+)`)

// ResolveTextual scans each item's text for indicator phrases followed
// by a #number reference or a substring of another item's title, and
// returns a dependent ID to depends-on IDs map. No transitive closure is
// computed; the map holds only directly stated constraints.
func ResolveTextual(items []models.WorkItem) map[string][]string {
	byID := make(map[string]models.WorkItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	deps := make(map[string][]string)
	for _, item := range items {
		text := strings.ToLower(item.Title + "\n" + item.Body)
		seen := make(map[string]bool)

		for _, phrase := range dependencyPhrases {
			for _, window := range windowsAfter(text, phrase) {
				for _, target := range referencesIn(window, item, items, byID) {
					if target == item.ID || seen[target] {
						continue
					}
					seen[target] = true
					deps[item.ID] = append(deps[item.ID], target)
				}
			}
		}
	}
	return deps
}

// windowsAfter returns the text windows following each occurrence of
// phrase.
func windowsAfter(text, phrase string) []string {
	var windows []string
	idx := 0
	for {
		i := strings.Index(text[idx:], phrase)
		if i < 0 {
			return windows
		}
		start := idx + i + len(phrase)
		end := start + phraseWindowBytes
		if end > len(text) {
			end = len(text)
		}
		windows = append(windows, text[start:end])
		idx = start
	}
}

// referencesIn finds work item IDs referenced inside a window, either by
// #number or by a title substring of another item.
func referencesIn(window string, self models.WorkItem, items []models.WorkItem, byID map[string]models.WorkItem) []string {
	var found []string

	for _, match := range issueRefPattern.FindAllStringSubmatch(window, -1) {
		if _, ok := byID[match[1]]; ok {
			found = append(found, match[1])
		}
	}

	for _, other := range items {
		if other.ID == self.ID {
			continue
		}
		title := strings.ToLower(strings.TrimSpace(other.Title))
		// Very short titles match everywhere and would fabricate edges.
		if len(title) < 4 {
			continue
		}
		if strings.Contains(window, title) {
			found = append(found, other.ID)
		}
	}

	return found
}
