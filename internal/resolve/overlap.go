package resolve

import (
	"sort"

	"github.com/cairnhq/cairn/pkg/models"
)

// Conflict risk levels for file overlaps.
const (
	// RiskMedium marks a file shared by exactly two items.
	RiskMedium = "medium"
	// RiskHigh marks a file shared by more than two items.
	RiskHigh = "high"
)

// Overlap records one file referenced by more than one work item.
type Overlap struct {
	// File is the shared path.
	File string `json:"file"`
	// ItemIDs lists the items referencing the file, in input order.
	ItemIDs []string `json:"item_ids"`
	// ConflictRisk is high when more than two items share the file,
	// medium otherwise.
	ConflictRisk string `json:"conflict_risk"`
}

// FindOverlaps groups items by shared file paths. Only files referenced
// by at least two items produce a record. Results are sorted by path so
// output is deterministic.
func FindOverlaps(items []models.WorkItem) []Overlap {
	byFile := make(map[string][]string)
	for _, item := range items {
		seen := make(map[string]bool)
		for _, file := range item.Files {
			if seen[file] {
				continue
			}
			seen[file] = true
			byFile[file] = append(byFile[file], item.ID)
		}
	}

	var overlaps []Overlap
	for file, ids := range byFile {
		if len(ids) < 2 {
			continue
		}
		risk := RiskMedium
		if len(ids) > 2 {
			risk = RiskHigh
		}
		overlaps = append(overlaps, Overlap{File: file, ItemIDs: ids, ConflictRisk: risk})
	}

	sort.Slice(overlaps, func(i, j int) bool {
		return overlaps[i].File < overlaps[j].File
	})
	return overlaps
}

// SuggestOrder returns item IDs sorted by descending shared-file count:
// items touching the most contested files run first, so the riskiest
// shared work happens before independent work piles on top of it. Ties
// keep input order.
func SuggestOrder(items []models.WorkItem) []string {
	shared := make(map[string]bool)
	for _, overlap := range FindOverlaps(items) {
		shared[overlap.File] = true
	}

	counts := make(map[string]int, len(items))
	order := make([]string, 0, len(items))
	for _, item := range items {
		order = append(order, item.ID)
		seen := make(map[string]bool)
		for _, file := range item.Files {
			if shared[file] && !seen[file] {
				seen[file] = true
				counts[item.ID]++
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	return order
}
