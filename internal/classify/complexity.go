package classify

import (
	"github.com/cairnhq/cairn/pkg/models"
)

// longDescriptionRunes is the description length past which the estimate
// adds a flat bonus.
const longDescriptionRunes = 500

// Complexity score thresholds. Below small is S, below medium is M,
// everything else is L.
const (
	smallThreshold  = 10.0
	mediumThreshold = 25.0
)

// ComplexitySignals are the inputs to the complexity estimate.
type ComplexitySignals struct {
	// IssueCount is the number of work items in the request.
	IssueCount int
	// FileCount is the number of distinct files referenced.
	FileCount int
	// DomainCount is the number of domains with a nonzero score.
	DomainCount int
	// HasDatabase is true when database work is involved.
	HasDatabase bool
	// HasAuth is true when auth work is involved.
	HasAuth bool
	// HasTests is true when test work is involved.
	HasTests bool
	// DescriptionLength is the request text length in runes.
	DescriptionLength int
}

// ComplexityScore computes the weighted linear score for the signals.
// The weights are fixed; downstream thresholds depend on them exactly.
func ComplexityScore(sig ComplexitySignals) float64 {
	score := float64(sig.IssueCount)*2 +
		float64(sig.FileCount)*1.5 +
		float64(sig.DomainCount)*3
	if sig.HasDatabase {
		score += 5
	}
	if sig.HasAuth {
		score += 4
	}
	if sig.HasTests {
		score += 2
	}
	if sig.DescriptionLength > longDescriptionRunes {
		score += 3
	}
	return score
}

// EstimateComplexity converts signals into a three-tier scale.
func EstimateComplexity(sig ComplexitySignals) models.Scale {
	score := ComplexityScore(sig)
	switch {
	case score < smallThreshold:
		return models.ScaleSmall
	case score < mediumThreshold:
		return models.ScaleMedium
	default:
		return models.ScaleLarge
	}
}

// SignalsFrom derives complexity signals from work items and a
// classification of their combined text.
func SignalsFrom(items []models.WorkItem, c Classification) ComplexitySignals {
	files := make(map[string]bool)
	descLen := 0
	for _, item := range items {
		for _, f := range item.Files {
			files[f] = true
		}
		descLen += len([]rune(item.Title)) + len([]rune(item.Body))
	}

	domains := 0
	for _, score := range c.Scores {
		if score > 0 {
			domains++
		}
	}

	return ComplexitySignals{
		IssueCount:        len(items),
		FileCount:         len(files),
		DomainCount:       domains,
		HasDatabase:       c.Scores["database"] > 0,
		HasAuth:           c.Scores["auth"] > 0,
		HasTests:          c.Scores["testing"] > 0,
		DescriptionLength: descLen,
	}
}
