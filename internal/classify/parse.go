package classify

import (
	"strings"

	"github.com/cairnhq/cairn/pkg/models"
)

// constraintMarkers flag a line as a constraint rather than a feature.
var constraintMarkers = []string{
	"must ",
	"must not",
	"should not",
	"only ",
	"never ",
	"within ",
	"constraint",
	"require",
	"no more than",
	"at most",
	"deadline",
}

// ParsePrompt converts a natural-language request into the structured
// prompt the decision engine scores. It is a line-level heuristic:
// bulleted lines become features, lines carrying constraint markers
// become constraints, and everything else past the first line becomes
// feature detail. Never fails, even on empty or odd input.
func (c *Classifier) ParsePrompt(text string) *models.ParsedPrompt {
	parsed := &models.ParsedPrompt{
		Intent:       c.DetectIntent(text),
		Technologies: c.Technologies(text),
		RawLength:    len([]rune(text)),
	}

	seenFirstContent := false
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if bullet, ok := trimBullet(line); ok {
			if isConstraint(bullet) {
				parsed.Constraints = append(parsed.Constraints, bullet)
			} else {
				parsed.Features = append(parsed.Features, bullet)
			}
			seenFirstContent = true
			continue
		}

		if isConstraint(line) {
			parsed.Constraints = append(parsed.Constraints, line)
			seenFirstContent = true
			continue
		}

		if !seenFirstContent {
			// The leading prose line names the overall request; split it
			// on commas and "and" so "build X, Y and Z" yields features.
			parsed.Features = append(parsed.Features, splitClauses(line)...)
			seenFirstContent = true
			continue
		}

		parsed.FeatureDetails = append(parsed.FeatureDetails, line)
	}

	return parsed
}

// trimBullet strips a leading list marker and reports whether one was
// present.
func trimBullet(line string) (string, bool) {
	for _, prefix := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(line, prefix) {
			return strings.TrimSpace(line[len(prefix):]), true
		}
	}
	// Numbered bullets: "1. thing", "2) thing".
	for i := 0; i < len(line); i++ {
		if line[i] >= '0' && line[i] <= '9' {
			continue
		}
		if i > 0 && (line[i] == '.' || line[i] == ')') && i+1 < len(line) && line[i+1] == ' ' {
			return strings.TrimSpace(line[i+2:]), true
		}
		break
	}
	return line, false
}

// isConstraint reports whether the line reads as a restriction.
func isConstraint(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range constraintMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// splitClauses breaks a prose line into comma or "and" separated
// clauses, dropping fragments too short to be features.
func splitClauses(line string) []string {
	replaced := strings.ReplaceAll(line, " and ", ",")
	var clauses []string
	for _, part := range strings.Split(replaced, ",") {
		part = strings.TrimSpace(part)
		if len(part) >= 3 {
			clauses = append(clauses, part)
		}
	}
	return clauses
}
