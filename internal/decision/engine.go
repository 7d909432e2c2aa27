// Package decision chooses a plan tier for a parsed request. It combines
// a weighted base score, an intent multiplier, fixed tier breakpoints,
// and optional scale caps and overrides into one PlanDecision.
package decision

import (
	"errors"
	"fmt"

	"github.com/cairnhq/cairn/pkg/models"
)

// ErrNilPrompt is returned when Decide is called without a prompt.
// Malformed but non-nil prompts never error; they score low instead.
var ErrNilPrompt = errors.New("decision: nil prompt")

// Scoring weights. Feature count dominates; constraints and technologies
// signal breadth; prompt length is a weak tiebreaker capped so prose
// volume alone cannot force a high tier.
const (
	featureWeight    = 3.0
	constraintWeight = 2.0
	technologyWeight = 2.5
	lengthDivisor    = 100.0
	lengthCapRunes   = 2000
)

// intentMultipliers scale the base score by change kind. Net-new build
// work warrants more hierarchy than narrowing work like optimization at
// the same feature count.
var intentMultipliers = map[models.Intent]float64{
	models.IntentBuild:    1.2,
	models.IntentModify:   1.0,
	models.IntentRefactor: 0.9,
	models.IntentMigrate:  1.1,
	models.IntentOptimize: 0.8,
}

// tierBreakpoints are the half-open score bands per tier: a score below
// the first breakpoint is task_list, below the second phase_dev_plan,
// and so on. At or past the last breakpoint is vision_full.
var tierBreakpoints = []struct {
	plan  models.PlanType
	upper float64
}{
	{models.PlanTaskList, 10},
	{models.PlanPhaseDev, 25},
	{models.PlanRoadmap, 45},
	{models.PlanEpic, 70},
}

// Decide computes the plan decision for a parsed prompt.
//
// The override, when it names a valid tier, is used verbatim with
// confidence 1.0. An invalid override is ignored: the computed decision
// stands and a warning line is appended to the reasoning. A valid scale
// caps the maximum reachable tier after scoring. Empty prompts yield
// task_list with score 0; only a nil prompt is an error.
func Decide(prompt *models.ParsedPrompt, scale models.Scale, override string) (*models.PlanDecision, error) {
	if prompt == nil {
		return nil, ErrNilPrompt
	}

	if override != "" {
		if o := models.PlanType(override); o.Valid() {
			return &models.PlanDecision{
				PlanType:   o,
				Score:      0,
				Confidence: 1.0,
				Reasoning:  []string{fmt.Sprintf("plan type %q set by explicit override", o)},
				Overridden: true,
			}, nil
		}
	}

	var reasoning []string
	if override != "" {
		reasoning = append(reasoning, fmt.Sprintf("ignoring invalid override %q", override))
	}

	score, lines := baseScore(prompt)
	reasoning = append(reasoning, lines...)

	multiplier, ok := intentMultipliers[prompt.Intent]
	if !ok {
		multiplier = intentMultipliers[models.IntentBuild]
	}
	score *= multiplier
	reasoning = append(reasoning, fmt.Sprintf("intent %s applies multiplier %.2f", prompt.Intent, multiplier))

	plan, confidence := tierFor(score)
	reasoning = append(reasoning, fmt.Sprintf("score %.1f falls in the %s band", score, plan))

	if scale != "" && scale.Valid() {
		if ceiling := scale.MaxPlanType(); plan.Rank() > ceiling.Rank() {
			plan = ceiling
			reasoning = append(reasoning, fmt.Sprintf("scale %s caps plan type at %s", scale, ceiling))
		}
	}

	return &models.PlanDecision{
		PlanType:   plan,
		Score:      score,
		Confidence: confidence,
		Reasoning:  reasoning,
	}, nil
}

// baseScore computes the pre-multiplier score and its explanation.
func baseScore(prompt *models.ParsedPrompt) (float64, []string) {
	var lines []string
	score := 0.0

	if n := len(prompt.Features); n > 0 {
		contrib := float64(n) * featureWeight
		score += contrib
		lines = append(lines, fmt.Sprintf("%d features contribute %.1f", n, contrib))
	}
	if n := len(prompt.Constraints); n > 0 {
		contrib := float64(n) * constraintWeight
		score += contrib
		lines = append(lines, fmt.Sprintf("%d constraints contribute %.1f", n, contrib))
	}
	if n := len(prompt.Technologies); n > 0 {
		contrib := float64(n) * technologyWeight
		score += contrib
		lines = append(lines, fmt.Sprintf("%d technologies contribute %.1f", n, contrib))
	}
	if prompt.RawLength > 0 {
		length := prompt.RawLength
		if length > lengthCapRunes {
			length = lengthCapRunes
		}
		contrib := float64(length) / lengthDivisor
		score += contrib
		lines = append(lines, fmt.Sprintf("prompt length %d contributes %.1f", prompt.RawLength, contrib))
	}

	return score, lines
}

// tierFor maps a score onto its tier band and derives confidence from
// the margin to the next breakpoint: a score in the middle of its band
// is certain, a score brushing the boundary is not.
func tierFor(score float64) (models.PlanType, float64) {
	lower := 0.0
	for _, band := range tierBreakpoints {
		if score < band.upper {
			span := band.upper - lower
			margin := band.upper - score
			return band.plan, clamp01(0.5 + 0.5*margin/span)
		}
		lower = band.upper
	}

	// Past the last breakpoint: confidence grows with distance beyond it,
	// normalized by the width of the previous band.
	last := tierBreakpoints[len(tierBreakpoints)-1].upper
	prevSpan := last - tierBreakpoints[len(tierBreakpoints)-2].upper
	return models.PlanVisionFull, clamp01(0.5 + 0.5*(score-last)/prevSpan)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
