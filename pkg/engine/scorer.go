package engine

import (
	"fmt"

	"github.com/Mindburn-Labs/verdant/pkg/judgment"
	"github.com/Mindburn-Labs/verdant/pkg/rubric"
)

// Score aggregates validated subcriterion scores into a 0–100 base score.
//
//	base_score = Σ_category (weight_percent × mean(subcriteria_scores)) / 10
//
// Weights sum to 100 and the max raw subscore is 10, so a perfect judgment
// lands exactly on 100. The base score is always recomputed here from the
// per-subcriterion evidence; the judge's own aggregate is advisory and only
// surfaces as a gap when it disagrees materially.
//
// Confidence is the judge's reported value (already clamped to [0,100] by
// the validator) discounted proportionally to subcriterion coverage:
// missing half the subscores halves the confidence.
func (e *Engine) Score(j *judgment.Judgment) Phase2Result {
	res := Phase2Result{
		Scores: make(map[rubric.SubCriterion]int, len(j.Scores)),
	}

	var base float64
	for _, cat := range e.rubric.Categories {
		var sum, n float64
		for _, sc := range cat.SubCriteria {
			s, ok := j.Scores[sc]
			if !ok {
				continue
			}
			res.Scores[sc] = s.Score
			sum += float64(s.Score)
			n++
		}
		if n == 0 {
			// Nothing scored in this category: it contributes zero and the
			// coverage discount below accounts for the lost signal.
			res.Gaps = append(res.Gaps, fmt.Sprintf("category %q has no scored subcriteria", cat.ID))
			continue
		}
		base += cat.WeightPercent * (sum / n)
	}
	res.BaseScore = base / 10

	total := len(e.rubric.SubCriteria())
	missing := len(j.MissingSubCriteria(e.rubric))
	coverage := 1.0
	if total > 0 {
		coverage = 1 - float64(missing)/float64(total)
	}
	res.Confidence = j.Confidence * coverage
	if missing > 0 {
		res.Gaps = append(res.Gaps, fmt.Sprintf("%d of %d subcriteria unscored, confidence discounted to %.1f", missing, total, res.Confidence))
	}

	if j.AdvisoryBaseScore != nil && abs(*j.AdvisoryBaseScore-res.BaseScore) > 5 {
		res.Gaps = append(res.Gaps, fmt.Sprintf("judge-reported base score %.1f diverges from recomputed %.1f", *j.AdvisoryBaseScore, res.BaseScore))
	}

	return res
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
