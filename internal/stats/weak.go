package stats

import (
	"sort"

	"github.com/verte-zerg/codetype/internal/model"
)

// SelectWeakChars selects the lowest-accuracy characters that were missed at
// least once.
func SelectWeakChars(aggs []model.CharAggregate, top int) map[rune]struct{} {
	weakSet := map[rune]struct{}{}
	candidates := make([]model.CharAggregate, 0, len(aggs))
	for _, agg := range aggs {
		if agg.Incorrect > 0 && agg.Char != "" {
			candidates = append(candidates, agg)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		ai := accuracy(candidates[i])
		aj := accuracy(candidates[j])
		if ai == aj {
			return candidates[i].Char < candidates[j].Char
		}
		return ai < aj
	})
	if top <= 0 || top > len(candidates) {
		top = len(candidates)
	}
	for _, agg := range candidates[:top] {
		weakSet[[]rune(agg.Char)[0]] = struct{}{}
	}
	return weakSet
}

func accuracy(agg model.CharAggregate) float64 {
	total := agg.Correct + agg.Incorrect
	if total == 0 {
		return 1.0
	}
	return float64(agg.Correct) / float64(total)
}
