package stats

import (
	"sort"

	"github.com/verte-zerg/codetype/internal/model"
)

// TopMissedChars returns up to n characters ordered by miss count. Characters
// that were never missed are left out. n <= 0 means no limit.
func TopMissedChars(aggs []model.CharAggregate, n int) []string {
	items := make([]model.CharAggregate, 0, len(aggs))
	for _, agg := range aggs {
		if agg.Incorrect > 0 {
			items = append(items, agg)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Incorrect == items[j].Incorrect {
			return items[i].Char < items[j].Char
		}
		return items[i].Incorrect > items[j].Incorrect
	})
	if n > 0 && n < len(items) {
		items = items[:n]
	}
	out := make([]string, len(items))
	for i, agg := range items {
		out[i] = agg.Char
	}
	return out
}
