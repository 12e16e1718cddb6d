package engine

import "strings"

// Effort scoring estimates how much work an application takes, from its
// free-text requirement list. Two variants exist on purpose:
//
//   - RankingEffortScore is unbounded and weighted. It is only ever used
//     to order results ("easiest first").
//   - DisplayEffortScore is the 1-5 star rating shown next to a result.
//     Only the four heaviest requirement kinds move it, and it caps at 5.
//
// The asymmetry between the two keyword tables is intentional: a
// transcript or resume nudges the ranking but is not worth a star.
//
// Ranking keywords come in synonym groups ("recommendation"/"letter" is
// one group): an entry like "Provide a recommendation letter" is one
// recommendation requirement, not two.

const (
	displayEffortFloor = 1
	displayEffortCap   = 5
)

// RankingEffortScore sums group weights over all requirement entries.
// Matching is case-insensitive substring, non-exclusive across groups:
// one entry can contribute to several groups, but only once to each.
// No keywords means zero effort.
func RankingEffortScore(requirements []string) int {
	score := 0
	for _, req := range requirements {
		lower := strings.ToLower(req)
		for _, group := range cfg.Effort.RankingWeights {
			for _, keyword := range group.Keywords {
				if strings.Contains(lower, keyword) {
					score += group.Weight
					break
				}
			}
		}
	}
	return score
}

// DisplayEffortScore returns the 1-5 star rating. Presence of a display
// keyword anywhere in the list counts once, regardless of how many
// entries mention it.
func DisplayEffortScore(requirements []string) int {
	score := displayEffortFloor
	for _, keyword := range cfg.Effort.DisplayKeywords {
		if containsKeyword(requirements, keyword) {
			score++
		}
	}
	if score > displayEffortCap {
		score = displayEffortCap
	}
	return score
}

func containsKeyword(requirements []string, keyword string) bool {
	for _, req := range requirements {
		if strings.Contains(strings.ToLower(req), keyword) {
			return true
		}
	}
	return false
}
