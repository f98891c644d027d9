package embed

import (
	"math"
	"sort"
)

// Vector is a stored embedding keyed by saga id.
type Vector struct {
	ID     string
	Values []float64
}

type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Rank scores candidates by cosine similarity to query, best first, ties by
// id. Candidates of a different dimension are skipped.
func Rank(query []float64, candidates []Vector, limit int) []Match {
	queryNorm := norm(query)
	if queryNorm == 0 {
		return nil
	}

	results := make([]Match, 0, len(candidates))
	for _, candidate := range candidates {
		if len(candidate.Values) != len(query) {
			continue
		}
		results = append(results, Match{ID: candidate.ID, Score: cosine(query, queryNorm, candidate.Values)})
	}
	if len(results) == 0 {
		return nil
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func FilterMin(results []Match, minSimilarity float64) []Match {
	if len(results) == 0 {
		return results
	}
	filtered := make([]Match, 0, len(results))
	for _, res := range results {
		if res.Score >= minSimilarity {
			filtered = append(filtered, res)
		}
	}
	return filtered
}

func cosine(query []float64, queryNorm float64, candidate []float64) float64 {
	dot := 0.0
	candidateNorm := 0.0
	for i, value := range query {
		dot += value * candidate[i]
		candidateNorm += candidate[i] * candidate[i]
	}
	if dot == 0 || candidateNorm == 0 {
		return 0
	}
	return dot / (queryNorm * math.Sqrt(candidateNorm))
}

func norm(vector []float64) float64 {
	sum := 0.0
	for _, value := range vector {
		sum += value * value
	}
	return math.Sqrt(sum)
}
