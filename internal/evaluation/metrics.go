package evaluation

import (
	"math"
	"sort"
)

// Graded gains used by the cutoff metrics.
const (
	gainOK   = 1
	gainGood = 2
)

// CutoffMetrics are rank-cutoff diagnostics reported next to AP. Junk images
// are removed from the ranking before any of them is computed.
type CutoffMetrics struct {
	K              int     `json:"k" yaml:"k"`
	PrecisionAtK   float64 `json:"precision_at_k" yaml:"precision_at_k"`
	RecallAtK      float64 `json:"recall_at_k" yaml:"recall_at_k"`
	NDCGAtK        float64 `json:"ndcg_at_k" yaml:"ndcg_at_k"`
	ReciprocalRank float64 `json:"reciprocal_rank" yaml:"reciprocal_rank"`
}

// ComputeCutoff computes cutoff metrics at k for one ranked list.
func ComputeCutoff(sets RelevanceSets, ranked []string, k int) CutoffMetrics {
	g := gains(sets, ranked)
	positives := sets.OK.Len() + sets.Good.Len()

	ideal := make([]int, 0, positives)
	for range sets.Good.Len() {
		ideal = append(ideal, gainGood)
	}
	for range sets.OK.Len() {
		ideal = append(ideal, gainOK)
	}

	return CutoffMetrics{
		K:              k,
		PrecisionAtK:   precisionAt(g, k),
		RecallAtK:      recallAt(g, k, positives),
		NDCGAtK:        ndcgAt(g, ideal, k),
		ReciprocalRank: reciprocalRank(g),
	}
}

// gains maps ranked to graded gains with junk dropped. Repeated ids score
// zero after their first occurrence.
func gains(sets RelevanceSets, ranked []string) []int {
	out := make([]int, 0, len(ranked))
	seen := NewIDSet()
	for _, id := range ranked {
		if sets.Junk.Has(id) {
			continue
		}
		gain := 0
		if !seen.Has(id) {
			switch {
			case sets.Good.Has(id):
				gain = gainGood
			case sets.OK.Has(id):
				gain = gainOK
			}
			seen.Add(id)
		}
		out = append(out, gain)
	}
	return out
}

func dcg(g []int, k int) float64 {
	if k > len(g) {
		k = len(g)
	}
	sum := 0.0
	for i := 0; i < k; i++ {
		sum += float64(g[i]) / math.Log2(float64(i+2))
	}
	return sum
}

func ndcgAt(g, ideal []int, k int) float64 {
	sorted := append([]int(nil), ideal...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	idcg := dcg(sorted, k)
	if idcg == 0 {
		return 0
	}
	return dcg(g, k) / idcg
}

func hitsAt(g []int, k int) int {
	if k > len(g) {
		k = len(g)
	}
	n := 0
	for i := 0; i < k; i++ {
		if g[i] > 0 {
			n++
		}
	}
	return n
}

func precisionAt(g []int, k int) float64 {
	if k <= 0 {
		return 0
	}
	return float64(hitsAt(g, k)) / float64(k)
}

func recallAt(g []int, k, positives int) float64 {
	if positives == 0 {
		return 0
	}
	return float64(hitsAt(g, k)) / float64(positives)
}

func reciprocalRank(g []int) float64 {
	for i, v := range g {
		if v > 0 {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}
