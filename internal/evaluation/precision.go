package evaluation

// APResult is the outcome of scoring one ranked list.
type APResult struct {
	AP        float64 `json:"ap"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
}

// ComputeAP computes the average precision of ranked against the positive
// set, interpolating trapezoidally between successive precision/recall
// points. Items in ambiguous are skipped: they neither count as hits nor
// advance the rank. Precision and Recall are the values after the last
// scored item; an empty list yields AP 0, precision 1, recall 0.
//
// With an empty positive set every recall is 0, so AP is 0. Repeated
// identifiers keep their positions, but a positive only counts as a hit the
// first time it is seen, so recall never exceeds 1. This departs from the
// Oxford benchmark's compute_ap, which counts every occurrence of a positive
// and can report AP above 1 for lists with duplicates.
func ComputeAP(positive, ambiguous IDSet, ranked []string) APResult {
	oldRecall := 0.0
	oldPrecision := 1.0
	ap := 0.0
	hits := 0
	rank := 0

	npos := float64(positive.Len())
	seen := make(IDSet)

	for _, id := range ranked {
		if ambiguous.Has(id) {
			continue
		}
		if positive.Has(id) && !seen.Has(id) {
			seen.Add(id)
			hits++
		}

		recall := 0.0
		if npos > 0 {
			recall = float64(hits) / npos
		}
		precision := float64(hits) / float64(rank+1)

		ap += (recall - oldRecall) * (oldPrecision + precision) / 2.0

		oldRecall = recall
		oldPrecision = precision
		rank++
	}

	return APResult{
		AP:        ap,
		Precision: oldPrecision,
		Recall:    oldRecall,
	}
}

// Detect splits the positive set into the members that appear anywhere in
// ranked and the ones that were missed.
func Detect(positive IDSet, ranked []string) (detected, missed IDSet) {
	detected = make(IDSet)
	for _, id := range ranked {
		if positive.Has(id) {
			detected.Add(id)
		}
	}
	return detected, positive.Difference(detected)
}
