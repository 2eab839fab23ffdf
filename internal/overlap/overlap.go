// Package overlap resolves overlapping rewrite candidates (C7) by weighted
// interval scheduling: find the subset of mutually non-overlapping spans
// that maximizes total token_delta_estimate, tie-breaking by summed
// confidence, then fewer rewrites.
package overlap

import "sort"

// Candidate is a single span eligible for selection.
type Candidate struct {
	Start      int
	End        int
	TokenDelta int
	Confidence float64
}

// Resolve returns the indices (into candidates) of the subset that
// maximizes total token_delta_estimate among mutually non-overlapping
// spans, using the classic weighted interval scheduling DP with
// predecessor binary search. Ties are broken by: higher summed confidence,
// then fewer selected rewrites. When delta, confidence and count all tie,
// the solution without the later-ending candidate is kept; span starts are
// not compared.
func Resolve(candidates []Candidate) []int {
	n := len(candidates)
	if n == 0 {
		return nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return candidates[order[i]].End < candidates[order[j]].End
	})

	sorted := make([]Candidate, n)
	for i, idx := range order {
		sorted[i] = candidates[idx]
	}

	// p[i] = largest j < i such that sorted[j].End <= sorted[i].Start.
	p := make([]int, n)
	ends := make([]int, n)
	for i, c := range sorted {
		ends[i] = c.End
	}
	for i := range sorted {
		p[i] = predecessor(ends, sorted[i].Start, i)
	}

	// dp[i] = (bestDelta, bestConfidence, bestCount) achievable using
	// sorted[0..i). taken[i] records whether sorted[i-1] is part of that
	// optimum, so reconstruction below replays the same decisions the
	// forward pass made.
	dpDelta := make([]int, n+1)
	dpConfidence := make([]float64, n+1)
	dpCount := make([]int, n+1)
	taken := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		c := sorted[i-1]
		withDelta := dpDelta[p[i-1]+1] + c.TokenDelta
		withConfidence := dpConfidence[p[i-1]+1] + c.Confidence
		withCount := dpCount[p[i-1]+1] + 1

		skipDelta := dpDelta[i-1]
		skipConfidence := dpConfidence[i-1]
		skipCount := dpCount[i-1]

		take := false
		switch {
		case withDelta > skipDelta:
			take = true
		case withDelta < skipDelta:
			take = false
		default:
			switch {
			case withConfidence > skipConfidence:
				take = true
			case withConfidence < skipConfidence:
				take = false
			default:
				// Equal delta and confidence: prefer fewer rewrites.
				take = withCount < skipCount
			}
		}

		if take {
			dpDelta[i], dpConfidence[i], dpCount[i], taken[i] = withDelta, withConfidence, withCount, true
		} else {
			dpDelta[i], dpConfidence[i], dpCount[i], taken[i] = skipDelta, skipConfidence, skipCount, false
		}
	}

	var chosen []int
	i := n
	for i > 0 {
		if taken[i] {
			chosen = append(chosen, order[i-1])
			i = p[i-1] + 1
		} else {
			i--
		}
	}

	sort.Slice(chosen, func(i, j int) bool {
		if candidates[chosen[i]].Start != candidates[chosen[j]].Start {
			return candidates[chosen[i]].Start < candidates[chosen[j]].Start
		}
		return chosen[i] < chosen[j]
	})
	return chosen
}

// predecessor returns the largest index j in [0, upTo) such that
// ends[j] <= start, or -1 if none exists. ends must be sorted ascending.
func predecessor(ends []int, start, upTo int) int {
	lo, hi := 0, upTo-1
	result := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if ends[mid] <= start {
			result = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return result
}
