package vectorindex

import "math"

func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

func dotProduct(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// score is higher-is-better for every metric.
func score(metric Metric, q, v []float32) float64 {
	switch metric {
	case MetricL2:
		return -l2Distance(q, v)
	case MetricDot:
		return dotProduct(q, v)
	default:
		return CosineSimilarity(q, v)
	}
}

// MaxMarginalRelevance picks k candidates trading query relevance against
// similarity to already selected ones.
func MaxMarginalRelevance(query []float32, candidates []Hit, k int, lambda float64) []Hit {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if k > len(candidates) {
		k = len(candidates)
	}
	relevance := make([]float64, len(candidates))
	for i, c := range candidates {
		relevance[i] = CosineSimilarity(query, c.Vector)
	}
	selected := make([]Hit, 0, k)
	picked := make([]bool, len(candidates))
	for len(selected) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range candidates {
			if picked[i] {
				continue
			}
			redundancy := 0.0
			for _, s := range selected {
				if sim := CosineSimilarity(c.Vector, s.Vector); sim > redundancy {
					redundancy = sim
				}
			}
			mmr := lambda*relevance[i] - (1-lambda)*redundancy
			if mmr > bestScore {
				best, bestScore = i, mmr
			}
		}
		picked[best] = true
		selected = append(selected, candidates[best])
	}
	return selected
}
