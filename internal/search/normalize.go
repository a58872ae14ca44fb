package search

// normalizeBM25 rescales raw FTS5 BM25 scores to [0, 1]. Raw scores are
// negative with more negative meaning better, so the sign is inverted by
// mapping the minimum (best) to 1.0 and the maximum (worst) to 0.0. When all
// candidates tie, every one maps to 1.0.
func normalizeBM25(raw map[int64]float64) map[int64]float64 {
	if len(raw) == 0 {
		return map[int64]float64{}
	}

	min, max := bounds(raw)
	normalized := make(map[int64]float64, len(raw))
	if min == max {
		for id := range raw {
			normalized[id] = 1.0
		}
		return normalized
	}

	span := max - min
	for id, score := range raw {
		normalized[id] = (max - score) / span
	}
	return normalized
}

// normalizeDistances converts cosine distances in [0, 2] to similarities via
// 1 - d/2, then min-max rescales the similarities to [0, 1]. When all
// candidates tie, every one maps to 1.0.
func normalizeDistances(distances map[int64]float64) map[int64]float64 {
	if len(distances) == 0 {
		return map[int64]float64{}
	}

	similarities := make(map[int64]float64, len(distances))
	for id, dist := range distances {
		similarities[id] = 1 - dist/2
	}

	min, max := bounds(similarities)
	normalized := make(map[int64]float64, len(similarities))
	if min == max {
		for id := range similarities {
			normalized[id] = 1.0
		}
		return normalized
	}

	span := max - min
	for id, sim := range similarities {
		normalized[id] = (sim - min) / span
	}
	return normalized
}

func bounds(scores map[int64]float64) (min, max float64) {
	first := true
	for _, score := range scores {
		if first {
			min, max = score, score
			first = false
			continue
		}
		if score < min {
			min = score
		}
		if score > max {
			max = score
		}
	}
	return min, max
}
