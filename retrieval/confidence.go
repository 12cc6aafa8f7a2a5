package retrieval

import (
	"sort"

	"github.com/fairplaylabs/adviser/core"
)

// confidenceFromDistances maps raw vector distances to a confidence in
// [0,1]: the mean of the topN smallest distances, inverted and clamped.
// Closer matches yield higher confidence; an empty set yields 0. The
// transform is monotone decreasing in every distance, so adding strictly
// closer evidence never lowers the score.
func confidenceFromDistances(distances []float64, topN int) float64 {
	if len(distances) == 0 {
		return 0
	}
	ds := make([]float64, len(distances))
	copy(ds, distances)
	sort.Float64s(ds)
	if topN > 0 && len(ds) > topN {
		ds = ds[:topN]
	}
	var sum float64
	for _, d := range ds {
		sum += d
	}
	c := 1 - sum/float64(len(ds))
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func confidenceFromMatches(matches []core.VectorMatch, topN int) float64 {
	distances := make([]float64, 0, len(matches))
	for _, m := range matches {
		distances = append(distances, m.Distance)
	}
	return confidenceFromDistances(distances, topN)
}

// ConfidenceFromDocuments recomputes confidence over an evidence set using
// the raw vector distances the documents carried out of retrieval.
// Lexical-only documents carry no distance and are ignored.
func ConfidenceFromDocuments(docs []core.Document, topN int) float64 {
	distances := make([]float64, 0, len(docs))
	for _, d := range docs {
		if d.VectorDistance != nil {
			distances = append(distances, *d.VectorDistance)
		}
	}
	return confidenceFromDistances(distances, topN)
}
