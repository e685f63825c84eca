package aggregate

import (
	"math"
)

// Similarity computes TF-IDF cosine similarity between two texts over the
// two-document corpus {a, b}. The result is symmetric, self-similarity is
// 1, and either text being empty yields 0. Pure and deterministic,
// O(distinct terms).
//
// IDF is smoothed to log(N/df)+1 so terms present in both documents keep a
// non-zero weight; the classic log(N/df) would zero every shared term in a
// two-document corpus and make identical texts score 0.
func Similarity(a, b string) float64 {
	tokensA := tokenize(a)
	tokensB := tokenize(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	tfA := termFrequencies(tokensA)
	tfB := termFrequencies(tokensB)

	// Document frequency over the two-document corpus.
	const corpusSize = 2.0
	idf := make(map[string]float64, len(tfA)+len(tfB))
	for term := range tfA {
		df := 1.0
		if _, ok := tfB[term]; ok {
			df = 2.0
		}
		idf[term] = math.Log(corpusSize/df) + 1
	}
	for term := range tfB {
		if _, ok := idf[term]; ok {
			continue
		}
		idf[term] = math.Log(corpusSize/1.0) + 1
	}

	var dot, normA, normB float64
	for term, tf := range tfA {
		w := tf * idf[term]
		normA += w * w
		if tfOther, ok := tfB[term]; ok {
			dot += w * (tfOther * idf[term])
		}
	}
	for term, tf := range tfB {
		w := tf * idf[term]
		normB += w * w
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// termFrequencies returns relative term frequencies for a token list.
func termFrequencies(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		tf[tok]++
	}
	n := float64(len(tokens))
	for term := range tf {
		tf[term] /= n
	}
	return tf
}

// pairwiseSimilarities computes the full symmetric similarity matrix for a
// response set. The diagonal is 1.
func pairwiseSimilarities(responses []Response) [][]float64 {
	n := len(responses)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1.0
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			sim := Similarity(responses[i].Text, responses[j].Text)
			matrix[i][j] = sim
			matrix[j][i] = sim
		}
	}
	return matrix
}
